package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.WriteTimeout != 30*time.Second {
		t.Errorf("Expected WriteTimeout=30s, got %v", config.WriteTimeout)
	}
	if config.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout=60s, got %v", config.IdleTimeout)
	}
	if config.ChunkSize != 64*1024 {
		t.Errorf("Expected ChunkSize=64KB, got %d", config.ChunkSize)
	}
}

func TestWriterWrite(t *testing.T) {
	w := httptest.NewRecorder()
	sw := NewWriter(context.Background(), w, DefaultConfig())
	defer sw.Close()

	data := []byte("converted bytes")
	n, err := sw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}
	if w.Body.String() != string(data) {
		t.Errorf("Body = %q", w.Body.String())
	}

	written, _ := sw.Stats()
	if written != int64(len(data)) {
		t.Errorf("Stats bytes = %d, want %d", written, len(data))
	}
}

func TestWriterChunking(t *testing.T) {
	w := httptest.NewRecorder()
	config := DefaultConfig()
	config.ChunkSize = 10
	sw := NewWriter(context.Background(), w, config)
	defer sw.Close()

	data := make([]byte, 95)
	for i := range data {
		data[i] = byte(i)
	}

	n, err := sw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("wrote %d bytes, want %d", n, len(data))
	}
	if !bytes.Equal(w.Body.Bytes(), data) {
		t.Error("chunked body does not match input")
	}
	if !w.Flushed {
		t.Error("chunks were not flushed")
	}
}

func TestWriterCloseIdempotent(t *testing.T) {
	sw := NewWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())

	if err := sw.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Errorf("second Close() returned error: %v", err)
	}

	if _, err := sw.Write([]byte("data")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write after Close error = %v, want ErrStreamCanceled", err)
	}
}

func TestWriterClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := NewWriter(ctx, httptest.NewRecorder(), DefaultConfig())
	defer sw.Close()

	cancel()

	if _, err := sw.Write([]byte("test")); !errors.Is(err, ErrClientGone) {
		t.Errorf("Write error = %v, want ErrClientGone", err)
	}
}

// stalledWriter blocks every Write until release is closed.
type stalledWriter struct {
	header  http.Header
	release chan struct{}
}

func (s *stalledWriter) Header() http.Header { return s.header }
func (s *stalledWriter) WriteHeader(int)     {}
func (s *stalledWriter) Write(p []byte) (int, error) {
	<-s.release
	return len(p), nil
}

func TestWriterWriteTimeout(t *testing.T) {
	sw0 := &stalledWriter{header: http.Header{}, release: make(chan struct{})}
	defer close(sw0.release)

	config := Config{WriteTimeout: 20 * time.Millisecond}
	sw := NewWriter(context.Background(), sw0, config)
	defer sw.Close()

	start := time.Now()
	_, err := sw.Write([]byte("stuck"))
	if !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("Write error = %v, want ErrWriteTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}

	// The stream is dead after a timeout.
	if _, err := sw.Write([]byte("more")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write after timeout error = %v, want ErrStreamCanceled", err)
	}
}

func TestWriterIdleTimeout(t *testing.T) {
	config := Config{IdleTimeout: 20 * time.Millisecond}
	sw := NewWriter(context.Background(), httptest.NewRecorder(), config)
	defer sw.Close()

	time.Sleep(100 * time.Millisecond)

	if _, err := sw.Write([]byte("late")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write after idle error = %v, want ErrStreamCanceled", err)
	}
}

func TestWriterOnProgress(t *testing.T) {
	var calls []int64
	config := DefaultConfig()
	config.OnProgress = func(written int64, _ time.Duration) {
		calls = append(calls, written)
	}

	sw := NewWriter(context.Background(), httptest.NewRecorder(), config)
	defer sw.Close()

	if _, err := sw.Write(make([]byte, 2*(1<<20)+10)); err != nil {
		t.Fatal(err)
	}

	if len(calls) != 2 {
		t.Errorf("progress calls = %v, want one per MiB boundary", calls)
	}
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"photo-converted.jpg", `attachment; filename=photo-converted.jpg`},
		{"my photo-converted.jpg", `attachment; filename="my photo-converted.jpg"`},
		{"café-converted.png", `attachment; filename*=utf-8''caf%C3%A9-converted.png`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentDisposition(tt.name); got != tt.want {
				t.Errorf("ContentDisposition(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestServeAttachment(t *testing.T) {
	w := httptest.NewRecorder()
	body := "GIF89a-converted-body"
	a := Attachment{FileName: "clip-converted.gif", ContentType: "image/gif", Size: int64(len(body))}

	n, err := ServeAttachment(context.Background(), w, a, strings.NewReader(body), DefaultConfig())
	if err != nil {
		t.Fatalf("ServeAttachment() error = %v", err)
	}
	if n != int64(len(body)) {
		t.Errorf("written = %d, want %d", n, len(body))
	}

	res := w.Result()
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
	if got := res.Header.Get("Content-Type"); got != "image/gif" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := res.Header.Get("Content-Disposition"); got != "attachment; filename=clip-converted.gif" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := res.Header.Get("Content-Length"); got != "21" {
		t.Errorf("Content-Length = %q", got)
	}
	if w.Body.String() != body {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrWriteTimeout, ErrClientGone) ||
		errors.Is(ErrWriteTimeout, ErrStreamCanceled) ||
		errors.Is(ErrClientGone, ErrStreamCanceled) {
		t.Error("sentinel errors must be distinct")
	}
}

func BenchmarkWriterWrite(b *testing.B) {
	sw := NewWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())
	defer sw.Close()

	data := make([]byte, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = sw.Write(data)
	}
}
