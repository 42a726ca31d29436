package streaming

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"media-converter/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates a single write did not complete in time,
	// usually because the client is reading too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the request context was canceled before the
	// stream completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates the writer was closed or went idle.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config configures a Writer.
type Config struct {
	// WriteTimeout bounds a single chunk write.
	WriteTimeout time.Duration
	// IdleTimeout cancels the stream when no chunk completes for this long.
	IdleTimeout time.Duration
	// ChunkSize splits large writes; each chunk is flushed. Zero writes as
	// received.
	ChunkSize int
	// OnProgress is called after every mebibyte boundary crossed.
	OnProgress func(bytesWritten int64, elapsed time.Duration)
}

// DefaultConfig returns the settings used for converted file delivery.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer wraps an http.ResponseWriter with per-write and idle timeouts.
type Writer struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config
	started time.Time

	mu        sync.Mutex
	lastWrite time.Time
	written   int64
	closed    bool
	deadlines bool
}

// NewWriter creates a Writer bound to ctx, normally the request context.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	wctx, cancel := context.WithCancel(ctx)
	now := time.Now()

	sw := &Writer{
		w:         w,
		rc:        http.NewResponseController(w),
		parent:    ctx,
		ctx:       wctx,
		cancel:    cancel,
		config:    config,
		started:   now,
		lastWrite: now,
		deadlines: true,
	}

	if config.IdleTimeout > 0 {
		go sw.watchIdle()
	}
	return sw
}

// Write implements io.Writer.
func (sw *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if err := sw.check(); err != nil {
			return total, err
		}

		n := len(p)
		if sw.config.ChunkSize > 0 && n > sw.config.ChunkSize {
			n = sw.config.ChunkSize
		}

		written, err := sw.writeChunk(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

func (sw *Writer) check() error {
	sw.mu.Lock()
	closed := sw.closed
	sw.mu.Unlock()

	if closed {
		return ErrStreamCanceled
	}
	if sw.ctx.Err() != nil {
		return sw.contextError()
	}
	return nil
}

// writeChunk writes p within WriteTimeout. Servers that support write
// deadlines get one; otherwise the write runs in a goroutine and is abandoned
// on timeout.
func (sw *Writer) writeChunk(p []byte) (int, error) {
	var n int
	var err error

	if sw.config.WriteTimeout > 0 && sw.useDeadlines() {
		n, err = sw.w.Write(p)
		_ = sw.rc.SetWriteDeadline(time.Time{})
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			sw.cancel()
			return n, ErrWriteTimeout
		}
	} else if sw.config.WriteTimeout > 0 {
		n, err = sw.writeAsync(p)
	} else {
		n, err = sw.w.Write(p)
	}
	if err != nil {
		return n, err
	}

	_ = sw.rc.Flush()
	sw.advance(n)
	return n, nil
}

func (sw *Writer) useDeadlines() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.deadlines {
		return false
	}
	if err := sw.rc.SetWriteDeadline(time.Now().Add(sw.config.WriteTimeout)); err != nil {
		sw.deadlines = false
		return false
	}
	return true
}

func (sw *Writer) writeAsync(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := sw.w.Write(p)
		done <- result{n, err}
	}()

	timer := time.NewTimer(sw.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.n, r.err
	case <-timer.C:
		sw.cancel()
		return 0, ErrWriteTimeout
	case <-sw.ctx.Done():
		return 0, sw.contextError()
	}
}

func (sw *Writer) advance(n int) {
	sw.mu.Lock()
	before := sw.written
	sw.written += int64(n)
	after := sw.written
	sw.lastWrite = time.Now()
	sw.mu.Unlock()

	if sw.config.OnProgress != nil && before/(1<<20) != after/(1<<20) {
		sw.config.OnProgress(after, time.Since(sw.started))
	}
}

func (sw *Writer) watchIdle() {
	ticker := time.NewTicker(sw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.mu.Lock()
			idle := time.Since(sw.lastWrite)
			sw.mu.Unlock()

			if idle > sw.config.IdleTimeout {
				logging.Warn("Stream idle for %v, canceling", idle)
				sw.cancel()
				return
			}
		case <-sw.ctx.Done():
			return
		}
	}
}

func (sw *Writer) contextError() error {
	if sw.parent.Err() != nil {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close stops the idle watcher. Later writes fail with ErrStreamCanceled.
func (sw *Writer) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return nil
	}
	sw.closed = true
	sw.cancel()
	return nil
}

// Stats returns bytes written and time since the writer was created.
func (sw *Writer) Stats() (int64, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.written, time.Since(sw.started)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Attachment describes a file delivered as a download.
type Attachment struct {
	FileName    string
	ContentType string
	Size        int64
}

// ContentDisposition returns an attachment Content-Disposition value for
// name. Non-ASCII names are encoded per RFC 2231.
func ContentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// ServeAttachment writes the download headers for a and streams r to w.
// It returns the number of body bytes written.
func ServeAttachment(ctx context.Context, w http.ResponseWriter, a Attachment, r io.Reader, config Config) (int64, error) {
	h := w.Header()
	h.Set("Content-Type", a.ContentType)
	h.Set("Content-Disposition", ContentDisposition(a.FileName))
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	if a.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	sw := NewWriter(ctx, w, config)
	defer func() {
		if err := sw.Close(); err != nil {
			logging.Warn("Failed to close stream writer: %v", err)
		}
	}()

	_, err := io.Copy(sw, r)
	written, elapsed := sw.Stats()
	logging.Debug("Delivered %s: %d bytes in %v", a.FileName, written, elapsed)
	return written, err
}
