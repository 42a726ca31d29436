package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"media-converter/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestStatusWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newStatusWriter(rec)

	if sw.status != http.StatusOK {
		t.Errorf("default status = %d, want 200", sw.status)
	}

	sw.WriteHeader(http.StatusNotFound)
	sw.WriteHeader(http.StatusInternalServerError)
	if sw.status != http.StatusNotFound {
		t.Errorf("status = %d, want first WriteHeader to win", sw.status)
	}

	n, err := sw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if sw.written != 5 {
		t.Errorf("written = %d, want 5", sw.written)
	}

	if sw.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}

	sw.Flush()
	if !rec.Flushed {
		t.Error("Flush should reach the recorder")
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"cr\rlf", "cr lf"},
		{"esc\x1b[31mred", "esc[31mred"},
		{"tab\tkept", "tab\tkept"},
		{"del\x7f", "del"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeW3CField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"curl/8.0", "curl/8.0"},
		{"Mozilla 5.0", `"Mozilla 5.0"`},
		{`say "hi"`, `"say ""hi"""`},
	}
	for _, tt := range tests {
		if got := escapeW3CField(tt.in); got != tt.want {
			t.Errorf("escapeW3CField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := clientIP(r, false); got != "10.0.0.5" {
		t.Errorf("untrusted clientIP = %q, want 10.0.0.5", got)
	}
	if got := clientIP(r, true); got != "203.0.113.7" {
		t.Errorf("trusted clientIP = %q, want 203.0.113.7", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.2")
	if got := clientIP(r, true); got != "198.51.100.2" {
		t.Errorf("X-Real-IP clientIP = %q", got)
	}

	r.RemoteAddr = "no-port"
	if got := clientIP(r, false); got != "no-port" {
		t.Errorf("clientIP without port = %q", got)
	}
}

func TestShouldSkip(t *testing.T) {
	cfg := LoggingConfig{SkipPaths: []string{"/internal/"}}

	tests := []struct {
		path string
		want bool
	}{
		{"/internal/debug", true},
		{"/api/convert", false},
		{"/favicon.ico", true},
		{"/health", false},
	}
	for _, tt := range tests {
		if got := shouldSkip(tt.path, cfg); got != tt.want {
			t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	cfg.LogStaticFiles = true
	if shouldSkip("/favicon.ico", cfg) {
		t.Error("static files should be logged when enabled")
	}

	if !shouldSkip("/healthz", LoggingConfig{}) {
		t.Error("health checks should be skipped when disabled")
	}
	if shouldSkip("/healthz", DefaultLoggingConfig()) {
		t.Error("default config logs health checks")
	}
}

func TestLoggerWritesW3CLine(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggingConfig()
	cfg.Logger = log.New(&buf, "", 0)

	handler := Logger(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("abc"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/convert?target=png", strings.NewReader("12345"))
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("User-Agent", "test agent")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	line := strings.TrimSpace(buf.String())
	fields := strings.Fields(line)
	if len(fields) < 12 {
		t.Fatalf("log line has %d fields: %q", len(fields), line)
	}
	if fields[2] != "192.0.2.1" {
		t.Errorf("c-ip = %q", fields[2])
	}
	if fields[3] != "POST" || fields[4] != "/api/convert" || fields[5] != "target=png" {
		t.Errorf("request fields = %v", fields[3:6])
	}
	if fields[6] != "201" || fields[7] != "3" {
		t.Errorf("status/bytes = %v", fields[6:8])
	}
	if fields[9] != "5" {
		t.Errorf("cs(Content-Length) = %q, want 5", fields[9])
	}
	if !strings.Contains(line, `"test agent"`) {
		t.Errorf("user agent not quoted: %q", line)
	}
	if !strings.HasSuffix(line, " -") {
		t.Errorf("missing referer should log as dash: %q", line)
	}
}

func TestLoggerSanitizesInjectedPath(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggingConfig()
	cfg.Logger = log.New(&buf, "", 0)

	handler := Logger(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Referer", "evil\nFAKE LINE")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected a single log line, got %q", buf.String())
	}
}

func TestLoggerSkipsConfiguredPaths(t *testing.T) {
	var buf bytes.Buffer
	cfg := LoggingConfig{SkipPaths: []string{"/metrics"}, Logger: log.New(&buf, "", 0)}

	called := false
	handler := Logger(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !called {
		t.Error("skipped paths must still reach the handler")
	}
	if buf.Len() != 0 {
		t.Errorf("skipped path was logged: %q", buf.String())
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodGet)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/items/{id}", "202")
	before := counterValue(t, counter)

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/"+id, nil))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if got := counterValue(t, counter) - before; got != 3 {
		t.Errorf("counter delta = %v, want 3", got)
	}
}

func TestMetricsUnmatchedRoute(t *testing.T) {
	handler := Metrics(MetricsConfig{})(http.NotFoundHandler())

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := counterValue(t, counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := counterValue(t, counter) - before; got != 1 {
		t.Errorf("counter delta = %v, want 1", got)
	}
}

func TestMetricsSkipPaths(t *testing.T) {
	called := false
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := w.(*statusWriter); ok {
			t.Error("skipped paths should not be wrapped")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !called {
		t.Error("handler not called")
	}
}

func TestMetricsPreservesResponseController(t *testing.T) {
	handler := Metrics(MetricsConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("Flush through wrapper: %v", err)
		}
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !rec.Flushed {
		t.Error("recorder not flushed")
	}
}
