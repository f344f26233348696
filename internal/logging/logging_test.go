package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// captureLogOutput redirects the package logger to a buffer for the
// duration of f and returns what was logged.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	defer func() { defaultLogger = oldLogger }()

	f()
	return buf.String()
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID = %q; want req-123", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q; want empty", got)
	}
}

func TestCacheEvent(t *testing.T) {
	out := captureLogOutput(func() {
		CacheEvent("evicted", "key", "john|3|web")
	})
	if !strings.Contains(out, "cache_event") || !strings.Contains(out, "evicted") {
		t.Errorf("cache event log missing fields: %s", out)
	}
}

func TestSecurityEventLogsAsWarning(t *testing.T) {
	out := captureLogOutput(func() {
		SecurityEvent("unauthorized_request", "auth", "path", "/sermons")
	})
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("security event should log at WARN: %s", out)
	}
	if !strings.Contains(out, "unauthorized_request") {
		t.Errorf("security event log missing event name: %s", out)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	// Generated when absent.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Error("middleware should generate a request ID")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("request ID should be echoed in the response header")
	}

	// Honored when supplied.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "caller-supplied" {
		t.Errorf("request ID = %q; want caller-supplied", seen)
	}
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	out := captureLogOutput(func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot", nil))
	})
	if !strings.Contains(out, "418") {
		t.Errorf("request log missing status code: %s", out)
	}
	if !strings.Contains(out, "/teapot") {
		t.Errorf("request log missing path: %s", out)
	}
}
