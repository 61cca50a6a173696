package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := chimiddleware.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/snippets", nil))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/api/snippets")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=15")
	assert.Contains(t, out, "requestID=")
}

func TestLogger_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "status=200")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.False(t, strings.Contains(buf.String(), "requestID="))
}

func TestRateLimiter_Allow(t *testing.T) {
	l := NewRateLimiter(1, 2, discardLogger())
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = l.Allow("1.1.1.1")
	assert.True(t, ok)

	ok, wait := l.Allow("1.1.1.1")
	assert.False(t, ok, "burst exhausted")
	assert.InDelta(t, time.Second, wait, float64(10*time.Millisecond))

	ok, _ = l.Allow("2.2.2.2")
	assert.True(t, ok, "other clients have their own bucket")

	now = now.Add(time.Second)
	ok, _ = l.Allow("1.1.1.1")
	assert.True(t, ok, "refilled")
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	l := NewRateLimiter(1, 1, discardLogger())
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("1.1.1.1")
	l.Allow("2.2.2.2")
	require.Equal(t, 2, l.Len())

	now = now.Add(idleLimiterTTL + time.Minute)
	l.Allow("3.3.3.3")
	assert.Equal(t, 1, l.Len())
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(0.5, 1, discardLogger())
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/share/abc", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "rate_limited")
}
