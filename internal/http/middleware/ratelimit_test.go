package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/mediassist/pkg/logging"
)

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()
	frozen := time.Date(2024, time.December, 18, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatalf("burst of 2 should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("third request in the same instant should be rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatalf("other clients have their own bucket")
	}

	frozen = frozen.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatalf("token should refill after a second")
	}
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	defer rl.Stop()
	start := time.Date(2024, time.December, 18, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return start }
	rl.Allow("a")
	rl.now = func() time.Time { return start.Add(20 * time.Minute) }
	rl.Allow("b")

	if n := rl.evictIdle(start.Add(limiterIdleTTL)); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if rl.size() != 1 {
		t.Fatalf("expected one visitor left, got %d", rl.size())
	}
	rl.Stop()
	rl.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()
	var logs bytes.Buffer
	mw := RateLimit(rl, logging.NewWithWriter(&logs, "info"))
	handler := mw(okHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/chat/message", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d", rec.Code)
	}

	req.RemoteAddr = "192.0.2.1:5001"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("same IP on another port should share the bucket, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if !strings.Contains(logs.String(), "rate limit exceeded") {
		t.Fatalf("expected a warning log, got %q", logs.String())
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var logs bytes.Buffer
	mw := RequestLogger(logging.NewWithWriter(&logs, "info"))
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	req := httptest.NewRequest(http.MethodPost, "/chat/message", nil)
	req.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := logs.String()
	for _, want := range []string{`"status":503`, `"request_id":"req-123"`, `"level":"ERROR"`, `"path":"/chat/message"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %s", out, want)
		}
	}
}
