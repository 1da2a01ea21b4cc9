package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestRateLimiter(t *testing.T, rps float64, burst int) *rateLimiter {
	t.Helper()
	rl, stop := newRateLimiter(rps, burst, slog.Default())
	t.Cleanup(stop)
	return rl
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	t.Parallel()

	rl := newTestRateLimiter(t, 1, 3)
	h := rl.middleware(okHandler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 within burst, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimiter_RejectsBeyondBurst(t *testing.T) {
	t.Parallel()

	rl := newTestRateLimiter(t, 1, 2)
	h := rl.middleware(okHandler)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		last = w.Code
	}

	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst exhausted, got %d", last)
	}
}

func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	t.Parallel()

	rl := newTestRateLimiter(t, 1, 1)
	h := rl.middleware(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if i == 1 {
			if w.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", w.Code)
			}
			if w.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After header on 429")
			}
		}
	}
}

func TestRateLimiter_PerIPIsolation(t *testing.T) {
	t.Parallel()

	rl := newTestRateLimiter(t, 1, 1)
	h := rl.middleware(okHandler)

	// Exhaust IP A.
	reqA := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
	reqA.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), reqA)

	// IP B is unaffected.
	reqB := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
	reqB.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, reqB)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for a fresh IP, got %d", w.Code)
	}
}

func TestRateLimiter_Evict(t *testing.T) {
	t.Parallel()

	rl := newTestRateLimiter(t, 1, 1)
	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")

	// Age one entry beyond the eviction cutoff.
	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastSeen = time.Now().Add(-10 * time.Minute)
	rl.mu.Unlock()

	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["10.0.0.1"]; ok {
		t.Error("stale entry not evicted")
	}
	if _, ok := rl.limiters["10.0.0.2"]; !ok {
		t.Error("fresh entry wrongly evicted")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()
	cases := []struct {
		addr string
		want string
	}{
		{"10.0.0.1:1234", "10.0.0.1"},
		{"[::1]:8080", "[::1]"},
		{"bare-host", "bare-host"},
	}
	for _, tc := range cases {
		r := &http.Request{RemoteAddr: tc.addr}
		if got := clientIP(r); got != tc.want {
			t.Errorf("clientIP(%q) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}
