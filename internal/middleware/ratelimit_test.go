package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/sharediary/internal/metrics"
)

type rateMetrics struct {
	metrics.Nop
	routes []string
}

func (m *rateMetrics) RecordRateLimited(route string) {
	m.routes = append(m.routes, route)
}

func newLimitedHandler(t *testing.T, cfg RateLimiterConfig, m metrics.MetricsCollector) (http.Handler, *RateLimiter) {
	t.Helper()
	rl := NewRateLimiter(cfg, m)
	t.Cleanup(rl.Stop)
	handler := rl.Middleware("auth")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return handler, rl
}

func doFrom(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsRequestsWithinBurst(t *testing.T) {
	handler, _ := newLimitedHandler(t, RateLimiterConfig{Rate: 1, Burst: 5, CleanupInterval: time.Minute}, nil)

	for i := 0; i < 5; i++ {
		if w := doFrom(handler, "10.0.0.1:5000"); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimiter_Returns429WithRetryAfter(t *testing.T) {
	rec := &rateMetrics{}
	handler, _ := newLimitedHandler(t, PerMinute(2), rec)

	for i := 0; i < 2; i++ {
		if w := doFrom(handler, "10.0.0.2:5000"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}

	w := doFrom(handler, "10.0.0.2:6000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter != 30 {
		t.Errorf("Retry-After = %q, want 30", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q", body.Code)
	}
	if len(rec.routes) != 1 || rec.routes[0] != "auth" {
		t.Errorf("rate limited routes = %v", rec.routes)
	}
}

func TestRateLimiter_IndependentPerClientIP(t *testing.T) {
	handler, rl := newLimitedHandler(t, RateLimiterConfig{Rate: 0.01, Burst: 1, CleanupInterval: time.Minute}, nil)

	if w := doFrom(handler, "10.0.0.3:1"); w.Code != http.StatusOK {
		t.Fatalf("first client status = %d", w.Code)
	}
	if w := doFrom(handler, "10.0.0.3:2"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same IP different port status = %d, want 429", w.Code)
	}
	if w := doFrom(handler, "10.0.0.4:1"); w.Code != http.StatusOK {
		t.Errorf("second client status = %d, want 200", w.Code)
	}
	if got := rl.LimiterCount(); got != 2 {
		t.Errorf("LimiterCount() = %d, want 2", got)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	_, rl := newLimitedHandler(t, RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute}, nil)

	rl.limiterFor("10.0.0.5")
	rl.limiterFor("10.0.0.6")

	rl.cleanup(time.Now().Add(time.Minute))
	if got := rl.LimiterCount(); got != 2 {
		t.Errorf("LimiterCount() after fresh cleanup = %d, want 2", got)
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if got := rl.LimiterCount(); got != 0 {
		t.Errorf("LimiterCount() after stale cleanup = %d, want 0", got)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(PerMinute(10), nil)
	rl.Stop()
	rl.Stop()
}
