package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func (r *rateLimiter) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func newOriginRequest(t *testing.T, target, origin string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Origin", origin)
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddlewareThrottles(t *testing.T) {
	s := newTestServer(t, nil, func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})

	rec := doGet(t, s, "/v1/zodiac?date=25-12-1990")
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = doGet(t, s, "/v1/zodiac?date=25-12-1990")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Error.Reason != "rate limit exceeded" {
		t.Errorf("reason = %q", resp.Error.Reason)
	}
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	s := newTestServer(t, nil, nil)

	for i := 0; i < 20; i++ {
		rec := doGet(t, s, "/v1/zodiac?date=25-12-1990")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}

func TestRateLimitSkipsHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil, func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})

	// Exhaust the bucket on the API group.
	doGet(t, s, "/v1/zodiac?date=25-12-1990")
	doGet(t, s, "/v1/zodiac?date=25-12-1990")

	for i := 0; i < 3; i++ {
		if rec := doGet(t, s, "/healthz"); rec.Code != http.StatusOK {
			t.Fatalf("healthz status = %d, want 200", rec.Code)
		}
	}
}

func TestRateLimiterSweepsIdleEntries(t *testing.T) {
	r := newRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             1,
		EntryTTL:          10 * time.Minute,
		CleanupInterval:   time.Minute,
	})
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	r.lastCleanup = now

	if !r.allow("1.1.1.1") {
		t.Fatal("fresh key denied")
	}
	if !r.allow("2.2.2.2") {
		t.Fatal("second fresh key denied")
	}

	// Past the cleanup interval but inside the TTL: both entries survive.
	now = now.Add(2 * time.Minute)
	r.allow("3.3.3.3")
	if got := r.entryCount(); got != 3 {
		t.Fatalf("entries = %d, want 3", got)
	}

	// Past the TTL: only the key seen now remains.
	now = now.Add(20 * time.Minute)
	r.allow("4.4.4.4")
	if got := r.entryCount(); got != 1 {
		t.Fatalf("entries = %d, want 1 after sweep", got)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doGet(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestChatRouteWithoutHandler(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doGet(t, s, "/v1/chat")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when chat is not wired", rec.Code)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	s := newTestServer(t, nil, func(cfg *Config) {
		cfg.AllowedOrigins = []string{"http://app.example.com"}
	})

	req := newOriginRequest(t, "/healthz", "http://app.example.com")
	rec := serve(s, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORSDefaultsToAnyOrigin(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := newOriginRequest(t, "/healthz", "http://anywhere.example")
	rec := serve(s, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestNewRejectsBadPort(t *testing.T) {
	if _, err := New(Config{Host: "127.0.0.1", Port: 0}, nil); err == nil {
		t.Fatal("expected error for port 0")
	}
	if _, err := New(Config{Host: "127.0.0.1", Port: 70000}, nil); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
