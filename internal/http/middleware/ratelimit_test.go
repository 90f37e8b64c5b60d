package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  5,
		window: time.Minute,
	}
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	clock := base
	rl.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d denied under limit", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("sixth request allowed within window")
	}

	// a different IP has its own window
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other IP denied")
	}

	// window slides: 61s later the old hits expired
	clock = base.Add(61 * time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("request denied after window slid")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mw := RateLimit(2, time.Minute)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/leads/cadastrar", nil)
		req.Header.Set("X-Real-Ip", "9.9.9.9")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/leads/cadastrar", nil)
	req.Header.Set("X-Real-Ip", "9.9.9.9")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}
