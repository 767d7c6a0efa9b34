package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{PublicRPS: 1, PublicBurst: 2})
	handler := RateLimit(limiter, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/listings/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected burst to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %v", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/listings/x", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, other)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected other ip to pass, got %d", resp.Code)
	}
}

func TestIPRateLimiterSweepsIdleVisitors(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.limiterFor("a")
	limiter.limiterFor("b")
	if limiter.size() != 2 {
		t.Fatalf("expected 2 visitors got %d", limiter.size())
	}

	now = now.Add(visitorIdleTTL + time.Minute)
	limiter.limiterFor("c")
	if limiter.size() != 1 {
		t.Fatalf("expected idle visitors swept, got %d", limiter.size())
	}
}

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) RateLimitKey(scope string) string {
	return "rl:" + scope
}

func TestThrottleUserLimit(t *testing.T) {
	store := newFakeRateStore()
	policy := NewThrottlePolicy("payout-verify", time.Minute, 0, 2)
	handler := Throttle(policy, store, nil)(okHandler())
	farmer := auth.Actor{UserID: uuid.New(), Role: enums.RoleFarmer}

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/payout-methods/x/verify", nil)
		req = req.WithContext(WithActor(req.Context(), farmer))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if i < 2 && resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, resp.Code)
		}
		if i == 2 && resp.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 got %d", resp.Code)
		}
	}
	if store.counts["rl:payout-verify:user:"+farmer.UserID.String()] != 3 {
		t.Fatalf("unexpected counters %v", store.counts)
	}
}

func TestThrottleIPLimit(t *testing.T) {
	store := newFakeRateStore()
	handler := Throttle(NewThrottlePolicy("payout-verify", time.Minute, 1, 0), store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-For", "5.6.7.8, 10.0.0.1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if i == 1 && resp.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 got %d", resp.Code)
		}
	}
	if _, ok := store.counts["rl:payout-verify:ip:5.6.7.8"]; !ok {
		t.Fatalf("expected forwarded ip key, got %v", store.counts)
	}
}

func TestThrottleDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeRateStore()
	handler := Throttle(NewThrottlePolicy("noop", 0, 1, 1), store, nil)(okHandler())
	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
	}
}
