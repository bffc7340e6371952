package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/services"
)

type stubLimiter struct {
	allowSeq []bool
	idx      int
	limit    int64
	enabled  bool
	err      error
	scopes   []services.RateScope
}

func (s *stubLimiter) Allow(_ context.Context, scope services.RateScope, _ string) (services.RateDecision, error) {
	s.scopes = append(s.scopes, scope)
	if s.err != nil {
		return services.RateDecision{}, s.err
	}
	if s.idx >= len(s.allowSeq) {
		return services.RateDecision{Limit: s.limit, ResetAt: time.Now()}, nil
	}
	val := s.allowSeq[s.idx]
	s.idx++
	return services.RateDecision{
		Allowed:   val,
		Limit:     s.limit,
		Remaining: s.limit - int64(s.idx),
		ResetAt:   time.Now().Add(time.Minute),
	}, nil
}

func (s *stubLimiter) Enabled() bool { return s.enabled }

func (s *stubLimiter) Usage(_ context.Context, _ services.RateScope, _ string) (int64, services.RateDecision, error) {
	return 1, services.RateDecision{Allowed: true, Limit: s.limit, Remaining: s.limit - 1, ResetAt: time.Now().Add(time.Minute)}, nil
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	limiter := &stubLimiter{allowSeq: []bool{true, false}, limit: 1, enabled: true}
	calls := 0
	wrapped := RateLimitMiddleware(limiter, testLogger())(okHandler(&calls))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merchants/1/coupons", nil)
	req.RemoteAddr = "1.2.3.4:1234"

	rr1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rr1, req)
	if rr1.Code != http.StatusOK || calls != 1 {
		t.Fatalf("first request expected 200, calls=1; got %d, calls=%d", rr1.Code, calls)
	}
	if rr1.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("expected limit header")
	}

	rr2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rr2, req)
	if rr2.Code != http.StatusTooManyRequests || calls != 1 {
		t.Fatalf("second request expected 429, calls still 1; got %d, calls=%d", rr2.Code, calls)
	}
	if limiter.scopes[0] != services.ScopeWrite {
		t.Fatalf("POST must use write scope, got %v", limiter.scopes)
	}
}

func TestRateLimitMiddleware_DisabledSkips(t *testing.T) {
	limiter := &stubLimiter{enabled: false}
	calls := 0
	rr := httptest.NewRecorder()
	RateLimitMiddleware(limiter, testLogger())(okHandler(&calls)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if calls != 1 || rr.Code != http.StatusOK || len(limiter.scopes) != 0 {
		t.Fatalf("expected middleware to skip limiter, code=%d calls=%d", rr.Code, calls)
	}
}

func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	calls := 0
	rr := httptest.NewRecorder()
	RateLimitMiddleware(nil, testLogger())(okHandler(&calls)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if calls != 1 {
		t.Fatalf("expected passthrough without limiter")
	}
}

func TestRateLimitMiddleware_Error(t *testing.T) {
	limiter := &stubLimiter{enabled: true, err: errors.New("fail")}
	calls := 0
	rr := httptest.NewRecorder()
	RateLimitMiddleware(limiter, testLogger())(okHandler(&calls)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError || calls != 0 {
		t.Fatalf("expected 500 on limiter error, got %d", rr.Code)
	}
}

func TestRateLimitStatus_Disabled(t *testing.T) {
	handler := NewRateLimitHandler(nil, testLogger(), &config.RateLimitConfig{Enabled: false})
	rr := httptest.NewRecorder()
	handler.Status(rr, httptest.NewRequest(http.MethodGet, "/api/v1/rate-limit/status", nil))

	if rr.Code != http.StatusOK || decodeBody(t, rr)["enabled"] != false {
		t.Fatalf("expected disabled status, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRateLimitStatus_Enabled(t *testing.T) {
	limiter := &stubLimiter{enabled: true, limit: 5}
	handler := NewRateLimitHandler(limiter, testLogger(), &config.RateLimitConfig{Enabled: true, WindowSeconds: 60})
	rr := httptest.NewRecorder()
	handler.Status(rr, httptest.NewRequest(http.MethodGet, "/api/v1/rate-limit/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	windows := decodeBody(t, rr)["windows"].(map[string]interface{})
	if _, ok := windows["read"]; !ok {
		t.Fatalf("expected read window, got %v", windows)
	}
	if _, ok := windows["write"]; !ok {
		t.Fatalf("expected write window, got %v", windows)
	}
}

type errorStatusLimiter struct {
	MiddlewareLimiter
}

func (e *errorStatusLimiter) Usage(ctx context.Context, scope services.RateScope, client string) (int64, services.RateDecision, error) {
	return 0, services.RateDecision{}, errors.New("usage error")
}

func TestRateLimitStatus_Error(t *testing.T) {
	statusLimiter := &errorStatusLimiter{MiddlewareLimiter: &stubLimiter{enabled: true, limit: 5}}
	handler := NewRateLimitHandler(statusLimiter, testLogger(), &config.RateLimitConfig{Enabled: true})

	rr := httptest.NewRecorder()
	handler.Status(rr, httptest.NewRequest(http.MethodGet, "/api/v1/rate-limit/status", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
