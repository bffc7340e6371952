package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/logger"
	"coupon-service/internal/services"
)

// MiddlewareLimiter описывает контракт для rate limiter.
type MiddlewareLimiter interface {
	Allow(ctx context.Context, scope services.RateScope, client string) (services.RateDecision, error)
	Enabled() bool
}

// RateLimitStatusProvider расширяет интерфейс для эндпоинта статуса.
type RateLimitStatusProvider interface {
	MiddlewareLimiter
	Usage(ctx context.Context, scope services.RateScope, client string) (int64, services.RateDecision, error)
}

// RateLimitHandler отдает клиенту состояние его окон.
type RateLimitHandler struct {
	limiter RateLimitStatusProvider
	log     *logger.Logger
	cfg     *config.RateLimitConfig
}

// NewRateLimitHandler создает новый RateLimitHandler.
func NewRateLimitHandler(limiter RateLimitStatusProvider, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, log: log, cfg: cfg}
}

type rateWindow struct {
	Limit     int64  `json:"limit"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
	ResetAt   string `json:"reset_at,omitempty"`
}

// Status возвращает текущие значения лимитов чтения и записи для клиента.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.limiter == nil || !h.limiter.Enabled() {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}

	client := services.ExtractClientIP(r)
	windows := make(map[services.RateScope]rateWindow, 2)
	for _, scope := range []services.RateScope{services.ScopeRead, services.ScopeWrite} {
		used, d, err := h.limiter.Usage(r.Context(), scope, client)
		if err != nil {
			h.log.WithError(err).Error("Failed to fetch rate limit usage")
			writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
			return
		}
		win := rateWindow{Limit: d.Limit, Used: used, Remaining: d.Remaining}
		if !d.ResetAt.IsZero() {
			win.ResetAt = d.ResetAt.Format(time.RFC3339)
		}
		windows[scope] = win
	}

	resp := map[string]interface{}{
		"enabled": true,
		"key":     client,
		"windows": windows,
	}
	if h.cfg != nil {
		resp["window_seconds"] = h.cfg.WindowSeconds
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// RateLimitMiddleware применяет rate limiting; запросы на запись считаются в отдельном окне.
func RateLimitMiddleware(limiter MiddlewareLimiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !limiter.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			d, err := limiter.Allow(r.Context(), services.ScopeOf(r), services.ExtractClientIP(r))
			if err != nil {
				log.WithError(err).Error("Rate limiter failed")
				writeErrorResponse(w, http.StatusInternalServerError, "Rate limiter error")
				return
			}

			// Заголовки совместимые с common rate limit policy
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			}

			if !d.Allowed {
				writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
