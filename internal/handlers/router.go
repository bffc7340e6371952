package handlers

import (
	"net/http"

	"coupon-service/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterDeps - обработчики и middleware, из которых собирается роутер
type RouterDeps struct {
	Coupons     *CouponHandler
	Merchants   *MerchantHandler
	Health      *HealthHandler
	RateLimit   *RateLimitHandler
	Limiter     MiddlewareLimiter
	Metrics     func(http.Handler) http.Handler
	MetricsPage http.Handler
	Log         *logger.Logger
}

// NewRouter собирает HTTP-роутер сервиса
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics)
	}
	r.Use(RequestLogger(d.Log))
	r.Use(corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	if d.Health != nil {
		r.Get("/health", d.Health.Health)
		r.Get("/health/readiness", d.Health.Readiness)
		r.Get("/health/liveness", d.Health.Liveness)
	}
	if d.MetricsPage != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsPage)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(d.Limiter, d.Log))

		if d.RateLimit != nil {
			r.Get("/rate-limit/status", d.RateLimit.Status)
		}

		r.Route("/merchants/{merchantId}", func(r chi.Router) {
			if d.Merchants != nil {
				r.Get("/", d.Merchants.Get)
			}
			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", d.Coupons.List)
				r.Post("/", d.Coupons.Create)
				r.Get("/{id}", d.Coupons.Get)
				r.Patch("/{id}", d.Coupons.UpdateStatus)
				r.Patch("/{id}/update_status", d.Coupons.UpdateStatus)
			})
		})
	})

	return r
}
