package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/logger"
)

// RateScope - класс запросов со своим лимитом в окне
type RateScope string

const (
	// ScopeRead - чтение списков и карточек купонов
	ScopeRead RateScope = "read"
	// ScopeWrite - создание купонов и смена статуса; они берут блокировку мерчанта
	ScopeWrite RateScope = "write"
)

// RateDecision - результат проверки лимита
type RateDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateLimiter ограничивает число запросов клиента в фиксированном окне отдельно по каждому RateScope.
type RateLimiter struct {
	redis   rateRedis
	log     *logger.Logger
	enabled bool
	limits  map[RateScope]int64
	window  time.Duration
	prefix  string
}

type rateRedis interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// NewRateLimiter создаёт rate limiter. Без redis или с выключенной настройкой
// возвращается лимитер, пропускающий все запросы.
func NewRateLimiter(store rateRedis, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if store == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false}
	}

	writeLimit := cfg.WriteRequests
	if writeLimit <= 0 || writeLimit > cfg.Requests {
		writeLimit = cfg.Requests
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RateLimiter{
		redis:   store,
		log:     log,
		enabled: true,
		limits: map[RateScope]int64{
			ScopeRead:  int64(cfg.Requests),
			ScopeWrite: int64(writeLimit),
		},
		window: time.Duration(cfg.WindowSeconds) * time.Second,
		prefix: prefix,
	}
}

// Allow засчитывает запрос клиента в окне scope.
func (r *RateLimiter) Allow(ctx context.Context, scope RateScope, client string) (RateDecision, error) {
	limit := r.Limit(scope)
	if !r.enabled {
		return RateDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	now := time.Now()
	key := r.makeKey(scope, client)

	count, err := r.redis.Incr(ctx, key)
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	// первый запрос открывает окно
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window); err != nil {
			r.log.WithError(err).WithField("key", key).Warn("failed to set rate limit ttl")
		}
	}

	ttl, err := r.redis.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		if err != nil {
			r.log.WithError(err).WithField("key", key).Warn("failed to get rate limit ttl")
		}
		ttl = r.window
	}

	return RateDecision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remainingOf(limit, count),
		ResetAt:   now.Add(ttl),
	}, nil
}

// Usage возвращает состояние окна без учета нового запроса.
func (r *RateLimiter) Usage(ctx context.Context, scope RateScope, client string) (used int64, decision RateDecision, err error) {
	limit := r.Limit(scope)
	decision = RateDecision{Allowed: true, Limit: limit, Remaining: limit}
	if !r.enabled {
		return 0, decision, nil
	}

	key := r.makeKey(scope, client)
	count, err := r.redis.GetInt(ctx, key)
	if err != nil {
		// окна еще нет
		return 0, decision, nil
	}

	if ttl, ttlErr := r.redis.TTL(ctx, key); ttlErr == nil && ttl > 0 {
		decision.ResetAt = time.Now().Add(ttl)
	}
	decision.Allowed = count < limit
	decision.Remaining = remainingOf(limit, count)
	return count, decision, nil
}

func remainingOf(limit, count int64) int64 {
	if count >= limit {
		return 0
	}
	return limit - count
}

func (r *RateLimiter) makeKey(scope RateScope, client string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, strings.ReplaceAll(client, ":", "_"))
}

// Limit возвращает лимит окна для scope.
func (r *RateLimiter) Limit(scope RateScope) int64 {
	return r.limits[scope]
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.enabled
}

// ScopeOf относит запрос к классу лимита по HTTP-методу.
func ScopeOf(r *http.Request) RateScope {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ScopeRead
	default:
		return ScopeWrite
	}
}

// ExtractClientIP получает IP из заголовков/RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
