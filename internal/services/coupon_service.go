package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coupon-service/internal/apperror"
	"coupon-service/internal/config"
	"coupon-service/internal/logger"
	"coupon-service/internal/metrics"
	"coupon-service/internal/models"
	"coupon-service/internal/redis"
	"coupon-service/internal/repository"
)

const (
	msgAlreadyActive   = "Cannot activate coupon. Already active."
	msgAlreadyInactive = "Cannot deactivate coupon. Already inactive."
	msgInvalidStatus   = "Invalid status"
)

var (
	// ErrAlreadyActive - попытка активировать уже активный купон
	ErrAlreadyActive = errors.New("coupon already active")
	// ErrAlreadyInactive - попытка деактивировать уже неактивный купон
	ErrAlreadyInactive = errors.New("coupon already inactive")
	// ErrInvalidStatusValue - запрошен статус вне допустимого набора
	ErrInvalidStatusValue = errors.New("invalid status value")
)

// listCache - кеш списков купонов (реализуется redis.Client)
type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Incr(ctx context.Context, key string) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// CouponEventPublisher публикует события купонов после коммита (реализуется kafka.Producer)
type CouponEventPublisher interface {
	PublishCouponCreated(coupon *models.Coupon) error
	PublishCouponStatusChanged(coupon *models.Coupon, oldStatus models.CouponStatus) error
}

// CouponService реализует создание, выборку и смену статуса купонов
type CouponService struct {
	repo        repository.CouponRepository
	log         *logger.Logger
	activeLimit int

	cache     listCache
	cacheTTL  time.Duration
	publisher CouponEventPublisher
	metrics   *metrics.Metrics
}

// NewCouponService создает сервис купонов. Кеш, публикация событий и метрики
// подключаются отдельно и необязательны.
func NewCouponService(repo repository.CouponRepository, log *logger.Logger, cfg *config.CouponsConfig) *CouponService {
	limit := config.DefaultActiveLimit
	var ttl time.Duration
	if cfg != nil {
		if cfg.ActiveLimit > 0 {
			limit = cfg.ActiveLimit
		}
		ttl = time.Duration(cfg.ListCacheTTLSeconds) * time.Second
	}
	return &CouponService{
		repo:        repo,
		log:         log,
		activeLimit: limit,
		cacheTTL:    ttl,
	}
}

// WithCache включает кеширование списков. При нулевом TTL кеш не используется.
func (s *CouponService) WithCache(cache listCache) *CouponService {
	if cache != nil && s.cacheTTL > 0 {
		s.cache = cache
	}
	return s
}

// WithPublisher подключает публикацию событий
func (s *CouponService) WithPublisher(p CouponEventPublisher) *CouponService {
	s.publisher = p
	return s
}

// WithMetrics подключает метрики
func (s *CouponService) WithMetrics(m *metrics.Metrics) *CouponService {
	s.metrics = m
	return s
}

// ActiveLimit возвращает действующий лимит активных купонов
func (s *CouponService) ActiveLimit() int {
	return s.activeLimit
}

// List возвращает купоны мерчанта по возрастанию id.
// Пустой фильтр - все купоны, неизвестное значение фильтра - пустой список.
func (s *CouponService) List(ctx context.Context, merchantID int64, statusFilter string) ([]*models.Coupon, error) {
	exists, err := s.repo.MerchantExists(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to check merchant: %w", err)
	}
	if !exists {
		return nil, apperror.NotFound("merchant not found", repository.ErrNotFound)
	}

	var status *models.CouponStatus
	if statusFilter != "" {
		parsed, ok := models.ParseCouponStatus(statusFilter)
		if !ok {
			return []*models.Coupon{}, nil
		}
		status = &parsed
	}

	// key остается пустым, если кеш выключен или поколение не удалось прочитать
	var key string
	if s.cache != nil {
		if gen, ok := s.listGeneration(ctx, merchantID); ok {
			key = redis.MerchantCouponsKey(merchantID, gen, statusFilter)
			if cached, hit := s.cachedList(ctx, key); hit {
				s.metrics.ObserveCacheLookup(true)
				return cached, nil
			}
			s.metrics.ObserveCacheLookup(false)
		}
	}

	coupons, err := s.repo.ListByMerchant(ctx, merchantID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, coupons, s.cacheTTL); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("Failed to cache coupon list")
		}
	}
	return coupons, nil
}

// listGeneration читает поколение списков мерчанта. Читается до обращения
// к хранилищу: выборка, сделанная до коммита записи, кешируется под уже
// устаревшим поколением и больше не отдается.
func (s *CouponService) listGeneration(ctx context.Context, merchantID int64) (int64, bool) {
	gen, err := s.cache.GetInt(ctx, redis.MerchantGenerationKey(merchantID))
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.ErrCacheMiss):
		return 0, true
	default:
		s.log.WithError(err).WithField("merchant_id", merchantID).Warn("Failed to read coupon list generation")
		return 0, false
	}
}

func (s *CouponService) cachedList(ctx context.Context, key string) ([]*models.Coupon, bool) {
	var cached []*models.Coupon
	err := s.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		return cached, cached != nil
	case errors.Is(err, redis.ErrCacheMiss):
	case errors.Is(err, redis.ErrCacheCorrupt):
		s.log.WithError(err).WithField("key", key).Warn("Dropping unreadable coupon list from cache")
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("Failed to drop coupon list from cache")
		}
	default:
		s.log.WithError(err).WithField("key", key).Warn("Failed to read coupon list from cache")
	}
	return nil, false
}

// Detail возвращает купон мерчанта и число счетов, в которых он использован
func (s *CouponService) Detail(ctx context.Context, merchantID, couponID int64) (*models.CouponDetail, error) {
	coupon, err := s.repo.FindByMerchant(ctx, merchantID, couponID)
	if err != nil {
		return nil, err
	}

	useCount, err := s.repo.CountInvoicesByCoupon(ctx, coupon.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count coupon usage: %w", err)
	}

	return &models.CouponDetail{Coupon: coupon, UseCount: useCount}, nil
}

// Create создает купон. Проверка уникальности кода, подсчет активных купонов
// и вставка выполняются под блокировкой мерчанта.
func (s *CouponService) Create(ctx context.Context, merchantID int64, req *models.CreateCouponRequest) (*models.Coupon, error) {
	if req == nil {
		return nil, apperror.Validation("coupon is required", nil)
	}

	coupon := &models.Coupon{
		MerchantID:   merchantID,
		Name:         req.Name,
		Code:         req.Code,
		DiscountType: req.DiscountType,
		Status:       req.Status,
	}
	if req.DiscountValue != nil {
		coupon.DiscountValue = *req.DiscountValue
	}
	if coupon.Status == "" {
		coupon.Status = models.CouponStatusInactive
	}

	err := s.repo.WithMerchantLock(ctx, merchantID, func(ctx context.Context, tx repository.MerchantTx) error {
		vc := models.ValidationContext{ActiveLimit: s.activeLimit}

		if strings.TrimSpace(coupon.Code) != "" {
			taken, err := tx.CodeExists(ctx, coupon.Code)
			if err != nil {
				return fmt.Errorf("failed to check coupon code: %w", err)
			}
			vc.CodeTaken = taken
		}
		if coupon.Status == models.CouponStatusActive {
			active, err := tx.CountActiveByMerchant(ctx, merchantID, 0)
			if err != nil {
				return fmt.Errorf("failed to count active coupons: %w", err)
			}
			vc.ActiveCount = active
		}

		if fieldErrs := coupon.Validate(vc); len(fieldErrs) > 0 {
			return &models.ValidationError{Fields: fieldErrs}
		}
		return tx.Create(ctx, coupon)
	})
	if err != nil {
		err = s.validationFailure(err)
		s.metrics.ObserveCreate(string(coupon.Status), resultOf(err))
		return nil, err
	}

	s.metrics.ObserveCreate(string(coupon.Status), metrics.ResultOK)
	s.log.WithFields(map[string]interface{}{
		"coupon_id":   coupon.ID,
		"merchant_id": merchantID,
		"code":        coupon.Code,
		"status":      coupon.Status,
	}).Info("Coupon created successfully")

	s.afterWrite(ctx, merchantID, func() error {
		if s.publisher == nil {
			return nil
		}
		return s.publisher.PublishCouponCreated(coupon)
	})
	return coupon, nil
}

// Activate переводит купон в статус active с проверкой лимита
func (s *CouponService) Activate(ctx context.Context, merchantID, couponID int64) (*models.Coupon, error) {
	return s.transition(ctx, merchantID, couponID, models.CouponStatusActive)
}

// Deactivate переводит купон в статус inactive
func (s *CouponService) Deactivate(ctx context.Context, merchantID, couponID int64) (*models.Coupon, error) {
	return s.transition(ctx, merchantID, couponID, models.CouponStatusInactive)
}

// UpdateStatus - единая точка смены статуса по строковому значению
func (s *CouponService) UpdateStatus(ctx context.Context, merchantID, couponID int64, status string) (*models.Coupon, error) {
	target, ok := models.ParseCouponStatus(strings.TrimSpace(status))
	if !ok {
		s.metrics.ObserveTransition("invalid", metrics.ResultRejected)
		return nil, apperror.Unprocessable(msgInvalidStatus, ErrInvalidStatusValue)
	}
	return s.transition(ctx, merchantID, couponID, target)
}

func (s *CouponService) transition(ctx context.Context, merchantID, couponID int64, target models.CouponStatus) (*models.Coupon, error) {
	var (
		updated   *models.Coupon
		oldStatus models.CouponStatus
	)

	err := s.repo.WithMerchantLock(ctx, merchantID, func(ctx context.Context, tx repository.MerchantTx) error {
		coupon, err := tx.FindByIDForUpdate(ctx, couponID)
		if err != nil {
			return err
		}
		if coupon.MerchantID != merchantID {
			return apperror.NotFound("coupon not found", repository.ErrNotFound)
		}

		if coupon.Status == target {
			if target == models.CouponStatusActive {
				return apperror.Unprocessable(msgAlreadyActive, ErrAlreadyActive)
			}
			return apperror.Unprocessable(msgAlreadyInactive, ErrAlreadyInactive)
		}

		if target == models.CouponStatusActive {
			active, err := tx.CountActiveByMerchant(ctx, merchantID, coupon.ID)
			if err != nil {
				return fmt.Errorf("failed to count active coupons: %w", err)
			}
			if active >= s.activeLimit {
				return &models.ValidationError{Fields: []models.FieldError{models.ActiveLimitError(s.activeLimit)}}
			}
		}

		oldStatus = coupon.Status
		updated, err = tx.UpdateStatus(ctx, coupon.ID, target)
		return err
	})
	if err != nil {
		err = s.validationFailure(err)
		s.metrics.ObserveTransition(string(target), resultOf(err))
		return nil, err
	}

	s.metrics.ObserveTransition(string(target), metrics.ResultOK)
	s.log.WithFields(map[string]interface{}{
		"coupon_id":   updated.ID,
		"merchant_id": merchantID,
		"old_status":  oldStatus,
		"new_status":  updated.Status,
	}).Info("Coupon status updated")

	s.afterWrite(ctx, merchantID, func() error {
		if s.publisher == nil {
			return nil
		}
		return s.publisher.PublishCouponStatusChanged(updated, oldStatus)
	})
	return updated, nil
}

// validationFailure приводит ошибки валидации (включая гонку за код на уровне
// хранилища) к apperror с сообщением на каждое нарушение.
func (s *CouponService) validationFailure(err error) error {
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		if !errors.Is(err, models.ErrDuplicateCode) {
			return err
		}
		verr = &models.ValidationError{Fields: []models.FieldError{{
			Field:   "code",
			Reason:  models.ReasonDuplicateCode,
			Message: "Code has already been taken",
		}}}
	}

	reasons := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		reasons = append(reasons, f.Reason)
	}
	s.metrics.ObserveValidationFailure(reasons...)

	return apperror.ValidationDetails("coupon is invalid", verr.Messages(), verr)
}

// afterWrite сбрасывает кеш списков мерчанта и публикует событие.
// Ошибки только логируются: запись уже зафиксирована.
func (s *CouponService) afterWrite(ctx context.Context, merchantID int64, publish func() error) {
	s.InvalidateMerchant(ctx, merchantID)
	if err := publish(); err != nil {
		s.log.WithError(err).WithField("merchant_id", merchantID).Warn("Failed to publish coupon event")
	}
}

// InvalidateMerchant переводит списки мерчанта в новое поколение и удаляет старые записи
func (s *CouponService) InvalidateMerchant(ctx context.Context, merchantID int64) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, redis.MerchantGenerationKey(merchantID)); err != nil {
		s.log.WithError(err).WithField("merchant_id", merchantID).Warn("Failed to bump coupon list generation")
	}
	if err := s.cache.DeleteByPrefix(ctx, redis.MerchantCouponsPrefix(merchantID)); err != nil {
		s.log.WithError(err).WithField("merchant_id", merchantID).Warn("Failed to invalidate coupon list cache")
	}
}

func resultOf(err error) string {
	if apperror.Is(err, apperror.KindValidation) || apperror.Is(err, apperror.KindUnprocessable) || apperror.Is(err, apperror.KindNotFound) {
		return metrics.ResultRejected
	}
	return metrics.ResultError
}
