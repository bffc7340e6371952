package services

import (
	"context"
	"fmt"

	"coupon-service/internal/logger"
	"coupon-service/internal/models"
	"coupon-service/internal/repository"

	"golang.org/x/sync/errgroup"
)

// MerchantService отдает сводку по мерчанту
type MerchantService struct {
	repo repository.CouponRepository
	log  *logger.Logger
}

// NewMerchantService создает сервис мерчантов
func NewMerchantService(repo repository.CouponRepository, log *logger.Logger) *MerchantService {
	return &MerchantService{repo: repo, log: log}
}

// Summary возвращает мерчанта и запрошенные счетчики. Счетчики считаются параллельно.
func (s *MerchantService) Summary(ctx context.Context, merchantID int64, views ...models.MerchantView) (*models.MerchantSummary, error) {
	merchant, err := s.repo.GetMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	summary := &models.MerchantSummary{Merchant: merchant}

	var wantCoupons, wantInvoices bool
	for _, v := range views {
		switch v {
		case models.MerchantViewCouponCount:
			wantCoupons = true
		case models.MerchantViewInvoiceCouponCount:
			wantInvoices = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if wantCoupons {
		g.Go(func() error {
			n, err := s.repo.CountCouponsByMerchant(gctx, merchantID)
			if err != nil {
				return fmt.Errorf("failed to count coupons: %w", err)
			}
			summary.CouponsCount = &n
			return nil
		})
	}
	if wantInvoices {
		g.Go(func() error {
			n, err := s.repo.CountCouponInvoicesByMerchant(gctx, merchantID)
			if err != nil {
				return fmt.Errorf("failed to count invoices with coupons: %w", err)
			}
			summary.InvoiceCouponCount = &n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithError(err).WithField("merchant_id", merchantID).Error("Failed to build merchant summary")
		return nil, err
	}

	return summary, nil
}
