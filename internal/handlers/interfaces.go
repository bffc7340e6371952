package handlers

import (
	"context"

	"coupon-service/internal/models"
)

// ----- Coupons -----

type CouponService interface {
	List(ctx context.Context, merchantID int64, statusFilter string) ([]*models.Coupon, error)
	Detail(ctx context.Context, merchantID, couponID int64) (*models.CouponDetail, error)
	Create(ctx context.Context, merchantID int64, req *models.CreateCouponRequest) (*models.Coupon, error)
	UpdateStatus(ctx context.Context, merchantID, couponID int64, status string) (*models.Coupon, error)
}

// ----- Merchants -----

type MerchantService interface {
	Summary(ctx context.Context, merchantID int64, views ...models.MerchantView) (*models.MerchantSummary, error)
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
