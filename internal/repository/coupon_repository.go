package repository

import (
	"context"
	"errors"

	"coupon-service/internal/apperror"
	"coupon-service/internal/models"
)

// ErrNotFound is wrapped by every not-found error the repositories return.
var ErrNotFound = errors.New("record not found")

func couponNotFound() error   { return apperror.NotFound("coupon not found", ErrNotFound) }
func merchantNotFound() error { return apperror.NotFound("merchant not found", ErrNotFound) }

// CouponRepository defines coupon persistence and the queries around it.
type CouponRepository interface {
	GetMerchant(ctx context.Context, merchantID int64) (*models.Merchant, error)
	MerchantExists(ctx context.Context, merchantID int64) (bool, error)

	FindByID(ctx context.Context, id int64) (*models.Coupon, error)
	// FindByMerchant returns the coupon only when it belongs to merchantID.
	FindByMerchant(ctx context.Context, merchantID, id int64) (*models.Coupon, error)
	// ListByMerchant returns coupons ordered by id; a nil status means no filter.
	ListByMerchant(ctx context.Context, merchantID int64, status *models.CouponStatus) ([]*models.Coupon, error)
	CodeExists(ctx context.Context, code string) (bool, error)

	CountInvoicesByCoupon(ctx context.Context, couponID int64) (int, error)
	CountCouponsByMerchant(ctx context.Context, merchantID int64) (int, error)
	CountCouponInvoicesByMerchant(ctx context.Context, merchantID int64) (int, error)

	// WithMerchantLock runs fn with every write for merchantID serialized against
	// other WithMerchantLock calls for the same merchant. Writes made through tx
	// are committed only if fn returns nil. Returns a not-found error if the
	// merchant does not exist.
	WithMerchantLock(ctx context.Context, merchantID int64, fn func(ctx context.Context, tx MerchantTx) error) error
}

// MerchantTx is the write surface available inside WithMerchantLock.
type MerchantTx interface {
	// Create assigns ID and timestamps. Returns an error wrapping
	// models.ErrDuplicateCode when the code is taken.
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByIDForUpdate(ctx context.Context, id int64) (*models.Coupon, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// CountActiveByMerchant counts active coupons, skipping excludeID (0 skips nothing).
	CountActiveByMerchant(ctx context.Context, merchantID, excludeID int64) (int, error)
	UpdateStatus(ctx context.Context, id int64, status models.CouponStatus) (*models.Coupon, error)
}
