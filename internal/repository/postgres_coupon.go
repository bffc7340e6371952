package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coupon-service/internal/database"
	"coupon-service/internal/models"

	"github.com/lib/pq"
)

const couponColumns = "id, merchant_id, name, code, discount_type, discount_value, status, created_at, updated_at"

const (
	pqUniqueViolation  = "23505"
	couponCodeUniqueIx = "coupons_code_key"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresCouponRepository implements CouponRepository on PostgreSQL.
type PostgresCouponRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewPostgresCouponRepository creates a PostgreSQL-backed coupon repository.
func NewPostgresCouponRepository(db *database.DB) *PostgresCouponRepository {
	return &PostgresCouponRepository{db: db, now: time.Now}
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	if err := row.Scan(&c.ID, &c.MerchantID, &c.Name, &c.Code, &c.DiscountType, &c.DiscountValue, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCouponRepository) GetMerchant(ctx context.Context, merchantID int64) (*models.Merchant, error) {
	m := &models.Merchant{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM merchants WHERE id = $1`, merchantID).Scan(&m.ID, &m.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, merchantNotFound()
		}
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return m, nil
}

func (r *PostgresCouponRepository) MerchantExists(ctx context.Context, merchantID int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM merchants WHERE id = $1)`, merchantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check merchant: %w", err)
	}
	return exists, nil
}

func (r *PostgresCouponRepository) FindByID(ctx context.Context, id int64) (*models.Coupon, error) {
	return findCoupon(ctx, r.db, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)
}

func (r *PostgresCouponRepository) FindByMerchant(ctx context.Context, merchantID, id int64) (*models.Coupon, error) {
	return findCoupon(ctx, r.db, `SELECT `+couponColumns+` FROM coupons WHERE id = $1 AND merchant_id = $2`, id, merchantID)
}

func findCoupon(ctx context.Context, q queryer, query string, args ...interface{}) (*models.Coupon, error) {
	c, err := scanCoupon(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, couponNotFound()
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

func (r *PostgresCouponRepository) ListByMerchant(ctx context.Context, merchantID int64, status *models.CouponStatus) ([]*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE merchant_id = $1`
	args := []interface{}{merchantID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := make([]*models.Coupon, 0)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}
	return coupons, nil
}

func (r *PostgresCouponRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	return codeExists(ctx, r.db, code)
}

func codeExists(ctx context.Context, q queryer, code string) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM coupons WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check coupon code: %w", err)
	}
	return exists, nil
}

func (r *PostgresCouponRepository) CountInvoicesByCoupon(ctx context.Context, couponID int64) (int, error) {
	return r.count(ctx, "invoices by coupon", `SELECT COUNT(*) FROM invoices WHERE coupon_id = $1`, couponID)
}

func (r *PostgresCouponRepository) CountCouponsByMerchant(ctx context.Context, merchantID int64) (int, error) {
	return r.count(ctx, "coupons by merchant", `SELECT COUNT(*) FROM coupons WHERE merchant_id = $1`, merchantID)
}

func (r *PostgresCouponRepository) CountCouponInvoicesByMerchant(ctx context.Context, merchantID int64) (int, error) {
	return r.count(ctx, "coupon invoices by merchant", `SELECT COUNT(*) FROM invoices WHERE merchant_id = $1 AND coupon_id IS NOT NULL`, merchantID)
}

func (r *PostgresCouponRepository) count(ctx context.Context, what, query string, args ...interface{}) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", what, err)
	}
	return n, nil
}

// WithMerchantLock takes a row lock on the merchant for the lifetime of the
// transaction, so concurrent writers for one merchant run one after another
// while other merchants are unaffected.
func (r *PostgresCouponRepository) WithMerchantLock(ctx context.Context, merchantID int64, fn func(ctx context.Context, tx MerchantTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM merchants WHERE id = $1 FOR UPDATE`, merchantID).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return merchantNotFound()
		}
		return fmt.Errorf("failed to lock merchant: %w", err)
	}

	if err := fn(ctx, &postgresMerchantTx{tx: tx, now: r.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresMerchantTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *postgresMerchantTx) Create(ctx context.Context, c *models.Coupon) error {
	now := t.now()
	query := `
		INSERT INTO coupons (merchant_id, name, code, discount_type, discount_value, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := t.tx.QueryRowContext(ctx, query, c.MerchantID, c.Name, c.Code, string(c.DiscountType), c.DiscountValue, string(c.Status), now, now).Scan(&c.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation && (pqErr.Constraint == "" || pqErr.Constraint == couponCodeUniqueIx) {
			return fmt.Errorf("failed to create coupon: %w", models.ErrDuplicateCode)
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (t *postgresMerchantTx) FindByIDForUpdate(ctx context.Context, id int64) (*models.Coupon, error) {
	return findCoupon(ctx, t.tx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1 FOR UPDATE`, id)
}

func (t *postgresMerchantTx) CodeExists(ctx context.Context, code string) (bool, error) {
	return codeExists(ctx, t.tx, code)
}

func (t *postgresMerchantTx) CountActiveByMerchant(ctx context.Context, merchantID, excludeID int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM coupons WHERE merchant_id = $1 AND status = $2 AND id <> $3`
	if err := t.tx.QueryRowContext(ctx, query, merchantID, string(models.CouponStatusActive), excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active coupons: %w", err)
	}
	return n, nil
}

func (t *postgresMerchantTx) UpdateStatus(ctx context.Context, id int64, status models.CouponStatus) (*models.Coupon, error) {
	query := `UPDATE coupons SET status = $1, updated_at = $2 WHERE id = $3 RETURNING ` + couponColumns
	return findCoupon(ctx, t.tx, query, string(status), t.now(), id)
}
