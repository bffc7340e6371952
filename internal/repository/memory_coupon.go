package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coupon-service/internal/models"
)

// MemoryCouponRepository keeps merchants, coupons and invoices in process memory.
// It is used by tests and by the "memory" store driver.
type MemoryCouponRepository struct {
	mu        sync.RWMutex
	merchants map[int64]*models.Merchant
	coupons   map[int64]*models.Coupon
	invoices  map[int64]memoryInvoice

	nextMerchantID int64
	nextCouponID   int64
	nextInvoiceID  int64

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	now func() time.Time
}

type memoryInvoice struct {
	merchantID int64
	couponID   *int64
}

// NewMemoryCouponRepository creates an empty in-memory repository.
func NewMemoryCouponRepository() *MemoryCouponRepository {
	return &MemoryCouponRepository{
		merchants: make(map[int64]*models.Merchant),
		coupons:   make(map[int64]*models.Coupon),
		invoices:  make(map[int64]memoryInvoice),
		locks:     make(map[int64]*sync.Mutex),
		now:       time.Now,
	}
}

// AddMerchant registers a merchant and returns it with its assigned id.
func (r *MemoryCouponRepository) AddMerchant(name string) *models.Merchant {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextMerchantID++
	m := &models.Merchant{ID: r.nextMerchantID, Name: name}
	r.merchants[m.ID] = m
	return &models.Merchant{ID: m.ID, Name: m.Name}
}

// AddInvoice records an invoice of merchantID, optionally referencing a coupon.
func (r *MemoryCouponRepository) AddInvoice(merchantID int64, couponID *int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextInvoiceID++
	var ref *int64
	if couponID != nil {
		id := *couponID
		ref = &id
	}
	r.invoices[r.nextInvoiceID] = memoryInvoice{merchantID: merchantID, couponID: ref}
	return r.nextInvoiceID
}

func cloneCoupon(c *models.Coupon) *models.Coupon {
	cp := *c
	return &cp
}

func (r *MemoryCouponRepository) GetMerchant(_ context.Context, merchantID int64) (*models.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[merchantID]
	if !ok {
		return nil, merchantNotFound()
	}
	return &models.Merchant{ID: m.ID, Name: m.Name}, nil
}

func (r *MemoryCouponRepository) MerchantExists(_ context.Context, merchantID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.merchants[merchantID]
	return ok, nil
}

func (r *MemoryCouponRepository) FindByID(_ context.Context, id int64) (*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coupons[id]
	if !ok {
		return nil, couponNotFound()
	}
	return cloneCoupon(c), nil
}

func (r *MemoryCouponRepository) FindByMerchant(_ context.Context, merchantID, id int64) (*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coupons[id]
	if !ok || c.MerchantID != merchantID {
		return nil, couponNotFound()
	}
	return cloneCoupon(c), nil
}

func (r *MemoryCouponRepository) ListByMerchant(_ context.Context, merchantID int64, status *models.CouponStatus) ([]*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Coupon, 0)
	for _, c := range r.coupons {
		if c.MerchantID != merchantID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		out = append(out, cloneCoupon(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryCouponRepository) CodeExists(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codeTakenLocked(code, 0), nil
}

func (r *MemoryCouponRepository) codeTakenLocked(code string, exceptID int64) bool {
	for _, c := range r.coupons {
		if c.Code == code && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *MemoryCouponRepository) CountInvoicesByCoupon(_ context.Context, couponID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, inv := range r.invoices {
		if inv.couponID != nil && *inv.couponID == couponID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryCouponRepository) CountCouponsByMerchant(_ context.Context, merchantID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.coupons {
		if c.MerchantID == merchantID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryCouponRepository) CountCouponInvoicesByMerchant(_ context.Context, merchantID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, inv := range r.invoices {
		if inv.merchantID == merchantID && inv.couponID != nil {
			n++
		}
	}
	return n, nil
}

func (r *MemoryCouponRepository) merchantLock(merchantID int64) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[merchantID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[merchantID] = l
	}
	return l
}

// WithMerchantLock serializes fn per merchant with a mutex. Writes are staged
// in the transaction and applied atomically when fn succeeds.
func (r *MemoryCouponRepository) WithMerchantLock(ctx context.Context, merchantID int64, fn func(ctx context.Context, tx MerchantTx) error) error {
	if exists, _ := r.MerchantExists(ctx, merchantID); !exists {
		return merchantNotFound()
	}

	l := r.merchantLock(merchantID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryMerchantTx{repo: r, staged: make(map[int64]*models.Coupon)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

type memoryMerchantTx struct {
	repo   *MemoryCouponRepository
	staged map[int64]*models.Coupon
	order  []int64
}

// get returns the coupon as seen by this transaction.
func (t *memoryMerchantTx) get(id int64) (*models.Coupon, bool) {
	if c, ok := t.staged[id]; ok {
		return c, true
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	c, ok := t.repo.coupons[id]
	if !ok {
		return nil, false
	}
	return cloneCoupon(c), true
}

func (t *memoryMerchantTx) stage(c *models.Coupon) {
	if _, ok := t.staged[c.ID]; !ok {
		t.order = append(t.order, c.ID)
	}
	t.staged[c.ID] = c
}

func (t *memoryMerchantTx) Create(ctx context.Context, c *models.Coupon) error {
	taken, _ := t.CodeExists(ctx, c.Code)
	if taken {
		return fmt.Errorf("failed to create coupon: %w", models.ErrDuplicateCode)
	}

	t.repo.mu.Lock()
	t.repo.nextCouponID++
	c.ID = t.repo.nextCouponID
	t.repo.mu.Unlock()

	now := t.repo.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	t.stage(cloneCoupon(c))
	return nil
}

func (t *memoryMerchantTx) FindByIDForUpdate(_ context.Context, id int64) (*models.Coupon, error) {
	c, ok := t.get(id)
	if !ok {
		return nil, couponNotFound()
	}
	return cloneCoupon(c), nil
}

func (t *memoryMerchantTx) CodeExists(_ context.Context, code string) (bool, error) {
	for _, c := range t.staged {
		if c.Code == code {
			return true, nil
		}
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	return t.repo.codeTakenLocked(code, 0), nil
}

func (t *memoryMerchantTx) CountActiveByMerchant(_ context.Context, merchantID, excludeID int64) (int, error) {
	seen := make(map[int64]bool, len(t.staged))
	n := 0
	for id, c := range t.staged {
		seen[id] = true
		if id != excludeID && c.MerchantID == merchantID && c.IsActive() {
			n++
		}
	}

	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	for id, c := range t.repo.coupons {
		if seen[id] || id == excludeID {
			continue
		}
		if c.MerchantID == merchantID && c.IsActive() {
			n++
		}
	}
	return n, nil
}

func (t *memoryMerchantTx) UpdateStatus(_ context.Context, id int64, status models.CouponStatus) (*models.Coupon, error) {
	c, ok := t.get(id)
	if !ok {
		return nil, couponNotFound()
	}
	c.Status = status
	c.UpdatedAt = t.repo.now()
	t.stage(c)
	return cloneCoupon(c), nil
}

func (t *memoryMerchantTx) commit() error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	// codes are global, so another merchant may have taken one since Create
	for _, id := range t.order {
		c := t.staged[id]
		if t.repo.codeTakenLocked(c.Code, c.ID) {
			return fmt.Errorf("failed to create coupon: %w", models.ErrDuplicateCode)
		}
	}
	for _, id := range t.order {
		t.repo.coupons[id] = t.staged[id]
	}
	return nil
}
