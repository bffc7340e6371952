package database

import (
	"context"
	"fmt"
)

// schema описывает таблицы, которые читает и пишет сервис купонов.
// merchants и invoices принадлежат соседним сервисам, здесь создаются только при их отсутствии.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS merchants (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id             BIGSERIAL PRIMARY KEY,
		merchant_id    BIGINT NOT NULL REFERENCES merchants(id),
		name           TEXT NOT NULL,
		code           TEXT NOT NULL,
		discount_type  TEXT NOT NULL,
		discount_value DOUBLE PRECISION NOT NULL,
		status         TEXT NOT NULL DEFAULT 'inactive',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT coupons_code_key UNIQUE (code),
		CONSTRAINT coupons_discount_type_check CHECK (discount_type IN ('percent_off', 'dollar_off')),
		CONSTRAINT coupons_discount_value_check CHECK (discount_value > 0),
		CONSTRAINT coupons_status_check CHECK (status IN ('active', 'inactive'))
	)`,
	`CREATE INDEX IF NOT EXISTS index_coupons_on_merchant_id_and_status ON coupons (merchant_id, status)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id          BIGSERIAL PRIMARY KEY,
		merchant_id BIGINT NOT NULL REFERENCES merchants(id),
		coupon_id   BIGINT REFERENCES coupons(id),
		status      TEXT NOT NULL DEFAULT 'packaged',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS index_invoices_on_coupon_id ON invoices (coupon_id)`,
}

// Migrate применяет схему в одной транзакции
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
