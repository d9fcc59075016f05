package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Idempotent, aman dijalankan tiap start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id                 TEXT PRIMARY KEY,
		owner_id           TEXT NOT NULL,
		name               TEXT NOT NULL,
		category           TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		unit               TEXT NOT NULL,
		price              NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		available_quantity INT NOT NULL CHECK (available_quantity >= 0),
		status             TEXT NOT NULL,
		is_organic         BOOLEAN NOT NULL DEFAULT FALSE,
		harvest_date       TIMESTAMPTZ,
		views              BIGINT NOT NULL DEFAULT 0,
		version            BIGINT NOT NULL DEFAULT 1,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS products_owner_status_idx ON products(owner_id, status)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		buyer_id         TEXT NOT NULL,
		farmer_id        TEXT NOT NULL,
		product_id       TEXT NOT NULL,
		quantity         INT NOT NULL CHECK (quantity >= 1),
		unit_price       NUMERIC(12,2) NOT NULL,
		total_amount     NUMERIC(14,2) NOT NULL,
		status           TEXT NOT NULL,
		payment_method   TEXT NOT NULL,
		payment_status   TEXT NOT NULL,
		delivery_address TEXT NOT NULL DEFAULT '',
		delivery_city    TEXT NOT NULL DEFAULT '',
		delivery_state   TEXT NOT NULL DEFAULT '',
		delivery_pincode TEXT NOT NULL DEFAULT '',
		delivery_phone   TEXT NOT NULL DEFAULT '',
		notes            TEXT NOT NULL DEFAULT '',
		delivered_at     TIMESTAMPTZ,
		version          BIGINT NOT NULL DEFAULT 1,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1`,
	`CREATE INDEX IF NOT EXISTS orders_farmer_created_idx ON orders(farmer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_buyer_created_idx ON orders(buyer_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_events (
		event_id       TEXT PRIMARY KEY,
		event_type     TEXT NOT NULL,
		event_version  INT NOT NULL,
		order_id       TEXT NOT NULL,
		producer       TEXT NOT NULL,
		trace_id       TEXT NOT NULL DEFAULT '',
		payload        JSONB NOT NULL,
		occurred_at    TIMESTAMPTZ NOT NULL,
		recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS order_events_order_idx ON order_events(order_id, occurred_at)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema step %d: %w", i, err)
		}
	}
	return nil
}
