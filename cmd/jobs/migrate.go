// cmd/jobs/migrate.go
package main

import (
	"fmt"
	"log"

	"github.com/urfave/cli/v2"
)

// migrations run in order inside one transaction. Every statement is
// idempotent so the command can be re-run safely.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS stores (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		lead_time_days INT NOT NULL DEFAULT 3,
		order_interval_days INT NOT NULL DEFAULT 7
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		supplier_name TEXT NOT NULL,
		unit_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
		retail_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		lot_size INT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS stock_levels (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL REFERENCES stores(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (store_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_sales (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL REFERENCES stores(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		sale_date DATE NOT NULL,
		quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		UNIQUE (store_id, product_id, sale_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_sales_lookup
		ON daily_sales (store_id, product_id, sale_date)`,
	`CREATE TABLE IF NOT EXISTS forecast_snapshots (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL,
		product_id TEXT NOT NULL,
		forecast_date DATE NOT NULL,
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		predicted_qty DOUBLE PRECISION NOT NULL DEFAULT 0,
		algorithm TEXT NOT NULL DEFAULT '',
		rank TEXT NOT NULL DEFAULT 'E',
		safety_stock DOUBLE PRECISION NOT NULL DEFAULT 0,
		recommended_order INT NOT NULL DEFAULT 0,
		evaluated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (store_id, product_id, forecast_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_forecast_snapshots_pending
		ON forecast_snapshots (evaluated, period_end)`,
	`CREATE TABLE IF NOT EXISTS forecast_accuracy (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL,
		product_id TEXT NOT NULL,
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		predicted_qty DOUBLE PRECISION NOT NULL DEFAULT 0,
		actual_qty DOUBLE PRECISION NOT NULL DEFAULT 0,
		forecast_error DOUBLE PRECISION NOT NULL DEFAULT 0,
		abs_error DOUBLE PRECISION NOT NULL DEFAULT 0,
		mape DOUBLE PRECISION NOT NULL DEFAULT 0,
		bias DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (store_id, product_id, period_start)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_forecast_accuracy_recent
		ON forecast_accuracy (store_id, product_id, period_start DESC)`,
	`CREATE TABLE IF NOT EXISTS product_forecast_params (
		id BIGSERIAL PRIMARY KEY,
		store_id BIGINT NOT NULL,
		product_id TEXT NOT NULL,
		bias_correction DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		safety_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		best_lookback_days INT NOT NULL DEFAULT 28,
		dow_reliability DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		weekly_mape DOUBLE PRECISION NOT NULL DEFAULT 0,
		weekly_bias DOUBLE PRECISION NOT NULL DEFAULT 0,
		learning_cycles INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (store_id, product_id)
	)`,
}

func runMigrate(c *cli.Context) error {
	ctx := c.Context

	tx, err := jobsDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	log.Println("Applying schema migrations...")

	for i, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	log.Printf("Applied %d migration statements\n", len(migrations))
	return nil
}
