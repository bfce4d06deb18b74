// cmd/jobs/seed.go
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"
)

func runSeed(c *cli.Context) error {
	dataDir := c.String("data-dir")
	ctx := c.Context

	tx, err := jobsDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	log.Println("Starting database seeding...")

	if err := seedTable(ctx, tx, "stores", []string{"name"},
		`INSERT INTO stores (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET updated_at = NOW()`,
		filepath.Join(dataDir, "stores.csv")); err != nil {
		return fmt.Errorf("failed to seed stores: %w", err)
	}

	if err := seedTable(ctx, tx, "suppliers", []string{"name", "lead_time_days", "order_interval_days"},
		`INSERT INTO suppliers (name, lead_time_days, order_interval_days)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET
			lead_time_days = EXCLUDED.lead_time_days,
			order_interval_days = EXCLUDED.order_interval_days`,
		filepath.Join(dataDir, "suppliers.csv")); err != nil {
		return fmt.Errorf("failed to seed suppliers: %w", err)
	}

	if err := seedTable(ctx, tx, "products", []string{"id", "name", "supplier_name", "unit_cost", "retail_price", "lot_size"},
		`INSERT INTO products (id, name, supplier_name, unit_cost, retail_price, lot_size)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			supplier_name = EXCLUDED.supplier_name,
			unit_cost = EXCLUDED.unit_cost,
			retail_price = EXCLUDED.retail_price,
			lot_size = EXCLUDED.lot_size`,
		filepath.Join(dataDir, "products.csv")); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	if err := seedStockLevels(ctx, tx, filepath.Join(dataDir, "stock_levels.csv")); err != nil {
		return fmt.Errorf("failed to seed stock levels: %w", err)
	}

	if err := seedDailySales(ctx, tx, filepath.Join(dataDir, "daily_sales.csv")); err != nil {
		return fmt.Errorf("failed to seed daily sales: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// seedTable loads one CSV into one table. Columns are matched to the
// CSV header by name, so column order in the file does not matter.
func seedTable(ctx context.Context, tx *sql.Tx, tableName string, columns []string, query, filePath string) error {
	log.Printf("Seeding %s from %s\n", tableName, filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	indexes := make([]int, len(columns))
	for i, col := range columns {
		idx := columnIndex(header, col)
		if idx < 0 {
			return fmt.Errorf("column %q missing from %s", col, filePath)
		}
		indexes[i] = idx
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert for %s: %w", tableName, err)
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}

		args := make([]interface{}, len(columns))
		for i, idx := range indexes {
			if idx >= len(record) {
				return fmt.Errorf("record %d too short for column %q", rows+1, columns[i])
			}
			args[i] = record[idx]
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", rows+1, err)
		}
		rows++
	}

	log.Printf("Successfully seeded %s (%d rows)\n", tableName, rows)
	return nil
}

// seedStockLevels resolves the store by name so seed files carry store
// names, not database ids. A missing file is skipped.
func seedStockLevels(ctx context.Context, tx *sql.Tx, filePath string) error {
	query := `
		INSERT INTO stock_levels (store_id, product_id, quantity, updated_at)
		SELECT s.id, $2, $3, NOW()
		FROM stores s
		WHERE s.name = $1
		ON CONFLICT (store_id, product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			updated_at = NOW()
	`

	return seedStoreScoped(ctx, tx, "stock_levels", filePath, query, false)
}

// seedDailySales loads the realized sales history. A missing file is
// skipped.
func seedDailySales(ctx context.Context, tx *sql.Tx, filePath string) error {
	query := `
		INSERT INTO daily_sales (store_id, product_id, sale_date, quantity)
		SELECT s.id, $2, $3, $4
		FROM stores s
		WHERE s.name = $1
		ON CONFLICT (store_id, product_id, sale_date) DO UPDATE SET
			quantity = EXCLUDED.quantity
	`

	return seedStoreScoped(ctx, tx, "daily_sales", filePath, query, true)
}

func seedStoreScoped(ctx context.Context, tx *sql.Tx, tableName, filePath, query string, withDate bool) error {
	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("No %s file at %s, skipping\n", tableName, filePath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	log.Printf("Seeding %s from %s\n", tableName, filePath)

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	storeIdx := columnIndex(header, "store_name")
	productIdx := columnIndex(header, "product_id")
	qtyIdx := columnIndex(header, "quantity")
	dateIdx := columnIndex(header, "sale_date")
	if storeIdx < 0 || productIdx < 0 || qtyIdx < 0 || (withDate && dateIdx < 0) {
		return fmt.Errorf("missing required columns in %s", filePath)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert for %s: %w", tableName, err)
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}

		qty, err := strconv.ParseFloat(record[qtyIdx], 64)
		if err != nil {
			return fmt.Errorf("invalid quantity %q in record %d: %w", record[qtyIdx], rows+1, err)
		}

		if withDate {
			_, err = stmt.ExecContext(ctx, record[storeIdx], record[productIdx], record[dateIdx], qty)
		} else {
			_, err = stmt.ExecContext(ctx, record[storeIdx], record[productIdx], qty)
		}
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", rows+1, err)
		}
		rows++
	}

	log.Printf("Successfully seeded %s (%d rows)\n", tableName, rows)
	return nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
