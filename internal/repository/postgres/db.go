package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/ordercast/ordercast/internal/config"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute

	// maxConcurrentTx bounds transactions across the process so a burst
	// of snapshot writes cannot starve the read path of pool slots.
	maxConcurrentTx = 10
)

// DB wraps the sqlx pool with a transaction gate shared by all
// repositories.
type DB struct {
	*sqlx.DB
	txGate *semaphore.Weighted
}

var (
	dbInstance *DB
	once       sync.Once
)

// NewDB opens the shared connection pool. Repeated calls return the
// same instance.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var err error
	once.Do(func() {
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

		var pool *sqlx.DB
		pool, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			err = fmt.Errorf("connect to postgres: %w", err)
			return
		}

		pool.SetMaxOpenConns(maxOpenConns)
		pool.SetMaxIdleConns(maxIdleConns)
		pool.SetConnMaxLifetime(connMaxLifetime)

		dbInstance = &DB{
			DB:     pool,
			txGate: semaphore.NewWeighted(maxConcurrentTx),
		}
	})

	return dbInstance, err
}

// WithTx runs fn inside a transaction, committing on nil and rolling
// back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := db.txGate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire tx slot: %w", err)
	}
	defer db.txGate.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx.Tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
