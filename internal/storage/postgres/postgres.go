// Package postgres implements the domain repositories on PostgreSQL.
//
// Customer-owned tables are protected by row-level security keyed on the
// app.customer_id setting. Every customer-scoped call runs in its own
// transaction that sets it first, and queries filter on customer_id as well.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galadrinks/storefront/db"
)

// NewPool creates a pgxpool.Pool for databaseURL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

const scopeSQL = `SELECT set_config('app.customer_id', $1, true)`

// inCustomerTx runs fn in a transaction scoped to customerID. The setting is
// transaction-local and disappears on commit or rollback.
func inCustomerTx(ctx context.Context, pool *pgxpool.Pool, customerID string, fn func(tx pgx.Tx) error) error {
	if _, err := uuid.Parse(customerID); err != nil {
		return fmt.Errorf("invalid customer id %q: %w", customerID, err)
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, scopeSQL, customerID); err != nil {
			return fmt.Errorf("scoping transaction: %w", err)
		}
		return fn(tx)
	})
}

// validID reports whether id can be compared against a UUID column. Lookups
// by malformed ids are answered as not found instead of a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
