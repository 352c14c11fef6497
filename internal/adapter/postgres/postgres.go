// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"slimmom/internal/domain"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

var (
	_ domain.LedgerRepository  = (*DB)(nil)
	_ domain.UserRepository    = (*DB)(nil)
	_ domain.SessionRepository = (*SessionRepo)(nil)
	_ domain.Catalog           = (*DB)(nil)
)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.sql.PingContext(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, username TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL DEFAULT '', created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE, user_agent TEXT NOT NULL DEFAULT '', ip TEXT NOT NULL DEFAULT '', expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
		"CREATE TABLE IF NOT EXISTS products (id TEXT PRIMARY KEY, title TEXT NOT NULL, calories_per_100g NUMERIC(8,2) NOT NULL CHECK (calories_per_100g >= 0));",
		`CREATE TABLE IF NOT EXISTS diary_entries (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			day DATE NOT NULL,
			product_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			quantity_grams NUMERIC(10,2) NOT NULL CHECK (quantity_grams > 0),
			calories_per_100g NUMERIC(8,2) NOT NULL,
			calories_snapshot NUMERIC(12,2) NOT NULL CHECK (calories_snapshot >= 0),
			created_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_diary_entries_user_day ON diary_entries(user_id, day, seq);",
		`CREATE TABLE IF NOT EXISTS day_totals (
			user_id TEXT NOT NULL,
			day DATE NOT NULL,
			total_calories NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (total_calories >= 0),
			entry_count INTEGER NOT NULL DEFAULT 0 CHECK (entry_count >= 0),
			needs_reconcile BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, day)
		);`,
		"CREATE INDEX IF NOT EXISTS idx_day_totals_flagged ON day_totals(user_id, day) WHERE needs_reconcile;",
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			age INTEGER NOT NULL,
			height_cm INTEGER NOT NULL,
			current_weight_kg NUMERIC(5,2) NOT NULL,
			desired_weight_kg NUMERIC(5,2) NOT NULL,
			blood_type SMALLINT NOT NULL CHECK (blood_type BETWEEN 1 AND 4),
			gender TEXT NOT NULL,
			activity_level TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing on success.
func (d *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return d.withTxOptions(ctx, op, nil, fn)
}

func (d *DB) withTxOptions(ctx context.Context, op string, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, opts)
	if err != nil {
		return mapErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr(op, err)
	}
	return nil
}

// mapErr classifies driver errors. Serialization failures, deadlocks, lock
// timeouts and deadlines become domain.ErrTransient; domain errors pass
// through untouched.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{domain.ErrNotFound, domain.ErrForbidden, domain.ErrInvalidInput, domain.ErrTransient} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.Transient("postgres: "+op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return domain.Transient("postgres: "+op, err)
		}
		if pqErr.Code.Class() == "08" {
			return domain.Transient("postgres: "+op, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return domain.Transient("postgres: "+op, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
