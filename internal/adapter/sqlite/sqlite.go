// Package sqlite implements the domain repositories on an embedded SQLite
// database, for single-node deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

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

// Open opens (creating if needed) the database at path and runs migrations.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*DB, error) {
	s, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; transactions take the write lock up front.
	s.SetMaxOpenConns(1)
	if err := s.Ping(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	d := &DB{sql: s}
	if err := d.migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + q.Encode()
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return mapErr("ping", d.sql.PingContext(ctx))
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_agent TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			calories_per_100g TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS diary_entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			user_id TEXT NOT NULL,
			day TEXT NOT NULL,
			product_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			quantity_grams TEXT NOT NULL,
			calories_per_100g TEXT NOT NULL,
			snapshot_centi INTEGER NOT NULL CHECK (snapshot_centi >= 0),
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_diary_entries_user_day ON diary_entries(user_id, day, seq);`,
		`CREATE TABLE IF NOT EXISTS day_totals (
			user_id TEXT NOT NULL,
			day TEXT NOT NULL,
			total_centi INTEGER NOT NULL DEFAULT 0 CHECK (total_centi >= 0),
			entry_count INTEGER NOT NULL DEFAULT 0 CHECK (entry_count >= 0),
			needs_reconcile INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, day)
		);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			age INTEGER NOT NULL,
			height_cm INTEGER NOT NULL,
			current_weight_kg TEXT NOT NULL,
			desired_weight_kg TEXT NOT NULL,
			blood_type INTEGER NOT NULL,
			gender TEXT NOT NULL,
			activity_level TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// withTx runs fn in an IMMEDIATE transaction, committing on success.
func (d *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
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

// mapErr turns BUSY/LOCKED and deadlines into domain.ErrTransient.
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
		return domain.Transient("sqlite: "+op, err)
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return domain.Transient("sqlite: "+op, err)
		}
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

// Calories are stored as integer hundredths so SQL sums stay exact.
func toCenti(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCenti(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
