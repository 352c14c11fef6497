package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"slimmom/internal/domain"
)

const entryColumns = "id, user_id, day, product_id, name, quantity_grams, calories_per_100g, snapshot_centi, created_at"

const aggregateColumns = "user_id, day, total_centi, entry_count, needs_reconcile, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.DiaryEntry, error) {
	var (
		e       domain.DiaryEntry
		centi   int64
		created int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Day, &e.ProductID, &e.Name,
		&e.QuantityGrams, &e.CaloriesPer100g, &centi, &created); err != nil {
		return e, err
	}
	e.CaloriesSnapshot = fromCenti(centi)
	e.CreatedAt = time.UnixMicro(created).UTC()
	return e, nil
}

func scanAggregate(row scanner) (domain.DailyAggregate, error) {
	var (
		a       domain.DailyAggregate
		centi   int64
		updated int64
	)
	if err := row.Scan(&a.UserID, &a.Day, &centi, &a.EntryCount, &a.NeedsReconcile, &updated); err != nil {
		return a, err
	}
	a.TotalCalories = fromCenti(centi)
	a.UpdatedAt = time.UnixMicro(updated).UTC()
	return a, nil
}

// InsertEntry stores the entry and adds its snapshot to the day total in
// one transaction.
func (d *DB) InsertEntry(ctx context.Context, e domain.DiaryEntry) error {
	return d.withTx(ctx, "insert entry", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO diary_entries("+entryColumns+") VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);",
			e.ID, e.UserID, e.Day, e.ProductID, e.Name,
			e.QuantityGrams, e.CaloriesPer100g, toCenti(e.CaloriesSnapshot), e.CreatedAt.UnixMicro(),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO day_totals(user_id, day, total_centi, entry_count, needs_reconcile, updated_at)
			VALUES(?, ?, ?, 1, 0, ?)
			ON CONFLICT(user_id, day) DO UPDATE SET
				total_centi = total_centi + excluded.total_centi,
				entry_count = entry_count + 1,
				updated_at = excluded.updated_at;`,
			e.UserID, e.Day, toCenti(e.CaloriesSnapshot), time.Now().UnixMicro(),
		)
		return err
	})
}

// DeleteEntry removes an entry by ID, scoped to a user, and subtracts its
// snapshot from the day total, clamping at zero.
func (d *DB) DeleteEntry(ctx context.Context, userID, entryID string) (*domain.DiaryEntry, error) {
	var removed domain.DiaryEntry
	err := d.withTx(ctx, "delete entry", func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, "SELECT user_id FROM diary_entries WHERE id=?;", entryID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != userID {
			return domain.ErrForbidden
		}

		removed, err = scanEntry(tx.QueryRowContext(ctx,
			"DELETE FROM diary_entries WHERE id=? AND user_id=? RETURNING "+entryColumns+";",
			entryID, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		centi := toCenti(removed.CaloriesSnapshot)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO day_totals(user_id, day, total_centi, entry_count, needs_reconcile, updated_at)
			VALUES(?1, ?2, 0, 0, 1, ?4)
			ON CONFLICT(user_id, day) DO UPDATE SET
				total_centi = MAX(total_centi - ?3, 0),
				entry_count = MAX(entry_count - 1, 0),
				needs_reconcile = needs_reconcile OR total_centi < ?3 OR entry_count < 1,
				updated_at = excluded.updated_at;`,
			userID, removed.Day, centi, time.Now().UnixMicro(),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// EntriesForDay returns the entries of one day in creation order.
func (d *DB) EntriesForDay(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, error) {
	return d.queryEntries(ctx, "entries for day",
		"SELECT "+entryColumns+" FROM diary_entries WHERE user_id=? AND day=? ORDER BY seq;",
		userID, day)
}

// AllEntries returns every entry of a user, newest day and newest entry first.
func (d *DB) AllEntries(ctx context.Context, userID string) ([]domain.DiaryEntry, error) {
	return d.queryEntries(ctx, "all entries",
		"SELECT "+entryColumns+" FROM diary_entries WHERE user_id=? ORDER BY day DESC, seq DESC;",
		userID)
}

func (d *DB) queryEntries(ctx context.Context, op, query string, args ...any) ([]domain.DiaryEntry, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.DiaryEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, e)
	}
	return out, mapErr(op, rows.Err())
}

// DayLedger reads entries and aggregate inside one transaction.
func (d *DB) DayLedger(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, domain.DailyAggregate, error) {
	var (
		entries []domain.DiaryEntry
		agg     domain.DailyAggregate
	)
	err := d.withTx(ctx, "day ledger", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT "+entryColumns+" FROM diary_entries WHERE user_id=? AND day=? ORDER BY seq;", userID, day)
		if err != nil {
			return err
		}
		entries = make([]domain.DiaryEntry, 0)
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				_ = rows.Close()
				return err
			}
			entries = append(entries, e)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		agg, err = scanAggregate(tx.QueryRowContext(ctx,
			"SELECT "+aggregateColumns+" FROM day_totals WHERE user_id=? AND day=?;", userID, day))
		if errors.Is(err, sql.ErrNoRows) {
			agg = domain.EmptyAggregate(userID, day)
			return nil
		}
		return err
	})
	if err != nil {
		return nil, domain.DailyAggregate{}, err
	}
	return entries, agg, nil
}

// Aggregate returns the stored aggregate or an empty one.
func (d *DB) Aggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, error) {
	a, err := scanAggregate(d.sql.QueryRowContext(ctx,
		"SELECT "+aggregateColumns+" FROM day_totals WHERE user_id=? AND day=?;", userID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmptyAggregate(userID, day), nil
	}
	if err != nil {
		return domain.DailyAggregate{}, mapErr("aggregate", err)
	}
	return a, nil
}

// AggregatesBetween returns stored aggregates for from..to, oldest first.
func (d *DB) AggregatesBetween(ctx context.Context, userID string, from, to domain.Day) ([]domain.DailyAggregate, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+aggregateColumns+" FROM day_totals WHERE user_id=? AND day BETWEEN ? AND ? ORDER BY day;",
		userID, from, to)
	if err != nil {
		return nil, mapErr("aggregates between", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.DailyAggregate, 0)
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, mapErr("aggregates between", err)
		}
		out = append(out, a)
	}
	return out, mapErr("aggregates between", rows.Err())
}

// RecomputeAggregate overwrites the aggregate with the sum of live entries.
// The IMMEDIATE transaction holds the write lock for the whole read-sum-write.
func (d *DB) RecomputeAggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, domain.DailyAggregate, error) {
	var before, after domain.DailyAggregate
	err := d.withTx(ctx, "reconcile", func(tx *sql.Tx) error {
		var err error
		before, err = scanAggregate(tx.QueryRowContext(ctx,
			"SELECT "+aggregateColumns+" FROM day_totals WHERE user_id=? AND day=?;", userID, day))
		if errors.Is(err, sql.ErrNoRows) {
			before = domain.EmptyAggregate(userID, day)
		} else if err != nil {
			return err
		}

		var centi int64
		after = domain.EmptyAggregate(userID, day)
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(snapshot_centi), 0), COUNT(*) FROM diary_entries WHERE user_id=? AND day=?;",
			userID, day).Scan(&centi, &after.EntryCount); err != nil {
			return err
		}
		after.TotalCalories = fromCenti(centi)
		after.UpdatedAt = time.Now().UTC()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO day_totals(user_id, day, total_centi, entry_count, needs_reconcile, updated_at)
			VALUES(?, ?, ?, ?, 0, ?)
			ON CONFLICT(user_id, day) DO UPDATE SET
				total_centi = excluded.total_centi,
				entry_count = excluded.entry_count,
				needs_reconcile = 0,
				updated_at = excluded.updated_at;`,
			userID, day, centi, after.EntryCount, after.UpdatedAt.UnixMicro())
		return err
	})
	return before, after, err
}

// FlaggedAggregates lists aggregates awaiting reconciliation.
func (d *DB) FlaggedAggregates(ctx context.Context, limit int) ([]domain.AggregateKey, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT user_id, day FROM day_totals WHERE needs_reconcile ORDER BY user_id, day LIMIT ?;", limit)
	if err != nil {
		return nil, mapErr("flagged aggregates", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.AggregateKey, 0)
	for rows.Next() {
		var k domain.AggregateKey
		if err := rows.Scan(&k.UserID, &k.Day); err != nil {
			return nil, mapErr("flagged aggregates", err)
		}
		out = append(out, k)
	}
	return out, mapErr("flagged aggregates", rows.Err())
}
