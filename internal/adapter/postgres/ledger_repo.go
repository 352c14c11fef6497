package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"slimmom/internal/domain"
)

const entryColumns = "id, user_id, day, product_id, name, quantity_grams, calories_per_100g, calories_snapshot, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.DiaryEntry, error) {
	var e domain.DiaryEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Day, &e.ProductID, &e.Name,
		&e.QuantityGrams, &e.CaloriesPer100g, &e.CaloriesSnapshot, &e.CreatedAt)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, err
}

func scanAggregate(row scanner) (domain.DailyAggregate, error) {
	var a domain.DailyAggregate
	err := row.Scan(&a.UserID, &a.Day, &a.TotalCalories, &a.EntryCount, &a.NeedsReconcile, &a.UpdatedAt)
	return a, err
}

// InsertEntry stores the entry and adds its snapshot to the day total in
// one transaction. The upsert takes the aggregate row lock, so concurrent
// writers to the same day serialize on it.
func (d *DB) InsertEntry(ctx context.Context, e domain.DiaryEntry) error {
	return d.withTx(ctx, "insert entry", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO diary_entries("+entryColumns+") VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9);",
			e.ID, e.UserID, e.Day, e.ProductID, e.Name,
			e.QuantityGrams, e.CaloriesPer100g, e.CaloriesSnapshot, e.CreatedAt.UTC(),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO day_totals(user_id, day, total_calories, entry_count, needs_reconcile, updated_at)
			VALUES($1, $2, $3, 1, FALSE, $4)
			ON CONFLICT (user_id, day) DO UPDATE SET
				total_calories = day_totals.total_calories + EXCLUDED.total_calories,
				entry_count = day_totals.entry_count + 1,
				updated_at = EXCLUDED.updated_at;`,
			e.UserID, e.Day, e.CaloriesSnapshot, time.Now().UTC(),
		)
		return err
	})
}

// DeleteEntry removes an entry by ID, scoped to a user, and subtracts its
// snapshot from the day total. A total or count that would go negative is
// clamped to zero and the row flagged for reconciliation.
func (d *DB) DeleteEntry(ctx context.Context, userID, entryID string) (*domain.DiaryEntry, error) {
	var removed domain.DiaryEntry
	err := d.withTx(ctx, "delete entry", func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, "SELECT user_id FROM diary_entries WHERE id=$1;", entryID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != userID {
			return domain.ErrForbidden
		}

		// A concurrent delete that committed first leaves nothing to return.
		removed, err = scanEntry(tx.QueryRowContext(ctx,
			"DELETE FROM diary_entries WHERE id=$1 AND user_id=$2 RETURNING "+entryColumns+";",
			entryID, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO day_totals(user_id, day, total_calories, entry_count, needs_reconcile, updated_at)
			VALUES($1, $2, 0, 0, TRUE, $4)
			ON CONFLICT (user_id, day) DO UPDATE SET
				total_calories = GREATEST(day_totals.total_calories - $3, 0),
				entry_count = GREATEST(day_totals.entry_count - 1, 0),
				needs_reconcile = day_totals.needs_reconcile OR day_totals.total_calories < $3 OR day_totals.entry_count < 1,
				updated_at = EXCLUDED.updated_at;`,
			userID, removed.Day, removed.CaloriesSnapshot, time.Now().UTC(),
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
		"SELECT "+entryColumns+" FROM diary_entries WHERE user_id=$1 AND day=$2 ORDER BY seq;",
		userID, day)
}

// AllEntries returns every entry of a user, newest day and newest entry first.
func (d *DB) AllEntries(ctx context.Context, userID string) ([]domain.DiaryEntry, error) {
	return d.queryEntries(ctx, "all entries",
		"SELECT "+entryColumns+" FROM diary_entries WHERE user_id=$1 ORDER BY day DESC, seq DESC;",
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

// DayLedger reads entries and aggregate inside one REPEATABLE READ
// transaction, so both come from the same snapshot.
func (d *DB) DayLedger(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, domain.DailyAggregate, error) {
	var (
		entries []domain.DiaryEntry
		agg     domain.DailyAggregate
	)
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := d.withTxOptions(ctx, "day ledger", opts, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT "+entryColumns+" FROM diary_entries WHERE user_id=$1 AND day=$2 ORDER BY seq;",
			userID, day)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck

		entries = make([]domain.DiaryEntry, 0)
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		agg, err = scanAggregate(tx.QueryRowContext(ctx,
			"SELECT user_id, day, total_calories, entry_count, needs_reconcile, updated_at FROM day_totals WHERE user_id=$1 AND day=$2;",
			userID, day))
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
		"SELECT user_id, day, total_calories, entry_count, needs_reconcile, updated_at FROM day_totals WHERE user_id=$1 AND day=$2;",
		userID, day))
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
		"SELECT user_id, day, total_calories, entry_count, needs_reconcile, updated_at FROM day_totals WHERE user_id=$1 AND day BETWEEN $2 AND $3 ORDER BY day;",
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

// RecomputeAggregate locks the aggregate row, sums the live entries and
// overwrites the row. Writers blocked on the row lock apply their deltas
// on top of the recomputed value once it commits.
func (d *DB) RecomputeAggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, domain.DailyAggregate, error) {
	var before, after domain.DailyAggregate
	err := d.withTx(ctx, "reconcile", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO day_totals(user_id, day, updated_at) VALUES($1, $2, $3) ON CONFLICT (user_id, day) DO NOTHING;",
			userID, day, time.Now().UTC()); err != nil {
			return err
		}
		var err error
		before, err = scanAggregate(tx.QueryRowContext(ctx,
			"SELECT user_id, day, total_calories, entry_count, needs_reconcile, updated_at FROM day_totals WHERE user_id=$1 AND day=$2 FOR UPDATE;",
			userID, day))
		if err != nil {
			return err
		}

		after = domain.EmptyAggregate(userID, day)
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(calories_snapshot), 0), COUNT(*) FROM diary_entries WHERE user_id=$1 AND day=$2;",
			userID, day).Scan(&after.TotalCalories, &after.EntryCount); err != nil {
			return err
		}
		after.UpdatedAt = time.Now().UTC()

		_, err = tx.ExecContext(ctx,
			"UPDATE day_totals SET total_calories=$3, entry_count=$4, needs_reconcile=FALSE, updated_at=$5 WHERE user_id=$1 AND day=$2;",
			userID, day, after.TotalCalories, after.EntryCount, after.UpdatedAt)
		return err
	})
	return before, after, err
}

// FlaggedAggregates lists aggregates awaiting reconciliation.
func (d *DB) FlaggedAggregates(ctx context.Context, limit int) ([]domain.AggregateKey, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT user_id, day FROM day_totals WHERE needs_reconcile ORDER BY user_id, day LIMIT $1;", limit)
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
