package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slimmom/internal/adapter/storetest"
	"slimmom/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLedgerConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Harness {
		db := openTestDB(t)
		return storetest.Harness{
			Repo:     db,
			Profiles: db,
			SetAggregate: func(t *testing.T, userID string, day domain.Day, total decimal.Decimal, count int) {
				t.Helper()
				_, err := db.sql.Exec(`
					INSERT INTO day_totals(user_id, day, total_centi, entry_count, updated_at) VALUES(?, ?, ?, ?, 0)
					ON CONFLICT(user_id, day) DO UPDATE SET total_centi = excluded.total_centi, entry_count = excluded.entry_count;`,
					userID, day, toCenti(total), count)
				require.NoError(t, err)
			},
		}
	})
}

func TestOpen_FileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slimmom.db")
	ctx := context.Background()
	day, _ := domain.ParseDay("2024-05-01")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.InsertEntry(ctx, domain.DiaryEntry{
		ID: "entry_01h455vb4pex5vsknk084sn02q", UserID: "u", Day: day, Name: "apple",
		QuantityGrams: decimal.NewFromInt(150), CaloriesPer100g: decimal.NewFromInt(52),
		CaloriesSnapshot: decimal.NewFromInt(78), CreatedAt: time.Now(),
	}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	entries, err := db.EntriesForDay(ctx, "u", day)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].QuantityGrams.Equal(decimal.NewFromInt(150)))

	agg, err := db.Aggregate(ctx, "u", day)
	require.NoError(t, err)
	assert.True(t, agg.TotalCalories.Equal(decimal.NewFromInt(78)))
	assert.Equal(t, 1, agg.EntryCount)
}

func TestCentiRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.01", "78", "262.5", "1999.99"} {
		d := decimal.RequireFromString(s)
		assert.Truef(t, fromCenti(toCenti(d)).Equal(d), "round trip of %s", s)
	}
}

func TestCatalogAndAuth(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutProduct(ctx, domain.Product{ID: "rice", Title: "Rice", CaloriesPer100g: decimal.RequireFromString("130.5")}))
	p, err := db.Lookup(ctx, "rice")
	require.NoError(t, err)
	assert.True(t, p.CaloriesPer100g.Equal(decimal.RequireFromString("130.5")))

	require.NoError(t, db.DeleteProduct(ctx, "rice"))
	_, err = db.Lookup(ctx, "rice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	u, err := db.Create(ctx, "alice", "hash")
	require.NoError(t, err)
	_, err = db.Create(ctx, "alice", "hash")
	assert.Error(t, err)

	got, err := db.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	sessions := NewSessionRepo(db)
	require.NoError(t, sessions.Create(ctx, u.ID, "tok", "ua", "::1", time.Now().Add(time.Hour)))
	require.NoError(t, sessions.Create(ctx, u.ID, "old", "ua", "::1", time.Now().Add(-time.Hour)))
	require.NoError(t, sessions.DeleteExpired(ctx))

	s, err := sessions.GetByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.UserID)
	_, err = sessions.GetByToken(ctx, "old")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
