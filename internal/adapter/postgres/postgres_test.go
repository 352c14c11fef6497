package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"slimmom/internal/adapter/storetest"
	"slimmom/internal/domain"
)

// openTestDB connects to TEST_DATABASE_URL and empties every table.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.sql.Exec("TRUNCATE diary_entries, day_totals, products, sessions, users;"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func TestLedgerConformance(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	storetest.Run(t, func(t *testing.T) storetest.Harness {
		db := openTestDB(t)
		return storetest.Harness{
			Repo:     db,
			Profiles: db,
			SetAggregate: func(t *testing.T, userID string, day domain.Day, total decimal.Decimal, count int) {
				t.Helper()
				_, err := db.sql.Exec(`
					INSERT INTO day_totals(user_id, day, total_calories, entry_count, updated_at) VALUES($1, $2, $3, $4, now())
					ON CONFLICT (user_id, day) DO UPDATE SET total_calories = EXCLUDED.total_calories, entry_count = EXCLUDED.entry_count;`,
					userID, day, total, count)
				if err != nil {
					t.Fatalf("set aggregate: %v", err)
				}
			},
		}
	})
}

func TestCatalog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.PutProduct(ctx, domain.Product{ID: "apple", Title: "Apple", CaloriesPer100g: decimal.NewFromInt(52)}); err != nil {
		t.Fatalf("PutProduct: %v", err)
	}
	p, err := db.Lookup(ctx, "apple")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !p.CaloriesPer100g.Equal(decimal.NewFromInt(52)) {
		t.Errorf("expected 52, got %s", p.CaloriesPer100g)
	}
	if err := db.DeleteProduct(ctx, "apple"); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if _, err := db.Lookup(ctx, "apple"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUsersAndSessions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u, err := db.Create(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := db.GetByUsername(ctx, "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	sessions := NewSessionRepo(db)
	if err := sessions.Create(ctx, u.ID, "tok", "ua", "::1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	s, err := sessions.GetByToken(ctx, "tok")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if s.UserID != u.ID || s.UserAgent != "ua" {
		t.Errorf("unexpected session %+v", s)
	}
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"serialization", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"lock timeout", &pq.Error{Code: "55P03"}, true},
		{"connection", &pq.Error{Code: "08006"}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"unique", &pq.Error{Code: "23505"}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErr("op", tt.err)
			if errors.Is(got, domain.ErrTransient) != tt.transient {
				t.Errorf("mapErr(%v) transient=%v, want %v", tt.err, !tt.transient, tt.transient)
			}
		})
	}

	if !errors.Is(mapErr("op", domain.ErrForbidden), domain.ErrForbidden) {
		t.Error("domain errors must pass through")
	}
	if mapErr("op", nil) != nil {
		t.Error("nil must stay nil")
	}
}
