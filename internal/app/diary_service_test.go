package app_test

import (
	"context"
	"errors"
	"testing"

	"slimmom/internal/app"
	"slimmom/internal/domain"
)

func TestGetDailyView_EmptyDay(t *testing.T) {
	svc := app.NewDiaryService(&mockLedgerRepo{}, &mockCatalog{}, nil)

	view, err := svc.GetDailyView(context.Background(), "u", "2030-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Entries == nil || len(view.Entries) != 0 {
		t.Errorf("expected empty non-nil entries, got %#v", view.Entries)
	}
	if !view.TotalCalories.IsZero() {
		t.Errorf("expected zero total, got %s", view.TotalCalories)
	}
}

func TestGetDailyView_InvalidDate(t *testing.T) {
	svc := app.NewDiaryService(&mockLedgerRepo{}, &mockCatalog{}, nil)
	if _, err := svc.GetDailyView(context.Background(), "u", "yesterday"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetDailyView_EnrichesOncePerProduct(t *testing.T) {
	day, _ := domain.ParseDay("2024-05-01")
	repo := &mockLedgerRepo{
		dayFn: func(_ context.Context, userID string, d domain.Day) ([]domain.DiaryEntry, error) {
			return []domain.DiaryEntry{
				{ID: "entry_a", UserID: userID, Day: d, ProductID: "apple", Name: "Apple", CaloriesSnapshot: dec("78")},
				{ID: "entry_b", UserID: userID, Day: d, ProductID: "apple", Name: "Apple", CaloriesSnapshot: dec("26")},
				{ID: "entry_c", UserID: userID, Day: d, ProductID: "gone", Name: "Gone", CaloriesSnapshot: dec("10")},
				{ID: "entry_d", UserID: userID, Day: d, Name: "snack", CaloriesSnapshot: dec("120")},
			}, nil
		},
		aggregateFn: func(_ context.Context, userID string, d domain.Day) (domain.DailyAggregate, error) {
			return domain.DailyAggregate{UserID: userID, Day: d, TotalCalories: dec("234"), EntryCount: 4}, nil
		},
	}
	catalog := &mockCatalog{
		lookupFn: func(_ context.Context, productID string) (*domain.Product, error) {
			if productID == "apple" {
				return &domain.Product{ID: "apple", Title: "Green apple", CaloriesPer100g: dec("52")}, nil
			}
			return nil, domain.ErrNotFound
		},
	}

	svc := app.NewDiaryService(repo, catalog, nil)
	view, err := svc.GetDailyView(context.Background(), "u", day.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.calls != 2 {
		t.Errorf("expected 2 catalog lookups, got %d", catalog.calls)
	}
	if view.Entries[0].ProductTitle != "Green apple" {
		t.Errorf("expected catalog title, got %q", view.Entries[0].ProductTitle)
	}
	if !view.Entries[2].ProductMissing {
		t.Error("expected missing product to be marked")
	}
	if view.Entries[3].ProductMissing || view.Entries[3].ProductTitle != "" {
		t.Error("freeform entries have no product")
	}
	if !view.TotalCalories.Equal(dec("234")) || view.EntryCount != 4 {
		t.Errorf("unexpected totals %s/%d", view.TotalCalories, view.EntryCount)
	}
}

func TestGetDailyView_HealsFlaggedAggregate(t *testing.T) {
	recomputed := false
	repo := &mockLedgerRepo{
		dayFn: func(_ context.Context, userID string, d domain.Day) ([]domain.DiaryEntry, error) {
			return []domain.DiaryEntry{{ID: "entry_b", UserID: userID, Day: d, Name: "snack", CaloriesSnapshot: dec("120")}}, nil
		},
		aggregateFn: func(_ context.Context, userID string, d domain.Day) (domain.DailyAggregate, error) {
			if recomputed {
				return domain.DailyAggregate{UserID: userID, Day: d, TotalCalories: dec("120"), EntryCount: 1}, nil
			}
			return domain.DailyAggregate{UserID: userID, Day: d, TotalCalories: dec("0"), NeedsReconcile: true}, nil
		},
		recomputeFn: func(_ context.Context, userID string, d domain.Day) (domain.DailyAggregate, domain.DailyAggregate, error) {
			recomputed = true
			return domain.EmptyAggregate(userID, d), domain.DailyAggregate{UserID: userID, Day: d, TotalCalories: dec("120"), EntryCount: 1}, nil
		},
	}
	ledger := app.NewLedgerService(repo, &mockCatalog{})
	svc := app.NewDiaryService(repo, &mockCatalog{}, ledger)

	view, err := svc.GetDailyView(context.Background(), "u", "2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recomputed {
		t.Error("expected flagged aggregate to be reconciled")
	}
	if !view.TotalCalories.Equal(dec("120")) || view.EntryCount != 1 {
		t.Errorf("expected healed total 120/1, got %s/%d", view.TotalCalories, view.EntryCount)
	}
}

func TestGetDailyView_ReadsOneSnapshot(t *testing.T) {
	repo := &mockLedgerRepo{
		ledgerFn: func(_ context.Context, userID string, d domain.Day) ([]domain.DiaryEntry, domain.DailyAggregate, error) {
			return []domain.DiaryEntry{{ID: "entry_a", UserID: userID, Day: d, Name: "tea", CaloriesSnapshot: dec("50")}},
				domain.DailyAggregate{UserID: userID, Day: d, TotalCalories: dec("50"), EntryCount: 1}, nil
		},
		// A separate aggregate read would see a later write.
		aggregateFn: func(_ context.Context, userID string, d domain.Day) (domain.DailyAggregate, error) {
			return domain.DailyAggregate{UserID: userID, Day: d, TotalCalories: dec("999"), EntryCount: 2}, nil
		},
	}
	svc := app.NewDiaryService(repo, &mockCatalog{}, nil)

	view, err := svc.GetDailyView(context.Background(), "u", "2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.TotalCalories.Equal(dec("50")) || view.EntryCount != 1 || len(view.Entries) != 1 {
		t.Errorf("expected 50/1 from one snapshot, got %s/%d with %d entries", view.TotalCalories, view.EntryCount, len(view.Entries))
	}
}

func TestGetHistory(t *testing.T) {
	repo := &mockLedgerRepo{
		allFn: func(_ context.Context, userID string) ([]domain.DiaryEntry, error) {
			return []domain.DiaryEntry{{ID: "entry_b", UserID: userID}, {ID: "entry_a", UserID: userID}}, nil
		},
	}
	svc := app.NewDiaryService(repo, &mockCatalog{}, nil)

	history, err := svc.GetHistory(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 || history[0].ID != "entry_b" {
		t.Errorf("unexpected history %+v", history)
	}

	if _, err := svc.GetHistory(context.Background(), " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
