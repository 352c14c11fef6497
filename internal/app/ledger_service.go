package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"slimmom/internal/domain"
	"slimmom/internal/id"
)

// EntryInput describes a food item to add to the diary. Exactly one of
// ProductID or Name+CaloriesPer100g must be set.
type EntryInput struct {
	ProductID       string
	Name            string
	CaloriesPer100g *decimal.Decimal
	QuantityGrams   decimal.Decimal
}

// ReconcileResult reports what a reconciliation pass found for one key.
type ReconcileResult struct {
	UserID    string                `json:"userId"`
	Day       domain.Day            `json:"date"`
	Before    domain.DailyAggregate `json:"before"`
	After     domain.DailyAggregate `json:"after"`
	Corrected bool                  `json:"corrected"`
}

// LedgerService owns every write to the diary: entries and, through the
// repository, their daily aggregates.
type LedgerService struct {
	repo    domain.LedgerRepository
	catalog domain.Catalog
	now     func() time.Time
}

// NewLedgerService creates a LedgerService backed by repo, resolving product
// references through catalog.
func NewLedgerService(repo domain.LedgerRepository, catalog domain.Catalog) *LedgerService {
	return &LedgerService{repo: repo, catalog: catalog, now: time.Now}
}

// AddEntry validates in, freezes the calorie snapshot and stores the entry
// together with its aggregate delta.
func (s *LedgerService) AddEntry(ctx context.Context, userID, date string, in EntryInput) (*domain.DiaryEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	day, err := domain.ParseDay(date)
	if err != nil {
		return nil, err
	}
	if !in.QuantityGrams.IsPositive() {
		return nil, domain.Invalid("quantityGrams", "must be > 0")
	}
	if in.QuantityGrams.GreaterThan(domain.MaxQuantityGrams) {
		return nil, domain.Invalid("quantityGrams", "must be at most "+domain.MaxQuantityGrams.String())
	}
	if !domain.FitsCents(in.QuantityGrams) {
		return nil, domain.Invalid("quantityGrams", "must have at most 2 decimal places")
	}

	entry := domain.DiaryEntry{
		ID:            id.NewEntryID(),
		UserID:        userID,
		Day:           day,
		QuantityGrams: in.QuantityGrams,
		CreatedAt:     s.now().UTC(),
	}

	productID := strings.TrimSpace(in.ProductID)
	switch {
	case productID != "" && in.CaloriesPer100g != nil:
		return nil, domain.Invalid("productId", "cannot be combined with a freeform calorie rate")
	case productID != "":
		p, err := s.catalog.Lookup(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", productID, err)
		}
		entry.ProductID = p.ID
		entry.Name = p.Title
		entry.CaloriesPer100g = p.CaloriesPer100g
	default:
		entry.Name = strings.TrimSpace(in.Name)
		if entry.Name == "" {
			return nil, domain.Invalid("name", "is required when no productId is given")
		}
		if in.CaloriesPer100g == nil {
			return nil, domain.Invalid("caloriesPer100g", "is required when no productId is given")
		}
		if in.CaloriesPer100g.IsNegative() || in.CaloriesPer100g.GreaterThan(domain.MaxCaloriesPer100g) {
			return nil, domain.Invalid("caloriesPer100g", "must be within [0, 1000]")
		}
		if !domain.FitsCents(*in.CaloriesPer100g) {
			return nil, domain.Invalid("caloriesPer100g", "must have at most 2 decimal places")
		}
		entry.CaloriesPer100g = *in.CaloriesPer100g
	}
	entry.CaloriesSnapshot = domain.SnapshotCalories(entry.CaloriesPer100g, entry.QuantityGrams)

	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// RemoveEntry deletes one of userID's entries and subtracts its frozen
// snapshot from the day's aggregate.
func (s *LedgerService) RemoveEntry(ctx context.Context, userID, entryID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	eid, err := id.ParseEntryID(strings.TrimSpace(entryID))
	if err != nil {
		return domain.Invalid("id", "is not a valid entry id")
	}
	_, err = s.repo.DeleteEntry(ctx, userID, eid)
	return err
}

// GetEntriesForDate returns the day's entries in creation order.
func (s *LedgerService) GetEntriesForDate(ctx context.Context, userID, date string) ([]domain.DiaryEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	day, err := domain.ParseDay(date)
	if err != nil {
		return nil, err
	}
	return s.repo.EntriesForDay(ctx, userID, day)
}

// GetAllEntries returns every entry of userID, newest day first.
func (s *LedgerService) GetAllEntries(ctx context.Context, userID string) ([]domain.DiaryEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.repo.AllEntries(ctx, userID)
}

// Reconcile recomputes the (userID, date) aggregate from its live entries and
// overwrites the stored value. Running it repeatedly yields the same result.
func (s *LedgerService) Reconcile(ctx context.Context, userID, date string) (*ReconcileResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	day, err := domain.ParseDay(date)
	if err != nil {
		return nil, err
	}
	return s.reconcileDay(ctx, userID, day)
}

// ReconcileFlagged heals up to limit aggregates that were clamped during a
// removal. Failures on one key do not stop the sweep.
func (s *LedgerService) ReconcileFlagged(ctx context.Context, limit int) ([]ReconcileResult, error) {
	if limit <= 0 {
		limit = 100
	}
	keys, err := s.repo.FlaggedAggregates(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ReconcileResult, 0, len(keys))
	var firstErr error
	for _, k := range keys {
		res, err := s.reconcileDay(ctx, k.UserID, k.Day)
		if err != nil {
			log.Printf("ledger: reconcile user=%s day=%s: %v", k.UserID, k.Day, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, *res)
	}
	return out, firstErr
}

// HealDay reconciles one day by key. Readers call it when they meet an
// aggregate flagged for reconciliation.
func (s *LedgerService) HealDay(ctx context.Context, userID string, day domain.Day) (*ReconcileResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.reconcileDay(ctx, userID, day)
}

func (s *LedgerService) reconcileDay(ctx context.Context, userID string, day domain.Day) (*ReconcileResult, error) {
	before, after, err := s.repo.RecomputeAggregate(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	mismatch := !before.Matches(after)
	if mismatch {
		log.Printf("ledger: %v: user=%s day=%s stored=%s/%d live=%s/%d, corrected",
			domain.ErrInconsistent, userID, day,
			before.TotalCalories, before.EntryCount, after.TotalCalories, after.EntryCount)
	}
	return &ReconcileResult{
		UserID:    userID,
		Day:       day,
		Before:    before,
		After:     after,
		Corrected: mismatch || before.NeedsReconcile,
	}, nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Invalid("userId", "is required")
	}
	return nil
}
