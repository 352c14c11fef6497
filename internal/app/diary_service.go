package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"slimmom/internal/domain"
)

// EntryView is a diary entry joined with catalog display data.
type EntryView struct {
	ID               string          `json:"id"`
	Date             domain.Day      `json:"date"`
	ProductID        string          `json:"productId,omitempty"`
	ProductTitle     string          `json:"productTitle,omitempty"`
	ProductMissing   bool            `json:"productMissing,omitempty"`
	Name             string          `json:"name"`
	QuantityGrams    decimal.Decimal `json:"quantityGrams"`
	CaloriesSnapshot decimal.Decimal `json:"caloriesSnapshot"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// DailyView is everything eaten on one day plus the ledger total.
type DailyView struct {
	Date          domain.Day      `json:"date"`
	Entries       []EntryView     `json:"entries"`
	TotalCalories decimal.Decimal `json:"totalCalories"`
	EntryCount    int             `json:"entryCount"`
	// DailyNorm and Remaining are set only for users with a profile.
	// Remaining goes negative once the norm is exceeded.
	DailyNorm *int             `json:"dailyNorm,omitempty"`
	Remaining *decimal.Decimal `json:"remaining,omitempty"`
}

// DiaryService answers read-side diary queries.
type DiaryService struct {
	repo     domain.LedgerRepository
	catalog  domain.Catalog
	ledger   *LedgerService
	profiles *ProfileService
}

// NewDiaryService creates a DiaryService. ledger is used to heal aggregates
// flagged for reconciliation before they are shown.
func NewDiaryService(repo domain.LedgerRepository, catalog domain.Catalog, ledger *LedgerService) *DiaryService {
	return &DiaryService{repo: repo, catalog: catalog, ledger: ledger}
}

// WithProfiles makes daily views carry the user's norm and what is left of it.
func (s *DiaryService) WithProfiles(ps *ProfileService) *DiaryService {
	s.profiles = ps
	return s
}

// GetDailyView returns the entries and total for a day. A day without
// entries yields an empty, zero-total view.
func (s *DiaryService) GetDailyView(ctx context.Context, userID, date string) (*DailyView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	day, err := domain.ParseDay(date)
	if err != nil {
		return nil, err
	}

	entries, agg, err := s.repo.DayLedger(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if agg.NeedsReconcile && s.ledger != nil {
		if _, err := s.ledger.HealDay(ctx, userID, day); err != nil {
			return nil, err
		}
		// Re-read so entries and total again come from one snapshot.
		entries, agg, err = s.repo.DayLedger(ctx, userID, day)
		if err != nil {
			return nil, err
		}
	}

	view := &DailyView{
		Date:          day,
		Entries:       s.enrich(ctx, entries),
		TotalCalories: agg.TotalCalories,
		EntryCount:    agg.EntryCount,
	}
	if s.profiles != nil {
		norm, ok, err := s.profiles.DailyNorm(ctx, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			remaining := decimal.NewFromInt(int64(norm)).Sub(agg.TotalCalories)
			view.DailyNorm = &norm
			view.Remaining = &remaining
		}
	}
	return view, nil
}

// GetHistory returns every entry of userID, newest first.
func (s *DiaryService) GetHistory(ctx context.Context, userID string) ([]EntryView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	entries, err := s.repo.AllEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, entries), nil
}

// enrich attaches catalog titles. A product that has disappeared from the
// catalog, or a catalog that is unavailable, leaves the title empty.
func (s *DiaryService) enrich(ctx context.Context, entries []domain.DiaryEntry) []EntryView {
	titles := make(map[string]*domain.Product)
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		v := EntryView{
			ID:               e.ID,
			Date:             e.Day,
			ProductID:        e.ProductID,
			Name:             e.Name,
			QuantityGrams:    e.QuantityGrams,
			CaloriesSnapshot: e.CaloriesSnapshot,
			CreatedAt:        e.CreatedAt,
		}
		if e.ProductID != "" {
			p, seen := titles[e.ProductID]
			if !seen {
				var err error
				p, err = s.catalog.Lookup(ctx, e.ProductID)
				if err != nil {
					if !errors.Is(err, domain.ErrNotFound) {
						log.Printf("diary: catalog lookup %s: %v", e.ProductID, err)
					}
					p = nil
				}
				titles[e.ProductID] = p
			}
			if p != nil {
				v.ProductTitle = p.Title
			} else {
				v.ProductMissing = true
			}
		}
		out = append(out, v)
	}
	return out
}
