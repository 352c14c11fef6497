package app

import (
	"context"

	"github.com/shopspring/decimal"

	"slimmom/internal/domain"
)

const maxTrendDays = 366

// TrendService encapsulates multi-day calorie chart use cases.
type TrendService struct {
	repo domain.LedgerRepository
}

// NewTrendService creates a TrendService backed by the given repository.
func NewTrendService(repo domain.LedgerRepository) *TrendService {
	return &TrendService{repo: repo}
}

// DayTotal is a single data point returned by GetDaily.
type DayTotal struct {
	Day           domain.Day      `json:"day"`
	TotalCalories decimal.Decimal `json:"totalCalories"`
	EntryCount    int             `json:"entryCount"`
}

// GetDaily returns per-day calorie totals for the days days ending at today,
// oldest first. Days without entries are reported as zero.
func (s *TrendService) GetDaily(ctx context.Context, userID string, days int, today domain.Day) ([]DayTotal, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, domain.Invalid("days", "must be > 0")
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	from := today.AddDays(-(days - 1))
	aggs, err := s.repo.AggregatesBetween(ctx, userID, from, today)
	if err != nil {
		return nil, err
	}
	byDay := make(map[domain.Day]domain.DailyAggregate, len(aggs))
	for _, a := range aggs {
		byDay[a.Day] = a
	}

	points := make([]DayTotal, 0, days)
	for i := 0; i < days; i++ {
		d := from.AddDays(i)
		p := DayTotal{Day: d, TotalCalories: decimal.Zero}
		if a, ok := byDay[d]; ok {
			p.TotalCalories = a.TotalCalories
			p.EntryCount = a.EntryCount
		}
		points = append(points, p)
	}
	return points, nil
}
