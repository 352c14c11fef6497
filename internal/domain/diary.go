package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SnapshotCalories computes the calories attributable to quantityGrams of a
// food with the given per-100g rate, rounded to two decimal places.
func SnapshotCalories(caloriesPer100g, quantityGrams decimal.Decimal) decimal.Decimal {
	return caloriesPer100g.Mul(quantityGrams).Div(hundred).Round(2)
}

// DiaryEntry is one consumption record. Entries are never mutated after
// creation; CaloriesSnapshot is frozen at creation time.
type DiaryEntry struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Day              Day             `json:"date"`
	ProductID        string          `json:"productId,omitempty"`
	Name             string          `json:"name"`
	QuantityGrams    decimal.Decimal `json:"quantityGrams"`
	CaloriesPer100g  decimal.Decimal `json:"caloriesPer100g"`
	CaloriesSnapshot decimal.Decimal `json:"caloriesSnapshot"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// DailyAggregate is the derived calorie total for one (user, day).
type DailyAggregate struct {
	UserID         string          `json:"userId"`
	Day            Day             `json:"date"`
	TotalCalories  decimal.Decimal `json:"totalCalories"`
	EntryCount     int             `json:"entryCount"`
	NeedsReconcile bool            `json:"needsReconcile"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// EmptyAggregate is what an absent aggregate reads as.
func EmptyAggregate(userID string, day Day) DailyAggregate {
	return DailyAggregate{UserID: userID, Day: day, TotalCalories: decimal.Zero}
}

// Matches reports whether a and b carry the same total and count.
func (a DailyAggregate) Matches(b DailyAggregate) bool {
	return a.TotalCalories.Equal(b.TotalCalories) && a.EntryCount == b.EntryCount
}

// AggregateKey identifies a DailyAggregate.
type AggregateKey struct {
	UserID string
	Day    Day
}

// SumEntries recomputes an aggregate from a set of live entries.
func SumEntries(userID string, day Day, entries []DiaryEntry) DailyAggregate {
	agg := EmptyAggregate(userID, day)
	for _, e := range entries {
		agg.TotalCalories = agg.TotalCalories.Add(e.CaloriesSnapshot)
		agg.EntryCount++
	}
	return agg
}

// LedgerRepository is the port for diary entry persistence. Implementations
// apply the aggregate delta in the same atomic unit as the entry write.
type LedgerRepository interface {
	// InsertEntry stores e and adds its snapshot to the (user, day) aggregate.
	InsertEntry(ctx context.Context, e DiaryEntry) error
	// DeleteEntry removes the entry and subtracts its snapshot from the
	// aggregate, clamping at zero. It returns ErrNotFound for unknown ids
	// and ErrForbidden when the entry belongs to another user.
	DeleteEntry(ctx context.Context, userID, entryID string) (*DiaryEntry, error)
	// EntriesForDay lists entries for (user, day) in creation order.
	EntriesForDay(ctx context.Context, userID string, day Day) ([]DiaryEntry, error)
	// AllEntries lists every entry for user, newest day first and newest
	// entry first within a day.
	AllEntries(ctx context.Context, userID string) ([]DiaryEntry, error)
	// DayLedger returns the day's entries in creation order together with
	// its aggregate, both read from one consistent snapshot.
	DayLedger(ctx context.Context, userID string, day Day) ([]DiaryEntry, DailyAggregate, error)
	// Aggregate returns the stored aggregate, or an empty one when absent.
	Aggregate(ctx context.Context, userID string, day Day) (DailyAggregate, error)
	// AggregatesBetween returns stored aggregates for from..to inclusive.
	AggregatesBetween(ctx context.Context, userID string, from, to Day) ([]DailyAggregate, error)
	// RecomputeAggregate overwrites the aggregate with the sum of live
	// entries and returns the values before and after.
	RecomputeAggregate(ctx context.Context, userID string, day Day) (before, after DailyAggregate, err error)
	// FlaggedAggregates lists keys whose aggregate was clamped and awaits
	// reconciliation.
	FlaggedAggregates(ctx context.Context, limit int) ([]AggregateKey, error)
	Ping(ctx context.Context) error
}

// MaxCaloriesPer100g is the upper bound for a product or freeform rate.
var MaxCaloriesPer100g = decimal.NewFromInt(1000)

// MaxQuantityGrams is the upper bound for one entry's weight.
var MaxQuantityGrams = decimal.NewFromInt(100000)

// FitsCents reports whether d is representable with two decimal places,
// the precision every store keeps quantities and rates at.
func FitsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Product is the catalog view the ledger consumes.
type Product struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	CaloriesPer100g decimal.Decimal `json:"caloriesPer100g"`
}

// Catalog is the port to the product catalog. Lookup returns ErrNotFound
// for unknown or deleted products.
type Catalog interface {
	Lookup(ctx context.Context, productID string) (*Product, error)
}
