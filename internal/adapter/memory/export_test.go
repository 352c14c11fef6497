package memory

import (
	"testing"

	"github.com/shopspring/decimal"

	"slimmom/internal/domain"
)

// SetAggregate overwrites a stored aggregate without touching entries.
func (db *DB) SetAggregate(t *testing.T, userID string, day domain.Day, total decimal.Decimal, count int) {
	t.Helper()
	b := db.bucketFor(domain.AggregateKey{UserID: userID, Day: day}, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agg.TotalCalories = total
	b.agg.EntryCount = count
	b.stored = true
}
