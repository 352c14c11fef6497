package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"slimmom/internal/domain"
)

func TestSnapshotCalories(t *testing.T) {
	tests := []struct {
		name    string
		per100g string
		grams   string
		want    string
	}{
		{"apple", "52", "150", "78"},
		{"double portion", "100", "200", "200"},
		{"rounds to cents", "33.333", "10", "3.33"},
		{"half rounds away from zero", "0.5", "1", "0.01"},
		{"zero calorie", "0", "250", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.SnapshotCalories(decimal.RequireFromString(tc.per100g), decimal.RequireFromString(tc.grams))
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("SnapshotCalories(%s, %s) = %s; want %s", tc.per100g, tc.grams, got, tc.want)
			}
		})
	}
}

func TestSumEntries(t *testing.T) {
	day, _ := domain.ParseDay("2024-05-01")
	entries := []domain.DiaryEntry{
		{CaloriesSnapshot: decimal.RequireFromString("78")},
		{CaloriesSnapshot: decimal.RequireFromString("120")},
		{CaloriesSnapshot: decimal.RequireFromString("0.1")},
	}
	agg := domain.SumEntries("u1", day, entries)
	if !agg.TotalCalories.Equal(decimal.RequireFromString("198.1")) {
		t.Fatalf("expected 198.1, got %s", agg.TotalCalories)
	}
	if agg.EntryCount != 3 {
		t.Fatalf("expected 3 entries, got %d", agg.EntryCount)
	}

	empty := domain.SumEntries("u1", day, nil)
	if !empty.Matches(domain.EmptyAggregate("u1", day)) {
		t.Fatal("empty sum should match the empty aggregate")
	}
}
