package app_test

import (
	"context"
	"errors"
	"testing"

	"slimmom/internal/app"
	"slimmom/internal/domain"
)

func TestGetDaily_BadDays(t *testing.T) {
	svc := app.NewTrendService(&mockLedgerRepo{})
	today, _ := domain.ParseDay("2024-05-10")
	if _, err := svc.GetDaily(context.Background(), "u", 0, today); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetDaily_Success(t *testing.T) {
	today, _ := domain.ParseDay("2024-05-10")
	var gotFrom, gotTo domain.Day
	repo := &mockLedgerRepo{
		betweenFn: func(_ context.Context, userID string, from, to domain.Day) ([]domain.DailyAggregate, error) {
			gotFrom, gotTo = from, to
			return []domain.DailyAggregate{
				{UserID: userID, Day: today.AddDays(-1), TotalCalories: dec("1850.5"), EntryCount: 6},
			}, nil
		},
	}

	svc := app.NewTrendService(repo)
	points, err := svc.GetDaily(context.Background(), "u", 3, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if gotFrom.String() != "2024-05-08" || gotTo.String() != "2024-05-10" {
		t.Errorf("unexpected range %s..%s", gotFrom, gotTo)
	}
	if !points[0].TotalCalories.IsZero() || !points[2].TotalCalories.IsZero() {
		t.Error("days without aggregates should be zero")
	}
	if !points[1].TotalCalories.Equal(dec("1850.5")) || points[1].EntryCount != 6 {
		t.Errorf("unexpected middle point %+v", points[1])
	}
}

func TestGetDaily_ClampsTo366(t *testing.T) {
	svc := app.NewTrendService(&mockLedgerRepo{})
	today, _ := domain.ParseDay("2024-05-10")

	points, err := svc.GetDaily(context.Background(), "u", 1000, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 366 {
		t.Errorf("expected 366 points, got %d", len(points))
	}
	if points[len(points)-1].Day != today {
		t.Errorf("expected last point to be today, got %s", points[len(points)-1].Day)
	}
}
