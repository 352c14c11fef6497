package app_test

import (
	"context"

	"slimmom/internal/domain"
)

type mockLedgerRepo struct {
	insertFn     func(ctx context.Context, e domain.DiaryEntry) error
	deleteFn     func(ctx context.Context, userID, entryID string) (*domain.DiaryEntry, error)
	dayFn        func(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, error)
	allFn        func(ctx context.Context, userID string) ([]domain.DiaryEntry, error)
	ledgerFn     func(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, domain.DailyAggregate, error)
	aggregateFn  func(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, error)
	betweenFn    func(ctx context.Context, userID string, from, to domain.Day) ([]domain.DailyAggregate, error)
	recomputeFn  func(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, domain.DailyAggregate, error)
	flaggedFn    func(ctx context.Context, limit int) ([]domain.AggregateKey, error)
	insertCalled int
}

func (m *mockLedgerRepo) InsertEntry(ctx context.Context, e domain.DiaryEntry) error {
	m.insertCalled++
	if m.insertFn != nil {
		return m.insertFn(ctx, e)
	}
	return nil
}

func (m *mockLedgerRepo) DeleteEntry(ctx context.Context, userID, entryID string) (*domain.DiaryEntry, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, entryID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockLedgerRepo) EntriesForDay(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, error) {
	if m.dayFn != nil {
		return m.dayFn(ctx, userID, day)
	}
	return []domain.DiaryEntry{}, nil
}

func (m *mockLedgerRepo) DayLedger(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, domain.DailyAggregate, error) {
	if m.ledgerFn != nil {
		return m.ledgerFn(ctx, userID, day)
	}
	entries, err := m.EntriesForDay(ctx, userID, day)
	if err != nil {
		return nil, domain.DailyAggregate{}, err
	}
	agg, err := m.Aggregate(ctx, userID, day)
	return entries, agg, err
}

func (m *mockLedgerRepo) AllEntries(ctx context.Context, userID string) ([]domain.DiaryEntry, error) {
	if m.allFn != nil {
		return m.allFn(ctx, userID)
	}
	return []domain.DiaryEntry{}, nil
}

func (m *mockLedgerRepo) Aggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, userID, day)
	}
	return domain.EmptyAggregate(userID, day), nil
}

func (m *mockLedgerRepo) AggregatesBetween(ctx context.Context, userID string, from, to domain.Day) ([]domain.DailyAggregate, error) {
	if m.betweenFn != nil {
		return m.betweenFn(ctx, userID, from, to)
	}
	return nil, nil
}

func (m *mockLedgerRepo) RecomputeAggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, domain.DailyAggregate, error) {
	if m.recomputeFn != nil {
		return m.recomputeFn(ctx, userID, day)
	}
	return domain.EmptyAggregate(userID, day), domain.EmptyAggregate(userID, day), nil
}

func (m *mockLedgerRepo) FlaggedAggregates(ctx context.Context, limit int) ([]domain.AggregateKey, error) {
	if m.flaggedFn != nil {
		return m.flaggedFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockLedgerRepo) Ping(ctx context.Context) error { return nil }

type mockCatalog struct {
	lookupFn func(ctx context.Context, productID string) (*domain.Product, error)
	calls    int
}

func (m *mockCatalog) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	m.calls++
	if m.lookupFn != nil {
		return m.lookupFn(ctx, productID)
	}
	return nil, domain.ErrNotFound
}

type mockProfileRepo struct {
	profiles map[string]domain.Profile
	getErr   error
	puts     int
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *mockProfileRepo) PutProfile(ctx context.Context, p domain.Profile) error {
	m.puts++
	if m.profiles == nil {
		m.profiles = make(map[string]domain.Profile)
	}
	m.profiles[p.UserID] = p
	return nil
}
