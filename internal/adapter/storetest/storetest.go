// Package storetest is a conformance suite run against every
// domain.LedgerRepository implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slimmom/internal/adapter/memory"
	"slimmom/internal/app"
	"slimmom/internal/domain"
	"slimmom/internal/id"
)

// Harness wires one repository instance into the suite.
type Harness struct {
	Repo domain.LedgerRepository
	// Profiles, when set, enables the profile and daily norm cases.
	Profiles domain.ProfileRepository
	// SetAggregate overwrites the stored aggregate behind the ledger's back,
	// simulating an entry write whose aggregate update was lost.
	SetAggregate func(t *testing.T, userID string, day domain.Day, total decimal.Decimal, count int)
}

type fixture struct {
	h        Harness
	catalog  *memory.Catalog
	ledger   *app.LedgerService
	diary    *app.DiaryService
	trend    *app.TrendService
	profiles *app.ProfileService
}

func newFixture(t *testing.T, newHarness func(t *testing.T) Harness) *fixture {
	t.Helper()
	h := newHarness(t)
	catalog := memory.NewCatalog(
		domain.Product{ID: "apple", Title: "Apple", CaloriesPer100g: dec("52")},
		domain.Product{ID: "rice", Title: "Rice", CaloriesPer100g: dec("130")},
		domain.Product{ID: "p", Title: "Product P", CaloriesPer100g: dec("100")},
	)
	ledger := app.NewLedgerService(h.Repo, catalog)
	f := &fixture{
		h:       h,
		catalog: catalog,
		ledger:  ledger,
		diary:   app.NewDiaryService(h.Repo, catalog, ledger),
		trend:   app.NewTrendService(h.Repo),
	}
	if h.Profiles != nil {
		f.profiles = app.NewProfileService(h.Profiles)
		f.diary.WithProfiles(f.profiles)
	}
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newUser() string { return id.NewUserID() }

func (f *fixture) addProduct(t *testing.T, user, date, product, grams string) *domain.DiaryEntry {
	t.Helper()
	e, err := f.ledger.AddEntry(context.Background(), user, date, app.EntryInput{ProductID: product, QuantityGrams: dec(grams)})
	require.NoError(t, err)
	return e
}

func (f *fixture) addFreeform(t *testing.T, user, date, name, per100g, grams string) *domain.DiaryEntry {
	t.Helper()
	e, err := f.ledger.AddEntry(context.Background(), user, date, app.EntryInput{
		Name:            name,
		CaloriesPer100g: decPtr(per100g),
		QuantityGrams:   dec(grams),
	})
	require.NoError(t, err)
	return e
}

// assertLedger checks that the daily view total equals the sum of live
// entry snapshots and, when want is non-nil, equals want.
func (f *fixture) assertLedger(t *testing.T, user, date string, want *decimal.Decimal, wantCount int) {
	t.Helper()
	view, err := f.diary.GetDailyView(context.Background(), user, date)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, e := range view.Entries {
		sum = sum.Add(e.CaloriesSnapshot)
	}
	assert.Truef(t, view.TotalCalories.Equal(sum), "total %s != live sum %s", view.TotalCalories, sum)
	assert.Len(t, view.Entries, wantCount)
	assert.Equal(t, wantCount, view.EntryCount)
	if want != nil {
		assert.Truef(t, view.TotalCalories.Equal(*want), "total %s, want %s", view.TotalCalories, want)
	}
	assert.False(t, view.TotalCalories.IsNegative())
}

// Run executes the suite. newHarness must return an isolated repository.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Run("AppleAndSnackScenario", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()

		a := f.addProduct(t, u, "2024-05-01", "apple", "150")
		require.True(t, a.CaloriesSnapshot.Equal(dec("78")), "apple snapshot %s", a.CaloriesSnapshot)
		b := f.addFreeform(t, u, "2024-05-01", "snack", "120", "100")
		require.True(t, b.CaloriesSnapshot.Equal(dec("120")))

		f.assertLedger(t, u, "2024-05-01", decPtr("198"), 2)

		require.NoError(t, f.ledger.RemoveEntry(context.Background(), u, a.ID))
		f.assertLedger(t, u, "2024-05-01", decPtr("120"), 1)
	})

	t.Run("EmptyDay", func(t *testing.T) {
		f := newFixture(t, newHarness)
		view, err := f.diary.GetDailyView(context.Background(), newUser(), "2030-01-01")
		require.NoError(t, err)
		assert.Equal(t, "2030-01-01", view.Date.String())
		assert.NotNil(t, view.Entries)
		assert.Empty(t, view.Entries)
		assert.True(t, view.TotalCalories.IsZero())
	})

	t.Run("SumInvariantUnderRandomMutations", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		rng := rand.New(rand.NewSource(42))

		var live []*domain.DiaryEntry
		for step := 0; step < 60; step++ {
			if len(live) > 0 && rng.Intn(3) == 0 {
				i := rng.Intn(len(live))
				require.NoError(t, f.ledger.RemoveEntry(context.Background(), u, live[i].ID))
				live = append(live[:i], live[i+1:]...)
			} else {
				grams := fmt.Sprintf("%d.%d", 1+rng.Intn(400), rng.Intn(10))
				rate := fmt.Sprintf("%d.%02d", rng.Intn(900), rng.Intn(100))
				live = append(live, f.addFreeform(t, u, "2024-06-10", "item", rate, grams))
			}
			want := decimal.Zero
			for _, e := range live {
				want = want.Add(e.CaloriesSnapshot)
			}
			f.assertLedger(t, u, "2024-06-10", &want, len(live))
		}
	})

	t.Run("FrozenSnapshot", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()

		e := f.addProduct(t, u, "2024-05-02", "p", "200")
		require.True(t, e.CaloriesSnapshot.Equal(dec("200")))

		f.catalog.Put(domain.Product{ID: "p", Title: "Product P", CaloriesPer100g: dec("50")})

		view, err := f.diary.GetDailyView(context.Background(), u, "2024-05-02")
		require.NoError(t, err)
		require.Len(t, view.Entries, 1)
		assert.True(t, view.Entries[0].CaloriesSnapshot.Equal(dec("200")))
		assert.True(t, view.TotalCalories.Equal(dec("200")))

		entries, err := f.ledger.GetEntriesForDate(context.Background(), u, "2024-05-02")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].CaloriesSnapshot.Equal(dec("200")))
		assert.True(t, entries[0].CaloriesPer100g.Equal(dec("100")))
	})

	t.Run("ReconcileIdempotent", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		day, _ := domain.ParseDay("2024-05-03")

		f.addProduct(t, u, "2024-05-03", "rice", "200")
		f.addFreeform(t, u, "2024-05-03", "tea", "1", "250")

		f.h.SetAggregate(t, u, day, dec("999"), 7)

		first, err := f.ledger.Reconcile(context.Background(), u, "2024-05-03")
		require.NoError(t, err)
		assert.True(t, first.Corrected)
		assert.True(t, first.Before.TotalCalories.Equal(dec("999")))
		assert.True(t, first.After.TotalCalories.Equal(dec("262.5")), "after %s", first.After.TotalCalories)
		assert.Equal(t, 2, first.After.EntryCount)

		second, err := f.ledger.Reconcile(context.Background(), u, "2024-05-03")
		require.NoError(t, err)
		assert.False(t, second.Corrected)
		assert.True(t, second.After.Matches(first.After))

		f.assertLedger(t, u, "2024-05-03", decPtr("262.5"), 2)
	})

	t.Run("ReconcileEmptyDay", func(t *testing.T) {
		f := newFixture(t, newHarness)
		res, err := f.ledger.Reconcile(context.Background(), newUser(), "2024-01-01")
		require.NoError(t, err)
		assert.False(t, res.Corrected)
		assert.True(t, res.After.TotalCalories.IsZero())
		assert.Zero(t, res.After.EntryCount)
	})

	t.Run("RemoveClampsAndFlags", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		day, _ := domain.ParseDay("2024-05-04")

		e := f.addFreeform(t, u, "2024-05-04", "cake", "400", "25")
		// The aggregate lost the add: only 10 kcal and no entries recorded.
		f.h.SetAggregate(t, u, day, dec("10"), 0)

		require.NoError(t, f.ledger.RemoveEntry(context.Background(), u, e.ID))

		agg, err := f.h.Repo.Aggregate(context.Background(), u, day)
		require.NoError(t, err)
		assert.True(t, agg.TotalCalories.IsZero(), "total %s", agg.TotalCalories)
		assert.Zero(t, agg.EntryCount)
		assert.True(t, agg.NeedsReconcile)

		flagged, err := f.h.Repo.FlaggedAggregates(context.Background(), 10)
		require.NoError(t, err)
		assert.Contains(t, flagged, domain.AggregateKey{UserID: u, Day: day})

		healed, err := f.ledger.ReconcileFlagged(context.Background(), 10)
		require.NoError(t, err)
		require.NotEmpty(t, healed)

		flagged, err = f.h.Repo.FlaggedAggregates(context.Background(), 10)
		require.NoError(t, err)
		assert.NotContains(t, flagged, domain.AggregateKey{UserID: u, Day: day})
		f.assertLedger(t, u, "2024-05-04", decPtr("0"), 0)
	})

	t.Run("DailyViewHealsFlaggedAggregate", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		day, _ := domain.ParseDay("2024-05-05")

		keep := f.addFreeform(t, u, "2024-05-05", "soup", "40", "300")
		gone := f.addFreeform(t, u, "2024-05-05", "bread", "250", "80")
		f.h.SetAggregate(t, u, day, dec("5"), 2)
		require.NoError(t, f.ledger.RemoveEntry(context.Background(), u, gone.ID))

		f.assertLedger(t, u, "2024-05-05", &keep.CaloriesSnapshot, 1)
	})

	t.Run("ConcurrentAddsSameDay", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()

		const workers, perWorker = 8, 5
		var wg sync.WaitGroup
		errs := make(chan error, workers*perWorker)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					_, err := f.ledger.AddEntry(context.Background(), u, "2024-07-01", app.EntryInput{
						Name: "nuts", CaloriesPer100g: decPtr("600"), QuantityGrams: dec("5"),
					})
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		want := dec("30").Mul(decimal.NewFromInt(workers * perWorker))
		f.assertLedger(t, u, "2024-07-01", &want, workers*perWorker)
	})

	t.Run("DailyViewConsistentUnderWrites", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		ctx := context.Background()

		const writers, perWriter = 4, 25
		var wg sync.WaitGroup
		errs := make(chan error, writers*perWriter*2)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					e, err := f.ledger.AddEntry(ctx, u, "2024-07-03", app.EntryInput{
						Name: "bite", CaloriesPer100g: decPtr("250"), QuantityGrams: dec("10"),
					})
					errs <- err
					if err == nil && i%3 == 0 {
						errs <- f.ledger.RemoveEntry(ctx, u, e.ID)
					}
				}
			}()
		}
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		reads := 0
		for finished := false; !finished; reads++ {
			select {
			case <-done:
				finished = true
			default:
			}
			view, err := f.diary.GetDailyView(ctx, u, "2024-07-03")
			require.NoError(t, err)
			sum := decimal.Zero
			for _, e := range view.Entries {
				sum = sum.Add(e.CaloriesSnapshot)
			}
			require.Truef(t, view.TotalCalories.Equal(sum), "read %d: total %s != entries %s", reads, view.TotalCalories, sum)
			require.Equal(t, len(view.Entries), view.EntryCount)
		}
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		const live = writers * (perWriter - 9)
		want := dec("25").Mul(decimal.NewFromInt(live))
		f.assertLedger(t, u, "2024-07-03", &want, live)
	})

	t.Run("ConcurrentRemovesSameEntry", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		f.addFreeform(t, u, "2024-07-02", "keep", "100", "50")
		e := f.addFreeform(t, u, "2024-07-02", "twice", "100", "70")

		const removers = 6
		var wg sync.WaitGroup
		results := make(chan error, removers)
		for i := 0; i < removers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- f.ledger.RemoveEntry(context.Background(), u, e.ID)
			}()
		}
		wg.Wait()
		close(results)

		var ok, notFound int
		for err := range results {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrNotFound):
				notFound++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, removers-1, notFound)
		f.assertLedger(t, u, "2024-07-02", decPtr("50"), 1)
	})

	t.Run("OwnershipAndLookupErrors", func(t *testing.T) {
		f := newFixture(t, newHarness)
		owner, other := newUser(), newUser()
		e := f.addFreeform(t, owner, "2024-05-06", "pie", "300", "100")

		err := f.ledger.RemoveEntry(context.Background(), other, e.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		err = f.ledger.RemoveEntry(context.Background(), owner, id.NewEntryID())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = f.ledger.RemoveEntry(context.Background(), owner, "42")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = f.ledger.AddEntry(context.Background(), owner, "2024-05-06", app.EntryInput{ProductID: "unknown", QuantityGrams: dec("10")})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		f.assertLedger(t, owner, "2024-05-06", decPtr("300"), 1)
	})

	t.Run("Ordering", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		a := f.addFreeform(t, u, "2024-05-01", "a", "10", "100")
		b := f.addFreeform(t, u, "2024-05-01", "b", "10", "100")
		c := f.addFreeform(t, u, "2024-05-03", "c", "10", "100")
		d := f.addFreeform(t, u, "2024-05-02", "d", "10", "100")
		e := f.addFreeform(t, u, "2024-05-03", "e", "10", "100")
		f.addFreeform(t, newUser(), "2024-05-03", "someone else", "10", "100")

		day, err := f.ledger.GetEntriesForDate(context.Background(), u, "2024-05-01")
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID, b.ID}, ids(day))

		all, err := f.ledger.GetAllEntries(context.Background(), u)
		require.NoError(t, err)
		assert.Equal(t, []string{e.ID, c.ID, d.ID, b.ID, a.ID}, ids(all))

		history, err := f.diary.GetHistory(context.Background(), u)
		require.NoError(t, err)
		require.Len(t, history, 5)
		assert.Equal(t, e.ID, history[0].ID)
	})

	t.Run("DeletedProductStillListed", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		f.addProduct(t, u, "2024-05-07", "rice", "100")
		f.catalog.Delete("rice")

		view, err := f.diary.GetDailyView(context.Background(), u, "2024-05-07")
		require.NoError(t, err)
		require.Len(t, view.Entries, 1)
		assert.True(t, view.Entries[0].ProductMissing)
		assert.Empty(t, view.Entries[0].ProductTitle)
		assert.Equal(t, "Rice", view.Entries[0].Name)
		assert.True(t, view.TotalCalories.Equal(dec("130")))
	})

	t.Run("Trend", func(t *testing.T) {
		f := newFixture(t, newHarness)
		u := newUser()
		f.addFreeform(t, u, "2024-05-01", "x", "100", "100")
		f.addFreeform(t, u, "2024-05-03", "y", "100", "250")
		f.addFreeform(t, u, "2024-04-20", "outside", "100", "100")

		today, _ := domain.ParseDay("2024-05-03")
		points, err := f.trend.GetDaily(context.Background(), u, 3, today)
		require.NoError(t, err)
		require.Len(t, points, 3)
		assert.Equal(t, "2024-05-01", points[0].Day.String())
		assert.True(t, points[0].TotalCalories.Equal(dec("100")))
		assert.True(t, points[1].TotalCalories.IsZero())
		assert.True(t, points[2].TotalCalories.Equal(dec("250")))
		assert.Equal(t, 1, points[2].EntryCount)
	})

	t.Run("ProfileRoundTrip", func(t *testing.T) {
		f := newFixture(t, newHarness)
		if f.profiles == nil {
			t.Skip("store has no profiles")
		}
		u := newUser()
		ctx := context.Background()

		_, err := f.profiles.Get(ctx, u)
		require.ErrorIs(t, err, domain.ErrNotFound)

		in := app.ProfileInput{Age: 30, HeightCm: 165, CurrentWeightKg: dec("60"), DesiredWeightKg: dec("55.5"), BloodType: 2}
		_, err = f.profiles.Put(ctx, u, in)
		require.NoError(t, err)
		in.CurrentWeightKg = dec("58.25")
		in.ActivityLevel = "light"
		_, err = f.profiles.Put(ctx, u, in)
		require.NoError(t, err)

		got, err := f.profiles.Get(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, u, got.UserID)
		assert.Equal(t, 30, got.Age)
		assert.Equal(t, 165, got.HeightCm)
		assert.True(t, got.CurrentWeightKg.Equal(dec("58.25")))
		assert.True(t, got.DesiredWeightKg.Equal(dec("55.5")))
		assert.Equal(t, 2, got.BloodType)
		assert.Equal(t, domain.GenderFemale, got.Gender)
		assert.Equal(t, domain.ActivityLight, got.ActivityLevel)
		assert.Equal(t, app.DailyNorm(got.Profile), got.DailyNorm)
		assert.Equal(t, []string{"meat", "dairy", "kidney beans", "lima beans"}, got.ForbiddenFoods)
	})

	t.Run("DailyViewCarriesNorm", func(t *testing.T) {
		f := newFixture(t, newHarness)
		if f.profiles == nil {
			t.Skip("store has no profiles")
		}
		u := newUser()
		ctx := context.Background()

		view, err := f.diary.GetDailyView(ctx, u, "2024-05-08")
		require.NoError(t, err)
		assert.Nil(t, view.DailyNorm)
		assert.Nil(t, view.Remaining)

		_, err = f.profiles.Put(ctx, u, app.ProfileInput{Age: 30, HeightCm: 165, CurrentWeightKg: dec("60"), DesiredWeightKg: dec("55")})
		require.NoError(t, err)
		f.addProduct(t, u, "2024-05-08", "apple", "150")

		view, err = f.diary.GetDailyView(ctx, u, "2024-05-08")
		require.NoError(t, err)
		require.NotNil(t, view.DailyNorm)
		require.NotNil(t, view.Remaining)
		assert.Equal(t, 1660, *view.DailyNorm)
		assert.True(t, view.Remaining.Equal(dec("1582")), "remaining %s", view.Remaining)

		f.addFreeform(t, u, "2024-05-08", "feast", "1000", "200")
		view, err = f.diary.GetDailyView(ctx, u, "2024-05-08")
		require.NoError(t, err)
		assert.True(t, view.Remaining.Equal(dec("-418")), "remaining %s", view.Remaining)
	})
}

func ids(entries []domain.DiaryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
