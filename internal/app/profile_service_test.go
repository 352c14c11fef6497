package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"slimmom/internal/app"
	"slimmom/internal/domain"
)

func TestDailyNorm(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Profile
		want int
	}{
		{"female sedentary", domain.Profile{Age: 30, HeightCm: 165, CurrentWeightKg: dec("60"), Gender: domain.GenderFemale, ActivityLevel: domain.ActivitySedentary}, 1660},
		{"male moderate", domain.Profile{Age: 40, HeightCm: 180, CurrentWeightKg: dec("80"), Gender: domain.GenderMale, ActivityLevel: domain.ActivityModerate}, 2785},
		{"female light fractional weight", domain.Profile{Age: 25, HeightCm: 170, CurrentWeightKg: dec("65.5"), Gender: domain.GenderFemale, ActivityLevel: domain.ActivityLight}, 2024},
		{"youngest lightest very active", domain.Profile{Age: 13, HeightCm: 100, CurrentWeightKg: dec("30"), Gender: domain.GenderFemale, ActivityLevel: domain.ActivityVeryActive}, 1859},
		{"male upper bounds active", domain.Profile{Age: 120, HeightCm: 250, CurrentWeightKg: dec("300"), Gender: domain.GenderMale, ActivityLevel: domain.ActivityActive}, 7980},
		{"unset activity counts as sedentary", domain.Profile{Age: 30, HeightCm: 175, CurrentWeightKg: dec("70"), Gender: domain.GenderMale}, 2035},
		{"oldest shortest", domain.Profile{Age: 120, HeightCm: 100, CurrentWeightKg: dec("30"), Gender: domain.GenderFemale, ActivityLevel: domain.ActivitySedentary}, 618},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := app.DailyNorm(tt.p); got != tt.want {
				t.Errorf("DailyNorm = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestForbiddenFoods(t *testing.T) {
	tests := []struct {
		bloodType int
		want      []string
	}{
		{1, []string{"pork", "wheat", "corn", "kidney beans"}},
		{2, []string{"meat", "dairy", "kidney beans", "lima beans"}},
		{3, []string{"chicken", "corn", "buckwheat", "lentils"}},
		{4, []string{"red meat", "kidney beans", "corn", "buckwheat"}},
		{5, []string{}},
	}
	for _, tt := range tests {
		got := app.ForbiddenFoods(tt.bloodType)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ForbiddenFoods(%d) = %v, want %v", tt.bloodType, got, tt.want)
		}
	}

	// Callers may not mutate the shared table.
	app.ForbiddenFoods(1)[0] = "broccoli"
	if app.ForbiddenFoods(1)[0] != "pork" {
		t.Error("ForbiddenFoods leaked its backing slice")
	}
}

func validProfile() app.ProfileInput {
	return app.ProfileInput{Age: 30, HeightCm: 165, CurrentWeightKg: dec("60"), DesiredWeightKg: dec("55")}
}

func TestProfilePut_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *app.ProfileInput)
		wantField string
	}{
		{"too young", func(in *app.ProfileInput) { in.Age = 12 }, "age"},
		{"too old", func(in *app.ProfileInput) { in.Age = 121 }, "age"},
		{"too short", func(in *app.ProfileInput) { in.HeightCm = 99 }, "height"},
		{"too tall", func(in *app.ProfileInput) { in.HeightCm = 251 }, "height"},
		{"too light", func(in *app.ProfileInput) { in.CurrentWeightKg = dec("29.99") }, "currentWeight"},
		{"too heavy", func(in *app.ProfileInput) { in.CurrentWeightKg = dec("300.01") }, "currentWeight"},
		{"weight finer than cents", func(in *app.ProfileInput) { in.CurrentWeightKg = dec("60.001") }, "currentWeight"},
		{"missing desired weight", func(in *app.ProfileInput) { in.DesiredWeightKg = dec("0") }, "desiredWeight"},
		{"blood type out of range", func(in *app.ProfileInput) { in.BloodType = 5 }, "bloodType"},
		{"unknown gender", func(in *app.ProfileInput) { in.Gender = "other" }, "gender"},
		{"unknown activity", func(in *app.ProfileInput) { in.ActivityLevel = "couch" }, "activityLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockProfileRepo{}
			svc := app.NewProfileService(repo)
			in := validProfile()
			tt.mutate(&in)

			_, err := svc.Put(context.Background(), "u", in)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.wantField {
				t.Fatalf("expected field %q, got %v", tt.wantField, err)
			}
			if repo.puts != 0 {
				t.Error("invalid profile must not be stored")
			}
		})
	}
}

func TestProfilePut_Defaults(t *testing.T) {
	repo := &mockProfileRepo{}
	svc := app.NewProfileService(repo)

	in := validProfile()
	in.Gender = " Male "
	view, err := svc.Put(context.Background(), "u", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.BloodType != 1 || view.Gender != domain.GenderMale || view.ActivityLevel != domain.ActivitySedentary {
		t.Errorf("unexpected defaults: %+v", view.Profile)
	}
	if view.DailyNorm != app.DailyNorm(view.Profile) {
		t.Errorf("view norm %d out of step with profile", view.DailyNorm)
	}
	if len(view.ForbiddenFoods) != 4 || view.ForbiddenFoods[0] != "pork" {
		t.Errorf("unexpected forbidden foods %v", view.ForbiddenFoods)
	}
	if view.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestProfileGet_NotFound(t *testing.T) {
	svc := app.NewProfileService(&mockProfileRepo{})
	if _, err := svc.Get(context.Background(), "u"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetDailyView_NormAndRemaining(t *testing.T) {
	day, _ := domain.ParseDay("2024-05-01")
	repo := &mockLedgerRepo{
		ledgerFn: func(_ context.Context, userID string, _ domain.Day) ([]domain.DiaryEntry, domain.DailyAggregate, error) {
			agg := domain.EmptyAggregate(userID, day)
			agg.TotalCalories = dec("1700.5")
			agg.EntryCount = 1
			return []domain.DiaryEntry{{ID: "e1", Day: day, CaloriesSnapshot: dec("1700.5")}}, agg, nil
		},
	}
	profiles := &mockProfileRepo{profiles: map[string]domain.Profile{
		"u": {UserID: "u", Age: 30, HeightCm: 165, CurrentWeightKg: dec("60"), Gender: domain.GenderFemale, ActivityLevel: domain.ActivitySedentary},
	}}
	svc := app.NewDiaryService(repo, &mockCatalog{}, nil).WithProfiles(app.NewProfileService(profiles))

	view, err := svc.GetDailyView(context.Background(), "u", "2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.DailyNorm == nil || *view.DailyNorm != 1660 {
		t.Fatalf("expected norm 1660, got %v", view.DailyNorm)
	}
	if view.Remaining == nil || !view.Remaining.Equal(dec("-40.5")) {
		t.Errorf("expected remaining -40.5, got %v", view.Remaining)
	}

	other, err := svc.GetDailyView(context.Background(), "v", "2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.DailyNorm != nil || other.Remaining != nil {
		t.Error("user without a profile must not get a norm")
	}
}

func TestGetDailyView_ProfileStoreFailure(t *testing.T) {
	profiles := &mockProfileRepo{getErr: domain.Transient("get profile", errors.New("timeout"))}
	svc := app.NewDiaryService(&mockLedgerRepo{}, &mockCatalog{}, nil).WithProfiles(app.NewProfileService(profiles))

	if _, err := svc.GetDailyView(context.Background(), "u", "2024-05-01"); !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
