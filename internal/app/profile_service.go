package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"slimmom/internal/domain"
)

// Harris-Benedict coefficients: constant, per kg, per cm, per year.
var (
	bmrMale   = [4]decimal.Decimal{decimal.RequireFromString("88.362"), decimal.RequireFromString("13.397"), decimal.RequireFromString("4.799"), decimal.RequireFromString("5.677")}
	bmrFemale = [4]decimal.Decimal{decimal.RequireFromString("447.593"), decimal.RequireFromString("9.247"), decimal.RequireFromString("3.098"), decimal.RequireFromString("4.330")}
)

var activityFactors = map[domain.ActivityLevel]decimal.Decimal{
	domain.ActivitySedentary:  decimal.RequireFromString("1.2"),
	domain.ActivityLight:      decimal.RequireFromString("1.375"),
	domain.ActivityModerate:   decimal.RequireFromString("1.55"),
	domain.ActivityActive:     decimal.RequireFromString("1.725"),
	domain.ActivityVeryActive: decimal.RequireFromString("1.9"),
}

var forbiddenFoods = map[int][]string{
	1: {"pork", "wheat", "corn", "kidney beans"},
	2: {"meat", "dairy", "kidney beans", "lima beans"},
	3: {"chicken", "corn", "buckwheat", "lentils"},
	4: {"red meat", "kidney beans", "corn", "buckwheat"},
}

var (
	minWeightKg = decimal.NewFromInt(30)
	maxWeightKg = decimal.NewFromInt(300)
)

// DailyNorm returns the recommended daily calorie intake for p: the
// Harris-Benedict basal rate scaled by the activity factor, rounded to
// whole kilocalories.
func DailyNorm(p domain.Profile) int {
	c := bmrFemale
	if p.Gender == domain.GenderMale {
		c = bmrMale
	}
	bmr := c[0].
		Add(c[1].Mul(p.CurrentWeightKg)).
		Add(c[2].Mul(decimal.NewFromInt(int64(p.HeightCm)))).
		Sub(c[3].Mul(decimal.NewFromInt(int64(p.Age))))

	factor, ok := activityFactors[p.ActivityLevel]
	if !ok {
		factor = activityFactors[domain.ActivitySedentary]
	}
	return int(bmr.Mul(factor).Round(0).IntPart())
}

// ForbiddenFoods lists the foods not recommended for bloodType. Unknown
// types get none.
func ForbiddenFoods(bloodType int) []string {
	foods := forbiddenFoods[bloodType]
	out := make([]string, len(foods))
	copy(out, foods)
	return out
}

// ProfileInput carries the user-supplied profile fields. Empty BloodType,
// Gender and ActivityLevel fall back to 1, female and sedentary.
type ProfileInput struct {
	Age             int
	HeightCm        int
	CurrentWeightKg decimal.Decimal
	DesiredWeightKg decimal.Decimal
	BloodType       int
	Gender          string
	ActivityLevel   string
}

// ProfileView is a stored profile together with what is derived from it.
type ProfileView struct {
	domain.Profile
	DailyNorm      int      `json:"dailyNorm"`
	ForbiddenFoods []string `json:"forbiddenFoods"`
}

// ProfileService manages user profiles and the daily norm derived from them.
type ProfileService struct {
	repo domain.ProfileRepository
	now  func() time.Time
}

// NewProfileService creates a ProfileService backed by repo.
func NewProfileService(repo domain.ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo, now: time.Now}
}

// Get returns userID's profile. It returns ErrNotFound when none was saved.
func (s *ProfileService) Get(ctx context.Context, userID string) (*ProfileView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newProfileView(*p), nil
}

// Put validates in and replaces userID's profile.
func (s *ProfileService) Put(ctx context.Context, userID string, in ProfileInput) (*ProfileView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	p, err := buildProfile(userID, in)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.PutProfile(ctx, p); err != nil {
		return nil, err
	}
	return newProfileView(p), nil
}

// DailyNorm returns userID's daily norm, or ok=false when no profile exists.
func (s *ProfileService) DailyNorm(ctx context.Context, userID string) (norm int, ok bool, err error) {
	p, err := s.repo.GetProfile(ctx, userID)
	switch {
	case err == nil:
		return DailyNorm(*p), true, nil
	case errors.Is(err, domain.ErrNotFound):
		return 0, false, nil
	default:
		return 0, false, err
	}
}

func newProfileView(p domain.Profile) *ProfileView {
	return &ProfileView{Profile: p, DailyNorm: DailyNorm(p), ForbiddenFoods: ForbiddenFoods(p.BloodType)}
}

func buildProfile(userID string, in ProfileInput) (domain.Profile, error) {
	p := domain.Profile{
		UserID:          userID,
		Age:             in.Age,
		HeightCm:        in.HeightCm,
		CurrentWeightKg: in.CurrentWeightKg,
		DesiredWeightKg: in.DesiredWeightKg,
		BloodType:       in.BloodType,
		Gender:          domain.Gender(strings.ToLower(strings.TrimSpace(in.Gender))),
		ActivityLevel:   domain.ActivityLevel(strings.ToLower(strings.TrimSpace(in.ActivityLevel))),
	}
	if p.BloodType == 0 {
		p.BloodType = 1
	}
	if p.Gender == "" {
		p.Gender = domain.GenderFemale
	}
	if p.ActivityLevel == "" {
		p.ActivityLevel = domain.ActivitySedentary
	}

	if p.Age < 13 || p.Age > 120 {
		return p, domain.Invalid("age", "must be within [13, 120]")
	}
	if p.HeightCm < 100 || p.HeightCm > 250 {
		return p, domain.Invalid("height", "must be within [100, 250]")
	}
	if err := checkWeight("currentWeight", p.CurrentWeightKg); err != nil {
		return p, err
	}
	if err := checkWeight("desiredWeight", p.DesiredWeightKg); err != nil {
		return p, err
	}
	if p.BloodType < 1 || p.BloodType > 4 {
		return p, domain.Invalid("bloodType", "must be 1, 2, 3 or 4")
	}
	if p.Gender != domain.GenderFemale && p.Gender != domain.GenderMale {
		return p, domain.Invalid("gender", "must be male or female")
	}
	if _, ok := activityFactors[p.ActivityLevel]; !ok {
		return p, domain.Invalid("activityLevel", "must be one of sedentary, light, moderate, active, very_active")
	}
	return p, nil
}

func checkWeight(field string, kg decimal.Decimal) error {
	if kg.LessThan(minWeightKg) || kg.GreaterThan(maxWeightKg) {
		return domain.Invalid(field, "must be within [30, 300]")
	}
	if !domain.FitsCents(kg) {
		return domain.Invalid(field, "must have at most 2 decimal places")
	}
	return nil
}
