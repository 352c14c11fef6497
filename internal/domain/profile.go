package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Gender selects the basal metabolic rate coefficients.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// ActivityLevel scales the basal metabolic rate into a daily norm.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// Profile holds the body measurements a user's daily calorie norm is
// derived from.
type Profile struct {
	UserID          string          `json:"userId"`
	Age             int             `json:"age"`
	HeightCm        int             `json:"height"`
	CurrentWeightKg decimal.Decimal `json:"currentWeight"`
	DesiredWeightKg decimal.Decimal `json:"desiredWeight"`
	BloodType       int             `json:"bloodType"`
	Gender          Gender          `json:"gender"`
	ActivityLevel   ActivityLevel   `json:"activityLevel"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ProfileRepository persists one profile per user. GetProfile returns
// ErrNotFound when the user has not filled one in.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	PutProfile(ctx context.Context, p Profile) error
}
