package mongo

import (
	"time"

	"github.com/shopspring/decimal"

	"slimmom/internal/domain"
)

// dayModel holds one (user, day): the aggregate and its entries live in the
// same document so every ledger write is a single-document update.
type dayModel struct {
	ID             string       `bson:"_id"`
	UserID         string       `bson:"user_id"`
	Day            string       `bson:"day"`
	TotalCenti     int64        `bson:"total_centi"`
	EntryCount     int          `bson:"entry_count"`
	NeedsReconcile bool         `bson:"needs_reconcile"`
	UpdatedAt      time.Time    `bson:"updated_at"`
	Entries        []entryModel `bson:"entries"`
}

type entryModel struct {
	ID              string    `bson:"_id"`
	ProductID       string    `bson:"product_id,omitempty"`
	Name            string    `bson:"name"`
	QuantityGrams   string    `bson:"quantity_grams"`
	CaloriesPer100g string    `bson:"calories_per_100g"`
	SnapshotCenti   int64     `bson:"snapshot_centi"`
	CreatedAt       time.Time `bson:"created_at"`
}

type productModel struct {
	ID              string `bson:"_id"`
	Title           string `bson:"title"`
	CaloriesPer100g string `bson:"calories_per_100g"`
}

type userModel struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

type sessionModel struct {
	Token     string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	UserAgent string    `bson:"user_agent"`
	IP        string    `bson:"ip"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

type profileModel struct {
	UserID          string    `bson:"_id"`
	Age             int       `bson:"age"`
	HeightCm        int       `bson:"height_cm"`
	CurrentWeightKg string    `bson:"current_weight_kg"`
	DesiredWeightKg string    `bson:"desired_weight_kg"`
	BloodType       int       `bson:"blood_type"`
	Gender          string    `bson:"gender"`
	ActivityLevel   string    `bson:"activity_level"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toProfileModel(p domain.Profile) profileModel {
	return profileModel{
		UserID:          p.UserID,
		Age:             p.Age,
		HeightCm:        p.HeightCm,
		CurrentWeightKg: p.CurrentWeightKg.String(),
		DesiredWeightKg: p.DesiredWeightKg.String(),
		BloodType:       p.BloodType,
		Gender:          string(p.Gender),
		ActivityLevel:   string(p.ActivityLevel),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func fromProfileModel(m profileModel) (domain.Profile, error) {
	current, err := decimal.NewFromString(m.CurrentWeightKg)
	if err != nil {
		return domain.Profile{}, err
	}
	desired, err := decimal.NewFromString(m.DesiredWeightKg)
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{
		UserID:          m.UserID,
		Age:             m.Age,
		HeightCm:        m.HeightCm,
		CurrentWeightKg: current,
		DesiredWeightKg: desired,
		BloodType:       m.BloodType,
		Gender:          domain.Gender(m.Gender),
		ActivityLevel:   domain.ActivityLevel(m.ActivityLevel),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}, nil
}

func dayKey(userID string, day domain.Day) string {
	return userID + "|" + day.String()
}

func toCenti(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCenti(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func toEntryModel(e domain.DiaryEntry) entryModel {
	return entryModel{
		ID:              e.ID,
		ProductID:       e.ProductID,
		Name:            e.Name,
		QuantityGrams:   e.QuantityGrams.String(),
		CaloriesPer100g: e.CaloriesPer100g.String(),
		SnapshotCenti:   toCenti(e.CaloriesSnapshot),
		CreatedAt:       e.CreatedAt.UTC(),
	}
}

func fromEntryModel(userID string, day domain.Day, m entryModel) (domain.DiaryEntry, error) {
	qty, err := decimal.NewFromString(m.QuantityGrams)
	if err != nil {
		return domain.DiaryEntry{}, err
	}
	rate, err := decimal.NewFromString(m.CaloriesPer100g)
	if err != nil {
		return domain.DiaryEntry{}, err
	}
	return domain.DiaryEntry{
		ID:               m.ID,
		UserID:           userID,
		Day:              day,
		ProductID:        m.ProductID,
		Name:             m.Name,
		QuantityGrams:    qty,
		CaloriesPer100g:  rate,
		CaloriesSnapshot: fromCenti(m.SnapshotCenti),
		CreatedAt:        m.CreatedAt.UTC(),
	}, nil
}

func (m *dayModel) aggregate() (domain.DailyAggregate, error) {
	day, err := domain.ParseDay(m.Day)
	if err != nil {
		return domain.DailyAggregate{}, err
	}
	return domain.DailyAggregate{
		UserID:         m.UserID,
		Day:            day,
		TotalCalories:  fromCenti(m.TotalCenti),
		EntryCount:     m.EntryCount,
		NeedsReconcile: m.NeedsReconcile,
		UpdatedAt:      m.UpdatedAt.UTC(),
	}, nil
}
