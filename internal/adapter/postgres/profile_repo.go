package postgres

import (
	"context"
	"database/sql"
	"errors"

	"slimmom/internal/domain"
)

var _ domain.ProfileRepository = (*DB)(nil)

// GetProfile loads the user's profile.
func (d *DB) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := d.sql.QueryRowContext(ctx,
		`SELECT user_id, age, height_cm, current_weight_kg, desired_weight_kg, blood_type, gender, activity_level, updated_at
		FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Age, &p.HeightCm, &p.CurrentWeightKg, &p.DesiredWeightKg, &p.BloodType, &p.Gender, &p.ActivityLevel, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr("get profile", err)
	}
	return &p, nil
}

// PutProfile upserts the user's profile.
func (d *DB) PutProfile(ctx context.Context, p domain.Profile) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO profiles (user_id, age, height_cm, current_weight_kg, desired_weight_kg, blood_type, gender, activity_level, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			age = EXCLUDED.age,
			height_cm = EXCLUDED.height_cm,
			current_weight_kg = EXCLUDED.current_weight_kg,
			desired_weight_kg = EXCLUDED.desired_weight_kg,
			blood_type = EXCLUDED.blood_type,
			gender = EXCLUDED.gender,
			activity_level = EXCLUDED.activity_level,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Age, p.HeightCm, p.CurrentWeightKg, p.DesiredWeightKg, p.BloodType, string(p.Gender), string(p.ActivityLevel), p.UpdatedAt,
	)
	return mapErr("put profile", err)
}
