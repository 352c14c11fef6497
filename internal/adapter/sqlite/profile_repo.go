package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"slimmom/internal/domain"
)

var _ domain.ProfileRepository = (*DB)(nil)

// GetProfile loads the user's profile.
func (d *DB) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p       domain.Profile
		updated int64
	)
	err := d.sql.QueryRowContext(ctx,
		`SELECT user_id, age, height_cm, current_weight_kg, desired_weight_kg, blood_type, gender, activity_level, updated_at
		FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Age, &p.HeightCm, &p.CurrentWeightKg, &p.DesiredWeightKg, &p.BloodType, &p.Gender, &p.ActivityLevel, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr("get profile", err)
	}
	p.UpdatedAt = time.UnixMicro(updated).UTC()
	return &p, nil
}

// PutProfile upserts the user's profile.
func (d *DB) PutProfile(ctx context.Context, p domain.Profile) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO profiles (user_id, age, height_cm, current_weight_kg, desired_weight_kg, blood_type, gender, activity_level, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			age = excluded.age,
			height_cm = excluded.height_cm,
			current_weight_kg = excluded.current_weight_kg,
			desired_weight_kg = excluded.desired_weight_kg,
			blood_type = excluded.blood_type,
			gender = excluded.gender,
			activity_level = excluded.activity_level,
			updated_at = excluded.updated_at`,
		p.UserID, p.Age, p.HeightCm, p.CurrentWeightKg.String(), p.DesiredWeightKg.String(),
		p.BloodType, string(p.Gender), string(p.ActivityLevel), p.UpdatedAt.UnixMicro(),
	)
	return mapErr("put profile", err)
}
