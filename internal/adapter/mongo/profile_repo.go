package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"slimmom/internal/domain"
)

// GetProfile loads the user's profile document.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var m profileModel
	err := s.db.Collection(colProfiles).FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	if isNoDocuments(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr("get profile", err)
	}
	p, err := fromProfileModel(m)
	if err != nil {
		return nil, mapErr("decode profile", err)
	}
	return &p, nil
}

// PutProfile replaces the user's profile document.
func (s *Store) PutProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.db.Collection(colProfiles).ReplaceOne(ctx,
		bson.M{"_id": p.UserID},
		toProfileModel(p),
		options.Replace().SetUpsert(true),
	)
	return mapErr("put profile", err)
}
