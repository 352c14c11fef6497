// Package mongo implements the domain repositories on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"slimmom/internal/domain"
)

// Collection name constants.
const (
	colDays     = "diary_days"
	colProducts = "products"
	colUsers    = "users"
	colSessions = "sessions"
	colProfiles = "profiles"
)

var (
	_ domain.LedgerRepository  = (*Store)(nil)
	_ domain.UserRepository    = (*Store)(nil)
	_ domain.SessionRepository = (*SessionRepo)(nil)
	_ domain.Catalog           = (*Store)(nil)
	_ domain.ProfileRepository = (*Store)(nil)
)

// Store implements the domain repositories on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri, pings, and creates indexes in database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	s := &Store{client: client, db: client.Database(database)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colDays: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "day", Value: 1}}},
			{Keys: bson.D{{Key: "entries._id", Value: 1}}},
			{Keys: bson.D{{Key: "needs_reconcile", Value: 1}, {Key: "user_id", Value: 1}, {Key: "day", Value: 1}}},
		},
		colUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSessions: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return mapErr("ping", s.client.Ping(ctx, nil))
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// DropAll removes every collection the store owns.
func (s *Store) DropAll(ctx context.Context) error {
	for _, col := range []string{colDays, colProducts, colUsers, colSessions, colProfiles} {
		if err := s.db.Collection(col).Drop(ctx); err != nil {
			return err
		}
	}
	return s.Migrate(ctx)
}

// mapErr turns timeouts, network failures and errors labelled transient by
// the server into domain.ErrTransient.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{domain.ErrNotFound, domain.ErrForbidden, domain.ErrInvalidInput, domain.ErrTransient} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return domain.Transient("mongo: "+op, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorLabel("RetryableWriteError")) {
		return domain.Transient("mongo: "+op, err)
	}
	return fmt.Errorf("mongo: %s: %w", op, err)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
