package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"slimmom/internal/domain"
	"slimmom/internal/id"
)

// GetByUsername retrieves a user by username.
func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, bson.M{"username": username})
}

// GetByID retrieves a user by ID.
func (s *Store) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUser(ctx, bson.M{"_id": userID})
}

func (s *Store) getUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var m userModel
	err := s.db.Collection(colUsers).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr("get user", err)
	}
	return &domain.User{ID: m.ID, Username: m.Username, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt.UTC()}, nil
}

// Create creates a new user. The unique username index rejects duplicates.
func (s *Store) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	m := userModel{ID: id.NewUserID(), Username: username, PasswordHash: passwordHash, CreatedAt: now()}
	if _, err := s.db.Collection(colUsers).InsertOne(ctx, m); err != nil {
		return nil, mapErr("create user", err)
	}
	return &domain.User{ID: m.ID, Username: m.Username, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt}, nil
}

// Count returns the total number of users.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.Collection(colUsers).CountDocuments(ctx, bson.M{})
	return int(n), mapErr("count users", err)
}

// SessionRepo implements session persistence on the sessions collection.
type SessionRepo struct {
	s *Store
}

// NewSessionRepo wraps a Store as a SessionRepository.
func NewSessionRepo(s *Store) *SessionRepo {
	return &SessionRepo{s: s}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID, token, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.s.db.Collection(colSessions).InsertOne(ctx, sessionModel{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now(),
	})
	return mapErr("create session", err)
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var m sessionModel
	err := r.s.db.Collection(colSessions).FindOne(ctx, bson.M{"_id": token}).Decode(&m)
	if isNoDocuments(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, mapErr("get session", err)
	}
	return &domain.Session{
		Token:     m.Token,
		UserID:    m.UserID,
		UserAgent: m.UserAgent,
		IP:        m.IP,
		ExpiresAt: m.ExpiresAt.UTC(),
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.s.db.Collection(colSessions).DeleteOne(ctx, bson.M{"_id": token})
	return mapErr("delete session", err)
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.s.db.Collection(colSessions).DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}})
	return mapErr("delete expired sessions", err)
}
