// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"slimmom/internal/domain"
	"slimmom/internal/id"
)

// bucket holds the entries and aggregate of one (user, day). Mutations of a
// bucket never take another bucket's lock, so different keys proceed in
// parallel.
type bucket struct {
	mu      sync.Mutex
	entries []domain.DiaryEntry
	agg     domain.DailyAggregate
	stored  bool
}

// DB implements an in-memory database storage.
type DB struct {
	mu      sync.RWMutex
	buckets map[domain.AggregateKey]*bucket
	index   map[string]domain.AggregateKey

	authMu   sync.Mutex
	users    []*domain.User
	sessions map[string]*domain.Session
	profiles map[string]domain.Profile
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		buckets:  make(map[domain.AggregateKey]*bucket),
		index:    make(map[string]domain.AggregateKey),
		sessions: make(map[string]*domain.Session),
		profiles: make(map[string]domain.Profile),
	}
}

// Ensure interfaces are met.
var _ domain.LedgerRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.ProfileRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

func (db *DB) bucketFor(key domain.AggregateKey, create bool) *bucket {
	db.mu.RLock()
	b := db.buckets[key]
	db.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if b = db.buckets[key]; b == nil {
		b = &bucket{agg: domain.EmptyAggregate(key.UserID, key.Day)}
		db.buckets[key] = b
	}
	return b
}

// --- LedgerRepository ---

// InsertEntry appends the entry and applies its delta under the bucket lock.
func (db *DB) InsertEntry(ctx context.Context, e domain.DiaryEntry) error {
	if err := ctx.Err(); err != nil {
		return domain.Transient("memory: insert entry", err)
	}
	key := domain.AggregateKey{UserID: e.UserID, Day: e.Day}
	b := db.bucketFor(key, true)

	b.mu.Lock()
	defer b.mu.Unlock()

	e.CreatedAt = e.CreatedAt.UTC()
	b.entries = append(b.entries, e)
	b.agg.TotalCalories = b.agg.TotalCalories.Add(e.CaloriesSnapshot)
	b.agg.EntryCount++
	b.agg.UpdatedAt = time.Now().UTC()
	b.stored = true

	db.mu.Lock()
	db.index[e.ID] = key
	db.mu.Unlock()
	return nil
}

// DeleteEntry removes an entry by ID, scoped to a user.
func (db *DB) DeleteEntry(ctx context.Context, userID, entryID string) (*domain.DiaryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Transient("memory: delete entry", err)
	}
	db.mu.RLock()
	key, ok := db.index[entryID]
	db.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if key.UserID != userID {
		return nil, domain.ErrForbidden
	}

	b := db.bucketFor(key, false)
	if b == nil {
		return nil, domain.ErrNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i := range b.entries {
		if b.entries[i].ID == entryID {
			idx = i
			break
		}
	}
	// A concurrent remover got here first.
	if idx == -1 {
		return nil, domain.ErrNotFound
	}
	removed := b.entries[idx]
	b.entries = append(b.entries[:idx], b.entries[idx+1:]...)

	total := b.agg.TotalCalories.Sub(removed.CaloriesSnapshot)
	if total.IsNegative() {
		total = decimal.Zero
		b.agg.NeedsReconcile = true
	}
	count := b.agg.EntryCount - 1
	if count < 0 {
		count = 0
		b.agg.NeedsReconcile = true
	}
	b.agg.TotalCalories = total
	b.agg.EntryCount = count
	b.agg.UpdatedAt = time.Now().UTC()

	db.mu.Lock()
	delete(db.index, entryID)
	db.mu.Unlock()
	return &removed, nil
}

// EntriesForDay returns the entries of one day in creation order.
func (db *DB) EntriesForDay(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, error) {
	b := db.bucketFor(domain.AggregateKey{UserID: userID, Day: day}, false)
	if b == nil {
		return []domain.DiaryEntry{}, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.DiaryEntry, len(b.entries))
	copy(out, b.entries)
	return out, nil
}

// AllEntries returns every entry of a user, newest day and newest entry first.
func (db *DB) AllEntries(ctx context.Context, userID string) ([]domain.DiaryEntry, error) {
	type dayBucket struct {
		day domain.Day
		b   *bucket
	}
	db.mu.RLock()
	var days []dayBucket
	for k, b := range db.buckets {
		if k.UserID == userID {
			days = append(days, dayBucket{day: k.Day, b: b})
		}
	}
	db.mu.RUnlock()

	sort.Slice(days, func(i, j int) bool {
		return days[j].day.Before(days[i].day)
	})

	out := make([]domain.DiaryEntry, 0)
	for _, d := range days {
		d.b.mu.Lock()
		for i := len(d.b.entries) - 1; i >= 0; i-- {
			out = append(out, d.b.entries[i])
		}
		d.b.mu.Unlock()
	}
	return out, nil
}

// DayLedger reads entries and aggregate under one bucket lock.
func (db *DB) DayLedger(ctx context.Context, userID string, day domain.Day) ([]domain.DiaryEntry, domain.DailyAggregate, error) {
	b := db.bucketFor(domain.AggregateKey{UserID: userID, Day: day}, false)
	if b == nil {
		return []domain.DiaryEntry{}, domain.EmptyAggregate(userID, day), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.DiaryEntry, len(b.entries))
	copy(out, b.entries)
	return out, b.agg, nil
}

// Aggregate returns the stored aggregate or an empty one.
func (db *DB) Aggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, error) {
	b := db.bucketFor(domain.AggregateKey{UserID: userID, Day: day}, false)
	if b == nil {
		return domain.EmptyAggregate(userID, day), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.agg, nil
}

// AggregatesBetween returns stored aggregates for from..to, oldest first.
func (db *DB) AggregatesBetween(ctx context.Context, userID string, from, to domain.Day) ([]domain.DailyAggregate, error) {
	db.mu.RLock()
	var found []*bucket
	for k, b := range db.buckets {
		if k.UserID == userID && !k.Day.Before(from) && !to.Before(k.Day) {
			found = append(found, b)
		}
	}
	db.mu.RUnlock()

	out := make([]domain.DailyAggregate, 0, len(found))
	for _, b := range found {
		b.mu.Lock()
		if b.stored {
			out = append(out, b.agg)
		}
		b.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out, nil
}

// RecomputeAggregate overwrites the aggregate with the sum of live entries.
func (db *DB) RecomputeAggregate(ctx context.Context, userID string, day domain.Day) (domain.DailyAggregate, domain.DailyAggregate, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyAggregate{}, domain.DailyAggregate{}, domain.Transient("memory: reconcile", err)
	}
	b := db.bucketFor(domain.AggregateKey{UserID: userID, Day: day}, true)
	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.agg
	after := domain.SumEntries(userID, day, b.entries)
	after.UpdatedAt = time.Now().UTC()
	b.agg = after
	b.stored = true
	return before, after, nil
}

// FlaggedAggregates lists aggregates awaiting reconciliation.
func (db *DB) FlaggedAggregates(ctx context.Context, limit int) ([]domain.AggregateKey, error) {
	db.mu.RLock()
	snapshot := make(map[domain.AggregateKey]*bucket, len(db.buckets))
	for k, b := range db.buckets {
		snapshot[k] = b
	}
	db.mu.RUnlock()

	out := make([]domain.AggregateKey, 0)
	for k, b := range snapshot {
		b.mu.Lock()
		flagged := b.agg.NeedsReconcile
		b.mu.Unlock()
		if flagged {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Day.Before(out[j].Day)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (db *DB) Ping(ctx context.Context) error {
	return nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.authMu.Lock()
	defer db.authMu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	db.authMu.Lock()
	defer db.authMu.Unlock()

	for _, u := range db.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	db.authMu.Lock()
	defer db.authMu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, errors.New("user already exists")
		}
	}

	u := &domain.User{
		ID:           id.NewUserID(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	return u, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.authMu.Lock()
	defer db.authMu.Unlock()
	return len(db.users), nil
}

// --- ProfileRepository ---

// GetProfile returns a copy of the stored profile.
func (db *DB) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	db.authMu.Lock()
	defer db.authMu.Unlock()

	p, ok := db.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// PutProfile replaces the user's profile.
func (db *DB) PutProfile(ctx context.Context, p domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return domain.Transient("memory: put profile", err)
	}
	db.authMu.Lock()
	defer db.authMu.Unlock()
	db.profiles[p.UserID] = p
	return nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.authMu.Lock()
	defer r.db.authMu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.authMu.Lock()
	defer r.db.authMu.Unlock()

	s, ok := r.db.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if time.Now().After(s.ExpiresAt) {
		delete(r.db.sessions, token)
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.authMu.Lock()
	defer r.db.authMu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.authMu.Lock()
	defer r.db.authMu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
