package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"slimmom/internal/adapter/memory"
	"slimmom/internal/adapter/mongo"
	"slimmom/internal/adapter/postgres"
	"slimmom/internal/adapter/sqlite"
	"slimmom/internal/domain"
)

type productStore interface {
	domain.Catalog
	PutProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, productID string) error
}

// backend bundles the ports of one storage adapter.
type backend struct {
	ledger   domain.LedgerRepository
	catalog  productStore
	users    domain.UserRepository
	sessions domain.SessionRepository
	profiles domain.ProfileRepository
	ping     func(ctx context.Context) error
	close    func() error
}

func (b *backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

func openBackend(ctx context.Context, kind string) (*backend, error) {
	switch kind {
	case "postgres":
		connStr := os.Getenv("DATABASE_URL")
		if connStr == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
		db, err := postgres.Open(connStr)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		return &backend{
			ledger:   db,
			catalog:  db,
			users:    db,
			sessions: postgres.NewSessionRepo(db),
			profiles: db,
			ping:     db.Ping,
			close:    db.Close,
		}, nil

	case "sqlite":
		db, err := sqlite.Open(env("SQLITE_PATH", "slimmom.db"))
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		return &backend{
			ledger:   db,
			catalog:  db,
			users:    db,
			sessions: sqlite.NewSessionRepo(db),
			profiles: db,
			ping:     db.Ping,
			close:    db.Close,
		}, nil

	case "mongo":
		uri := os.Getenv("MONGODB_URI")
		if uri == "" {
			return nil, errors.New("MONGODB_URI is required")
		}
		s, err := mongo.Open(ctx, uri, env("MONGODB_DATABASE", "slimmom"))
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		closeStore := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.Close(ctx)
		}
		return &backend{
			ledger:   s,
			catalog:  s,
			users:    s,
			sessions: mongo.NewSessionRepo(s),
			profiles: s,
			ping:     s.Ping,
			close:    closeStore,
		}, nil

	case "memory":
		db := memory.New()
		return &backend{
			ledger:   db,
			catalog:  memory.NewCatalog(),
			users:    db,
			sessions: db.NewSessionRepo(),
			profiles: db,
			ping:     db.Ping,
			close:    func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", kind)
}

func withBackend(ctx context.Context, run func(*backend) error) error {
	b, err := openBackend(ctx, storeKind)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()
	return run(b)
}
