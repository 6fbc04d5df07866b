package main

import (
	"context"
	"fmt"

	"openhistoria/internal/store"
	"openhistoria/internal/store/postgres"
	"openhistoria/internal/store/sqlite"
)

func openStore(ctx context.Context, dsn string) (store.Store, error) {
	scheme, err := store.Scheme(dsn)
	if err != nil {
		return nil, err
	}

	var s store.Store
	switch scheme {
	case "sqlite":
		s, err = sqlite.New(ctx, dsn)
	case "postgres", "postgresql":
		s, err = postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}
