// Package store persists saved games. Implementations live in the sqlite
// and postgres subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("saved game not found")

type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	SaveGame(ctx context.Context, game SavedGame) error
	LoadGame(ctx context.Context, id string) (*SavedGame, error)
	ListGames(ctx context.Context) ([]GameSummary, error)
	DeleteGame(ctx context.Context, id string) error
	SearchGames(ctx context.Context, query string) ([]SearchResult, error)
}

// Scheme returns the lowercased scheme of a storage DSN.
func Scheme(dsn string) (string, error) {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok || scheme == "" {
		return "", fmt.Errorf("storage dsn %q has no scheme", dsn)
	}
	return strings.ToLower(scheme), nil
}
