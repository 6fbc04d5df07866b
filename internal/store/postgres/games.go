package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"openhistoria/internal/store"
)

func (c *Client) SaveGame(ctx context.Context, game store.SavedGame) error {
	if err := game.Validate(); err != nil {
		return err
	}
	payload, err := store.EncodePayload(game)
	if err != nil {
		return err
	}

	now := c.now().UTC()
	created := game.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = c.pool.Exec(ctx, `
INSERT INTO saved_games (id, name, scenario, turn, auto, narrative, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    scenario = EXCLUDED.scenario,
    turn = EXCLUDED.turn,
    auto = EXCLUDED.auto,
    narrative = EXCLUDED.narrative,
    payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at
`,
		game.ID, game.Name, game.Scenario, game.State.Turn, game.Auto,
		game.State.Narrative, payload, created, now,
	)
	if err != nil {
		return fmt.Errorf("saving game %q: %w", game.ID, err)
	}
	return nil
}

func (c *Client) LoadGame(ctx context.Context, id string) (*store.SavedGame, error) {
	var (
		game    store.SavedGame
		payload []byte
	)
	err := c.pool.QueryRow(ctx, `
SELECT id, name, scenario, auto, payload, created_at, updated_at
FROM saved_games WHERE id = $1
`, id).Scan(&game.ID, &game.Name, &game.Scenario, &game.Auto, &payload, &game.CreatedAt, &game.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loading game %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading game %q: %w", id, err)
	}
	if err := store.DecodePayload(payload, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (c *Client) ListGames(ctx context.Context) ([]store.GameSummary, error) {
	rows, err := c.pool.Query(ctx, `
SELECT id, name, scenario, turn, auto, updated_at
FROM saved_games
ORDER BY updated_at DESC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	games := []store.GameSummary{}
	for rows.Next() {
		var s store.GameSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Scenario, &s.Turn, &s.Auto, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating games: %w", err)
	}
	return games, nil
}

func (c *Client) DeleteGame(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM saved_games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting game %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting game %q: %w", id, store.ErrNotFound)
	}
	return nil
}
