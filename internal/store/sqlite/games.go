package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"openhistoria/internal/store"
)

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

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

	_, err = c.db.ExecContext(ctx, `
	INSERT INTO saved_games (id, name, scenario, turn, auto, narrative, payload, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		scenario = excluded.scenario,
		turn = excluded.turn,
		auto = excluded.auto,
		narrative = excluded.narrative,
		payload = excluded.payload,
		updated_at = excluded.updated_at
	`,
		game.ID, game.Name, game.Scenario, game.State.Turn, boolToInt(game.Auto),
		game.State.Narrative, string(payload),
		created.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving game %q: %w", game.ID, err)
	}
	return nil
}

func (c *Client) LoadGame(ctx context.Context, id string) (*store.SavedGame, error) {
	row := c.db.QueryRowContext(ctx, `
	SELECT id, name, scenario, auto, payload, created_at, updated_at
	FROM saved_games WHERE id = ?
	`, id)

	var (
		game             store.SavedGame
		auto             int
		payload          string
		created, updated string
	)
	err := row.Scan(&game.ID, &game.Name, &game.Scenario, &auto, &payload, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading game %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading game %q: %w", id, err)
	}

	game.Auto = auto != 0
	if game.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if game.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if err := store.DecodePayload([]byte(payload), &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (c *Client) ListGames(ctx context.Context) ([]store.GameSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
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
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating games: %w", err)
	}
	return games, nil
}

func (c *Client) DeleteGame(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM saved_games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting game %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting game %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("deleting game %q: %w", id, store.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner, extra ...any) (store.GameSummary, error) {
	var (
		s       store.GameSummary
		auto    int
		updated string
	)
	dest := append([]any{&s.ID, &s.Name, &s.Scenario, &s.Turn, &auto, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return s, fmt.Errorf("scanning game: %w", err)
	}
	s.Auto = auto != 0
	t, err := parseTime(updated)
	if err != nil {
		return s, err
	}
	s.UpdatedAt = t
	return s, nil
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
