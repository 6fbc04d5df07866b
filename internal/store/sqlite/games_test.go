package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"openhistoria/internal/store"
	"openhistoria/internal/timeline"
	"openhistoria/internal/world"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "nested", "saves.db")
	c, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { c.Close(ctx) })
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	// Schema creation is idempotent.
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema twice: %v", err)
	}
	return c
}

func sampleGame(id, name string) store.SavedGame {
	france := "france"
	return store.SavedGame{
		ID:       id,
		Name:     name,
		Scenario: "Hundred Years War",
		State: world.State{
			Turn:    1444,
			Nations: []world.Nation{{ID: "player", Name: "Burgundy"}, {ID: "france", Name: "France"}},
			Provinces: []world.Province{
				{ID: "normandy", Name: "Normandy", OwnerID: &france},
				{ID: "flanders", Name: "Flanders"},
			},
			Relations: []world.Relation{{NationA: "player", NationB: "france", Type: world.RelationWar}},
			Narrative: "Burgundy marched on Calais.",
		},
		Timeline:        []timeline.Snapshot{{ID: "s1", TurnYear: 1444, Description: "War declared", Command: "declare war"}},
		CurrentSnapshot: "s1",
	}
}

func TestSaveAndLoadGame(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	game := sampleGame("g1", "Burgundian ascendancy")
	if err := c.SaveGame(ctx, game); err != nil {
		t.Fatalf("saving: %v", err)
	}

	loaded, err := c.LoadGame(ctx, "g1")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if loaded.Name != game.Name || loaded.Scenario != game.Scenario {
		t.Fatalf("expected %q/%q, got %q/%q", game.Name, game.Scenario, loaded.Name, loaded.Scenario)
	}
	if loaded.State.Turn != 1444 {
		t.Fatalf("expected turn 1444, got %d", loaded.State.Turn)
	}
	if got := loaded.State.Provinces[0].Owner(); got != "france" {
		t.Fatalf("expected normandy owned by france, got %q", got)
	}
	if loaded.State.Provinces[1].OwnerID != nil {
		t.Fatalf("expected flanders unowned, got %q", *loaded.State.Provinces[1].OwnerID)
	}
	if len(loaded.Timeline) != 1 || loaded.CurrentSnapshot != "s1" {
		t.Fatalf("expected timeline to round trip, got %+v current=%q", loaded.Timeline, loaded.CurrentSnapshot)
	}
	if loaded.CreatedAt.IsZero() || loaded.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestSaveGameOverwrites(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	base := time.Date(1444, 11, 11, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	game := sampleGame("g1", "First")
	if err := c.SaveGame(ctx, game); err != nil {
		t.Fatalf("saving: %v", err)
	}
	c.now = func() time.Time { return base.Add(time.Hour) }
	game.Name = "Renamed"
	game.State.Turn = 1450
	if err := c.SaveGame(ctx, game); err != nil {
		t.Fatalf("saving again: %v", err)
	}

	games, err := c.ListGames(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(games))
	}
	if games[0].Name != "Renamed" || games[0].Turn != 1450 {
		t.Fatalf("expected renamed game at 1450, got %+v", games[0])
	}

	loaded, err := c.LoadGame(ctx, "g1")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if !loaded.CreatedAt.Equal(base) {
		t.Fatalf("expected created_at preserved as %v, got %v", base, loaded.CreatedAt)
	}
	if !loaded.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected updated_at bumped, got %v", loaded.UpdatedAt)
	}
}

func TestListGamesNewestFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		c.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		g := sampleGame(id, id)
		if id == "new" {
			g.Auto = true
		}
		if err := c.SaveGame(ctx, g); err != nil {
			t.Fatalf("saving %s: %v", id, err)
		}
	}

	games, err := c.ListGames(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	var ids []string
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	if len(ids) != 3 || ids[0] != "new" || ids[2] != "old" {
		t.Fatalf("expected newest first, got %v", ids)
	}
	if !games[0].Auto {
		t.Fatal("expected auto flag to round trip")
	}
}

func TestDeleteGame(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.SaveGame(ctx, sampleGame("g1", "Doomed")); err != nil {
		t.Fatalf("saving: %v", err)
	}
	if err := c.DeleteGame(ctx, "g1"); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if _, err := c.LoadGame(ctx, "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := c.DeleteGame(ctx, "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestSaveGameValidation(t *testing.T) {
	c := newTestClient(t)
	if err := c.SaveGame(context.Background(), store.SavedGame{Name: "no id"}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if err := c.SaveGame(context.Background(), store.SavedGame{ID: "x"}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestSearchGames(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	calais := sampleGame("g1", "Calais campaign")
	other := sampleGame("g2", "Quiet reign")
	other.State.Narrative = "Peace settled over the Low Countries."
	for _, g := range []store.SavedGame{calais, other} {
		if err := c.SaveGame(ctx, g); err != nil {
			t.Fatalf("saving: %v", err)
		}
	}

	results, err := c.SearchGames(ctx, "calais")
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(results) != 1 || results[0].ID != "g1" {
		t.Fatalf("expected only g1, got %+v", results)
	}

	results, err = c.SearchGames(ctx, "peace OR calais")
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// Updates keep the index in sync.
	calais.State.Narrative = "Burgundy withdrew."
	calais.Name = "Withdrawal"
	if err := c.SaveGame(ctx, calais); err != nil {
		t.Fatalf("saving: %v", err)
	}
	results, err = c.SearchGames(ctx, "calais")
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected stale entry removed, got %+v", results)
	}

	if _, err := c.SearchGames(ctx, "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}
