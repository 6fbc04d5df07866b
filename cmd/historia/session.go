package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"openhistoria/internal/config"
	"openhistoria/internal/journal"
	"openhistoria/internal/keystore"
	"openhistoria/internal/oracle"
	"openhistoria/internal/store"
	"openhistoria/internal/store/autosave"
	"openhistoria/internal/telemetry"
	"openhistoria/internal/timeline"
	"openhistoria/internal/turn"
	"openhistoria/internal/world"
	"openhistoria/internal/worlddata"
)

// app is everything a running game needs, built from the project config.
type app struct {
	cfg         *config.ProjectConfig
	env         config.Env
	logger      *log.Logger
	coordinator *turn.Coordinator
	adjudicator *turn.Adjudicator
	games       store.Store
	keys        *keystore.Store
	autosave    *autosave.Writer
	journal     *journal.Async
	shutdown    func(context.Context) error
}

type appOptions struct {
	// Resume loads the autosave instead of the world files when one exists.
	Resume bool
	// LoadID loads a named save.
	LoadID string
	// Storage is false for commands that never persist games.
	Storage bool
}

func loadConfig() (*config.ProjectConfig, config.Env, error) {
	return config.Load(configPath)
}

func openKeys(cfg *config.ProjectConfig, env config.Env) (*keystore.Store, error) {
	return keystore.Open(cfg.Keystore.Path, env.KeystoreSecret)
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := log.Default()

	shutdown, err := telemetry.Setup(ctx, "historia", version, env.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, env: env, logger: logger, shutdown: shutdown}

	keys, err := openKeys(cfg, env)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.keys = keys

	policy, err := turn.ParseTimePolicy(cfg.Game.TimePolicy)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	client := &http.Client{Timeout: cfg.Oracle.Timeout}
	dispatcher := oracle.NewDispatcher(oracle.Providers(oracle.Endpoints(cfg.Oracle.Endpoints), client)...)
	a.adjudicator = turn.NewAdjudicator(dispatcher, keystore.Chain(keys, keystore.ResolverFunc(env.APIKey)), policy)

	initial, scenario, err := loadWorld(cfg, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	ws := world.NewStore(initial)
	a.coordinator = turn.NewCoordinator(ws, timeline.NewManager(ws), a.adjudicator, turn.Settings{
		Scenario:   scenario,
		Difficulty: cfg.Game.Difficulty,
		Oracle:     oracle.ProviderConfig{Provider: cfg.Oracle.Provider, Model: cfg.Oracle.Model},
	}, logger)

	if opts.Storage || opts.Resume || opts.LoadID != "" {
		games, err := openStore(ctx, cfg.Storage.DSN)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.games = games
		if err := a.restore(ctx, opts); err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.autosave = autosave.NewWriter(games, logger, autosave.DefaultBuffer)
		a.coordinator.Observe(turn.ObserverFunc(a.autosaveTurn))
	}

	if cfg.Journal.Dir != "" {
		a.journal = journal.NewAsync(journal.NewFileWriter(cfg.Journal.Dir), logger, 0)
		a.coordinator.Observe(turn.ObserverFunc(a.journalTurn))
	}
	return a, nil
}

func loadWorld(cfg *config.ProjectConfig, logger *log.Logger) (world.State, string, error) {
	res, err := worlddata.Load(cfg.World.Paths, cfg.World.Exclude, cfg.Game.StartYear)
	if err != nil {
		return world.State{}, "", err
	}
	for _, e := range res.Errors {
		logger.Printf("skipping world file: %v", e)
	}
	report := worlddata.Check(res.State)
	if report.HasErrors() {
		return world.State{}, "", fmt.Errorf("world data has errors; run `historia world validate`")
	}
	scenario := res.Scenario
	if scenario == "" {
		scenario = cfg.Game.Scenario
	}
	return res.State, scenario, nil
}

func (a *app) restore(ctx context.Context, opts appOptions) error {
	id := opts.LoadID
	if id == "" && opts.Resume {
		id = store.AutosaveID
	}
	if id == "" {
		return nil
	}
	game, err := a.games.LoadGame(ctx, id)
	if errors.Is(err, store.ErrNotFound) && id == store.AutosaveID {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading save %s: %w", id, err)
	}
	if err := a.coordinator.Load(game.State, game.Timeline, game.CurrentSnapshot); err != nil {
		return err
	}
	if game.Scenario != "" {
		settings := a.coordinator.Settings()
		settings.Scenario = game.Scenario
		a.coordinator.Configure(settings)
	}
	return nil
}

func (a *app) autosaveTurn(rec turn.Record) {
	if rec.Err != nil {
		return
	}
	a.autosave.Enqueue(store.SavedGame{
		ID:              store.AutosaveID,
		Name:            "Autosave",
		Scenario:        a.coordinator.Settings().Scenario,
		Auto:            true,
		State:           rec.State,
		Timeline:        rec.Timeline,
		CurrentSnapshot: rec.CurrentSnapshot,
	})
}

func (a *app) journalTurn(rec turn.Record) {
	entry := journal.Entry{
		At:          rec.At,
		Kind:        string(rec.Kind),
		Command:     rec.Command,
		Turn:        rec.Result.Turn,
		Message:     rec.Result.Message,
		Ignored:     len(rec.Result.Ignored),
		Significant: rec.Result.Significant,
		SnapshotID:  rec.Result.SnapshotID,
	}
	for _, applied := range rec.Result.Applied {
		entry.Applied = append(entry.Applied, applied.Log.Text)
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	}
	a.journal.Record(entry)
}

// save writes the running game under id.
func (a *app) save(ctx context.Context, id, name string) (store.GameSummary, error) {
	if a.games == nil {
		return store.GameSummary{}, fmt.Errorf("storage is not configured")
	}
	game := store.Capture(a.coordinator, id, name, a.coordinator.Settings().Scenario)
	if err := a.games.SaveGame(ctx, game); err != nil {
		return store.GameSummary{}, err
	}
	return game.Summary(), nil
}

func (a *app) Close(ctx context.Context) {
	if a.autosave != nil {
		a.autosave.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Printf("closing journal: %v", err)
		}
	}
	if a.games != nil {
		if err := a.games.Close(ctx); err != nil {
			a.logger.Printf("closing storage: %v", err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}
}
