package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"openhistoria/internal/config"
	"openhistoria/internal/graph"
	"openhistoria/internal/store"
	"openhistoria/internal/world"
	"openhistoria/internal/worlddata"
)

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Mirror worlds into Neo4j",
	}
	cmd.AddCommand(graphExportCmd())
	cmd.AddCommand(graphQueryCmd())
	return cmd
}

func openGraph(ctx context.Context, cfg *config.ProjectConfig) (*graph.Client, error) {
	if cfg.Neo4j.URI == "" {
		return nil, fmt.Errorf("neo4j.uri is not configured")
	}
	return graph.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
}

func graphExportCmd() *cobra.Command {
	var saveID string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the world files, or a saved game, as a graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphExport(cmd, saveID)
		},
	}
	cmd.Flags().StringVar(&saveID, "save", "", "Export a saved game instead of the world files")
	return cmd
}

func runGraphExport(cmd *cobra.Command, saveID string) error {
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	gameID := "world"
	var state world.State
	if saveID != "" {
		err := withStore(func(ctx context.Context, games store.Store) error {
			game, err := games.LoadGame(ctx, saveID)
			if err != nil {
				return err
			}
			state = game.State
			return nil
		})
		if err != nil {
			return err
		}
		gameID = saveID
	} else {
		res, err := worlddata.Load(cfg.World.Paths, cfg.World.Exclude, cfg.Game.StartYear)
		if err != nil {
			return err
		}
		state = res.State
	}

	client, err := openGraph(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	if err := client.EnsureIndexes(ctx); err != nil {
		return err
	}
	stats, err := client.ExportWorld(ctx, gameID, state)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s: %d nations, %d provinces, %d relations, %d events\n",
		gameID, stats.Nations, stats.Provinces, stats.Relations, stats.Events)
	return nil
}

func graphQueryCmd() *cobra.Command {
	var paramPairs []string
	cmd := &cobra.Command{
		Use:   "query <cypher>",
		Short: "Run a read-only Cypher query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(paramPairs)
			if err != nil {
				return err
			}
			return runGraphQuery(cmd, strings.Join(args, " "), params)
		},
	}
	cmd.Flags().StringArrayVar(&paramPairs, "param", nil, "Query parameter as key=value (repeatable)")
	return cmd
}

func runGraphQuery(cmd *cobra.Command, query string, params map[string]any) error {
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openGraph(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	rows, err := client.RunCypher(ctx, query, params)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}

func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any)
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid param %q: empty key", pair)
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}
