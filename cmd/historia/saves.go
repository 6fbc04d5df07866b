package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"openhistoria/internal/store"
)

func savesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "Manage saved games",
	}
	cmd.AddCommand(savesListCmd())
	cmd.AddCommand(savesDeleteCmd())
	cmd.AddCommand(savesExportCmd())
	cmd.AddCommand(savesImportCmd())
	return cmd
}

func withStore(fn func(ctx context.Context, games store.Store) error) error {
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	games, err := openStore(ctx, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer games.Close(ctx)

	return fn(ctx, games)
}

func savesListCmd() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved games, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, games store.Store) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				if query != "" {
					results, err := games.SearchGames(ctx, query)
					if err != nil {
						return err
					}
					fmt.Fprintln(w, "ID\tNAME\tYEAR\tMATCH")
					for _, r := range results {
						fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Turn, r.Snippet)
					}
					return w.Flush()
				}

				summaries, err := games.ListGames(ctx)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved games.")
					return nil
				}
				fmt.Fprintln(w, "ID\tNAME\tSCENARIO\tYEAR\tUPDATED")
				for _, s := range summaries {
					name := s.Name
					if s.Auto {
						name += " (auto)"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.ID, name, s.Scenario, s.Turn, s.UpdatedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Full-text search over names and story")
	return cmd
}

func savesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, games store.Store) error {
				if err := games.DeleteGame(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func savesExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a saved game to a compressed archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, games store.Store) error {
				game, err := games.LoadGame(ctx, args[0])
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = game.ID + store.ArchiveExt
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating %s: %w", path, err)
				}
				if err := store.WriteArchive(f, *game); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("closing %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", game.ID, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default <id>"+store.ArchiveExt+")")
	return cmd
}

func savesImportCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a saved game archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			game, err := store.ReadArchive(f)
			if err != nil {
				return err
			}
			if id != "" {
				game.ID = id
			}
			game.Auto = false
			return withStore(func(ctx context.Context, games store.Store) error {
				if err := games.SaveGame(ctx, *game); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s\n", game.Name, game.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Store under a different id")
	return cmd
}
