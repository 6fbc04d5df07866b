package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"openhistoria/internal/config"
)

var starterWorld = map[string]string{
	"scenario.md": `---
type: scenario
name: The Hundred Years War
start_year: 1444
---

Burgundy stands between two crowns, courted by both.
`,
	"nations/player.md": `---
type: nation
id: player
name: Burgundy
color: "#7a1f3d"
treasury: 500
---
`,
	"nations/france.md": `---
type: nation
id: france
name: Kingdom of France
color: "#1f3d7a"
treasury: 800
---
`,
	"provinces/flanders.md": `---
type: province
id: flanders
name: Flanders
owner: player
---
`,
	"provinces/normandy.md": `---
type: province
id: normandy
name: Normandy
owner: france
---
`,
	"relations/burgundy-france.md": `---
type: relation
nations: [player, france]
relation: hostile
---
`,
}

func initCmd() *cobra.Command {
	var projectName string
	var noWorld bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new historia project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(cmd, projectName, !noWorld)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().BoolVar(&noWorld, "no-world", false, "Skip writing the starter world files")
	return cmd
}

func runInit(cmd *cobra.Command, projectName string, withWorld bool) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	cfg := config.Default(projectName)
	if err := config.Write(configPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)

	if !withWorld {
		return nil
	}
	root := cfg.World.Paths[0]
	if _, err := os.Stat(root); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it untouched\n", root)
		return nil
	}
	for name, contents := range starterWorld {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote starter world to %s/\n", root)
	return nil
}
