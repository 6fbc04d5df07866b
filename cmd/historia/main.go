package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"openhistoria/internal/config"
)

var configPath = config.FileName

func main() {
	log.SetPrefix("[historia] ")
	log.SetFlags(log.LstdFlags)

	root := &cobra.Command{
		Use:          "historia",
		Short:        "Turn adjudication engine for alternate-history strategy games",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.FileName, "Path to the project config")
	root.AddCommand(initCmd())
	root.AddCommand(playCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(savesCmd())
	root.AddCommand(keysCmd())
	root.AddCommand(worldCmd())
	root.AddCommand(graphCmd())
	root.AddCommand(journalCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
