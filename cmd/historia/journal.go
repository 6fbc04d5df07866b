package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"openhistoria/internal/journal"
)

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Read the turn journal",
	}
	cmd.AddCommand(journalTailCmd())
	return cmd
}

func journalTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the most recent journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				return fmt.Errorf("-n must be positive")
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			entries, err := journal.Tail(cfg.Journal.Dir, n)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "The journal is empty.")
				return nil
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "Number of entries")
	return cmd
}

func printEntries(out io.Writer, entries []journal.Entry) {
	for _, e := range entries {
		kind := e.Kind
		if kind == "" {
			kind = "turn"
		}
		fmt.Fprintf(out, "%s  [%d] %-7s %s\n", e.At.Local().Format(time.DateTime), e.Turn, kind, e.Command)
		if e.Error != "" {
			fmt.Fprintf(out, "    failed: %s\n", e.Error)
			continue
		}
		if e.Message != "" {
			fmt.Fprintf(out, "    %s\n", e.Message)
		}
		for _, applied := range e.Applied {
			fmt.Fprintf(out, "    * %s\n", applied)
		}
		if e.Ignored > 0 {
			fmt.Fprintf(out, "    (%d ignored)\n", e.Ignored)
		}
	}
}
