package main

import (
	"bufio"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"openhistoria/internal/config"
	"openhistoria/internal/keystore"
	"openhistoria/internal/oracle"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored oracle API keys",
	}
	cmd.AddCommand(keysSetCmd())
	cmd.AddCommand(keysDeleteCmd())
	cmd.AddCommand(keysListCmd())
	return cmd
}

func openKeystore() (*keystore.Store, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openKeys(cfg, env)
}

func keysSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Seal an API key for a provider (reads stdin when key is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := openKeystore()
			if err != nil {
				return err
			}
			var key string
			if len(args) == 2 {
				key = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("key is empty")
			}
			if err := ks.Set(args[0], key); err != nil {
				if errors.Is(err, keystore.ErrNoSecret) {
					return fmt.Errorf("%w: set HISTORIA_KEYSTORE_SECRET", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored key for %s\n", strings.ToLower(args[0]))
			return nil
		},
	}
}

func keysDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove the stored key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := openKeystore()
			if err != nil {
				return err
			}
			if err := ks.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted key for %s\n", strings.ToLower(args[0]))
			return nil
		},
	}
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show where each oracle provider gets its key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, env, err := loadConfig()
			if err != nil {
				return err
			}
			ks, err := openKeys(cfg, env)
			if err != nil {
				return err
			}
			dispatcher := oracle.NewDispatcher(oracle.Providers(oracle.Endpoints(cfg.Oracle.Endpoints), nil)...)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tKEY")
			for _, name := range dispatcher.Names() {
				fmt.Fprintf(w, "%s\t%s\n", name, keySource(dispatcher, ks, env, name))
			}
			return w.Flush()
		},
	}
}

func keySource(d *oracle.Dispatcher, ks *keystore.Store, env config.Env, name string) string {
	if p, ok := d.Provider(name); ok && !p.RequiresKey() {
		return "not needed"
	}
	var sources []string
	if slices.Contains(ks.Providers(), name) {
		sources = append(sources, "stored")
	}
	if _, ok := env.APIKey(name); ok {
		sources = append(sources, "environment")
	}
	if len(sources) == 0 {
		return "missing"
	}
	return strings.Join(sources, ", ")
}
