package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	surveycoder "github.com/ferro-labs/survey-coder"
	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/cache/sqlstore"
	"github.com/spf13/cobra"
)

// openDurable opens the durable cache named by the config file.
func openDurable(configPath string) (*sqlstore.Store, error) {
	cfg, err := surveycoder.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	d := cfg.Cache.Durable
	if d.Driver == "" {
		return nil, errors.New("config has no durable cache (cache.durable.driver is empty)")
	}
	return sqlstore.Open(d.Driver, d.DSN)
}

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the durable result cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show live and expired entries per namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openDurable(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAMESPACE\tLIVE\tEXPIRED")
			for _, st := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", st.Namespace, st.Live, st.Expired)
			}
			return tw.Flush()
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openDurable(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries.\n", n)
			return nil
		},
	}

	var namespace string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openDurable(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := clearNamespace(cmd.Context(), store, generation.Namespace(namespace))
			if err != nil {
				return err
			}
			if namespace == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", n)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s.\n", n, namespace)
			}
			return nil
		},
	}
	clearCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "only clear one namespace (prompt-result, translation, search-context)")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "survey-coder.yaml", "path to config file")
	cmd.AddCommand(statsCmd, sweepCmd, clearCmd)
	return cmd
}

func clearNamespace(ctx context.Context, store *sqlstore.Store, ns generation.Namespace) (int64, error) {
	switch ns {
	case "", generation.NamespacePromptResult, generation.NamespaceTranslation, generation.NamespaceSearchContext:
		return store.Clear(ctx, ns)
	default:
		return 0, fmt.Errorf("unknown namespace %q", ns)
	}
}
