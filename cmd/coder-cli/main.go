// Command coder-cli inspects survey-coder configuration and maintains its
// durable cache and request log.
package main

import (
	"fmt"
	"os"
	"strings"

	surveycoder "github.com/ferro-labs/survey-coder"
	"github.com/ferro-labs/survey-coder/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coder-cli",
		Short:         "survey-coder command line tool",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newValidateCmd(),
		newRouteCmd(),
		newCacheCmd(),
		newLogsCmd(),
		newVersionCmd(),
	)
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := surveycoder.LoadConfig(args[0])
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := surveycoder.ValidateConfig(*cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Config is valid")
			fmt.Fprintf(out, "  Models:    %d\n", len(cfg.Models))
			fmt.Fprintf(out, "  Routes:    %d\n", len(cfg.Routes))
			fmt.Fprintf(out, "  Whitelist: %d entries\n", len(cfg.Whitelist))

			var stack []string
			if cfg.Cache.Durable.Driver != "" {
				stack = append(stack, "durable cache ("+cfg.Cache.Durable.Driver+")")
			}
			if cfg.Translation.Backend != "" {
				stack = append(stack, "translation ("+cfg.Translation.Backend+")")
			}
			if cfg.Search.Backend != "" {
				stack = append(stack, "search ("+cfg.Search.Backend+")")
			}
			if cfg.CircuitBreaker != nil {
				stack = append(stack, "circuit breakers")
			}
			if len(stack) > 0 {
				fmt.Fprintf(out, "  Enabled:   %s\n", strings.Join(stack, ", "))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coder-cli %s\n", version.String())
		},
	}
}
