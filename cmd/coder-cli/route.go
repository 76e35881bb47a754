package main

import (
	"fmt"
	"text/tabwriter"

	surveycoder "github.com/ferro-labs/survey-coder"
	"github.com/ferro-labs/survey-coder/generation"
	"github.com/spf13/cobra"
)

func newRouteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "route <task> <priority>",
		Short: "Show the model a task and priority route to, and its fallbacks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := generation.TaskKind(args[0])
			priority := generation.Priority(args[1])
			if task == "" {
				return fmt.Errorf("task is required")
			}
			if !priority.Valid() {
				return fmt.Errorf("unknown priority %q", args[1])
			}

			cfg, err := surveycoder.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			coord, err := surveycoder.New(*cfg)
			if err != nil {
				return err
			}
			router := coord.Router()

			primary, err := router.SelectModel(task, priority)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROLE\tMODEL\tPROVIDER\tLATENCY\tQUALITY")
			fmt.Fprintf(tw, "primary\t%s\t%s\t%s\t%.2f\n", primary.ID, primary.Provider, primary.LatencyClass, primary.QualityScore)

			excluded := []string{primary.ID}
			for {
				m, ok := router.SelectFallback(task, priority, excluded...)
				if !ok {
					break
				}
				fmt.Fprintf(tw, "fallback\t%s\t%s\t%s\t%.2f\n", m.ID, m.Provider, m.LatencyClass, m.QualityScore)
				excluded = append(excluded, m.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "survey-coder.yaml", "path to config file")
	return cmd
}
