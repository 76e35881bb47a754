package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	surveycoder "github.com/ferro-labs/survey-coder"
	"github.com/ferro-labs/survey-coder/internal/requestlog"
	"github.com/spf13/cobra"
)

func openRequestLog(configPath string) (*requestlog.SQLWriter, error) {
	cfg, err := surveycoder.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	rl := cfg.RequestLog
	if rl.Driver == "" {
		return nil, errors.New("config has no request log (request_log.driver is empty)")
	}
	return requestlog.Open(rl.Driver, rl.DSN)
}

func newLogsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and prune the request log",
	}

	var (
		q     requestlog.Query
		since time.Duration
	)
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := openRequestLog(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			if since > 0 {
				t := time.Now().Add(-since)
				q.Since = &t
			}
			res, err := w.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tREQUEST\tTASK\tOUTCOME\tMODEL\tTIER\tLATENCY\tCOST")
			for _, e := range res.Data {
				outcome := e.Outcome
				if e.FailureCategory != "" {
					outcome += " (" + e.FailureCategory + ")"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%dms\t$%.6f\n",
					e.CreatedAt.Local().Format(time.DateTime), e.RequestID, e.Task, outcome, e.Model, e.CacheTier, e.LatencyMs, e.CostUSD)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(res.Data), res.Total)
			return nil
		},
	}
	tailCmd.Flags().IntVarP(&q.Limit, "limit", "n", 20, "number of entries")
	tailCmd.Flags().StringVar(&q.Task, "task", "", "only this task kind")
	tailCmd.Flags().StringVar(&q.Outcome, "outcome", "", "only success or failure")
	tailCmd.Flags().StringVar(&q.Model, "model", "", "only this model")
	tailCmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this")

	var (
		olderThan time.Duration
		outcome   string
	)
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			w, err := openRequestLog(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			before := time.Now().Add(-olderThan)
			n, err := w.Delete(cmd.Context(), requestlog.MaintenanceQuery{Before: &before, Outcome: outcome})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", n)
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete entries older than this")
	pruneCmd.Flags().StringVar(&outcome, "outcome", "", "only delete success or failure entries")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "survey-coder.yaml", "path to config file")
	cmd.AddCommand(tailCmd, pruneCmd)
	return cmd
}
