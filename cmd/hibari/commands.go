package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/hibari/internal/model"
)

func newRunCmd() *cobra.Command {
	var (
		agents    int
		turns     int
		feedLimit int
		algorithm string
		seed      uint64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a simulation run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				cfg := model.RunConfig{
					NumAgents: agents,
					NumTurns:  turns,
					Algorithm: algorithm,
				}
				if cfg.Algorithm == "" {
					cfg.Algorithm = a.cfg.Algorithm
				}
				runner := a.newRunner(seed, feedLimit)
				run, err := runner.ExecuteRun(ctx, cfg)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), run)
			})
		},
	}
	cmd.Flags().IntVar(&agents, "agents", 5, "number of agents to simulate")
	cmd.Flags().IntVar(&turns, "turns", 10, "number of turns to simulate")
	cmd.Flags().IntVar(&feedLimit, "feed-limit", 0, "max posts per feed (default from config)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "ranking algorithm (default from config)")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed for the built-in actor")
	return cmd
}

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				runs, err := a.runs.ListRuns(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), runs)
			})
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its per-turn action counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				run, err := a.runs.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}

				var turnSummaries []model.TurnMetadata
				for turn := 0; turn < run.TotalTurns; turn++ {
					md, err := a.runs.GetTurnMetadata(ctx, run.ID, turn)
					if err != nil {
						return err
					}
					if md != nil {
						turnSummaries = append(turnSummaries, *md)
					}
				}

				return printJSON(cmd.OutOrStdout(), struct {
					Run   model.Run            `json:"run"`
					Turns []model.TurnMetadata `json:"turns"`
				}{Run: *run, Turns: turnSummaries})
			})
		},
	}
}

func newSweepCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark abandoned RUNNING runs as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				cutoff := olderThan
				if cutoff <= 0 {
					cutoff = a.cfg.AbandonedAfter
				}
				swept, err := a.newRunner(0, 0).SweepAbandoned(ctx, cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "swept %d abandoned run(s)\n", swept)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age threshold for RUNNING runs (default from config)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
