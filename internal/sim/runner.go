// Package sim drives simulation runs: it creates a Run, materializes
// agents from reference profiles, iterates turns through the feed
// pipeline and agent action hooks, and moves the Run to a terminal state
// even on failure.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/hibari/internal/feeds"
	"github.com/ashita-ai/hibari/internal/model"
	"github.com/ashita-ai/hibari/internal/telemetry"
)

// Agent is one simulated account, materialized from a Profile with its
// generated bio (when present) substituted for the profile bio.
type Agent struct {
	Handle      string
	DisplayName string
	Bio         string
}

// Actor is the external hook that decides what an agent does with its
// hydrated feed on one turn. Agent intelligence lives behind this
// interface, outside the orchestration core.
type Actor interface {
	Act(ctx context.Context, agent Agent, feed []model.FeedPost) (model.ActionCounts, error)
}

// RunRepository is the run surface the orchestrator depends on.
type RunRepository interface {
	CreateRun(ctx context.Context, cfg model.RunConfig) (model.Run, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	UpdateRunStatus(ctx context.Context, id string, target model.RunStatus) (model.Run, error)
	GetTurnMetadata(ctx context.Context, runID string, turnNumber int) (*model.TurnMetadata, error)
	WriteTurnMetadata(ctx context.Context, md model.TurnMetadata) error
}

// ProfileSource lists the reference profiles agents are seeded from.
type ProfileSource interface {
	List(ctx context.Context) ([]model.Profile, error)
}

// BioSource lists generated persona bios.
type BioSource interface {
	List(ctx context.Context) ([]model.GeneratedBio, error)
}

// FeedGenerator is the pipeline surface the orchestrator consumes.
type FeedGenerator interface {
	GenerateFeeds(ctx context.Context, agentHandles []string, runID string, turnNumber int, algorithmName string) (map[string][]model.FeedPost, error)
}

var tracer = telemetry.Tracer("hibari/sim")

// Runner orchestrates runs turn by turn.
type Runner struct {
	runs     RunRepository
	profiles ProfileSource
	bios     BioSource
	pipeline FeedGenerator
	actor    Actor
	logger   *slog.Logger
	now      func() time.Time

	actionsRecorded metric.Int64Counter
}

// NewRunner creates a run orchestrator.
func NewRunner(runs RunRepository, profiles ProfileSource, bios BioSource, pipeline FeedGenerator, actor Actor, logger *slog.Logger) *Runner {
	meter := telemetry.Meter("hibari/sim")
	actions, _ := meter.Int64Counter("hibari.sim.actions",
		metric.WithDescription("Agent actions recorded across turns"),
	)
	return &Runner{
		runs:            runs,
		profiles:        profiles,
		bios:            bios,
		pipeline:        pipeline,
		actor:           actor,
		logger:          logger,
		now:             time.Now,
		actionsRecorded: actions,
	}
}

// ExecuteRun creates a Run and simulates every turn. On success the Run
// ends COMPLETED; on any failure after creation the Run is moved to
// FAILED and the triggering error is returned. A failure of that
// secondary status update is logged and never masks the primary error.
//
// Each call creates a fresh run with a fresh id; terminal runs are never
// resumed in place.
func (r *Runner) ExecuteRun(ctx context.Context, cfg model.RunConfig) (model.Run, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = feeds.AlgorithmChronological
	}

	ctx, span := tracer.Start(ctx, "ExecuteRun")
	defer span.End()

	run, err := r.runs.CreateRun(ctx, cfg)
	if err != nil {
		return model.Run{}, err
	}

	span.SetAttributes(
		attribute.String("hibari.run_id", run.ID),
		attribute.Int("hibari.total_turns", run.TotalTurns),
		attribute.Int("hibari.total_agents", run.TotalAgents),
	)

	log := r.logger.With("run_id", run.ID)
	log.Info("run started", "total_turns", run.TotalTurns, "total_agents", run.TotalAgents, "algorithm", cfg.Algorithm)

	agents, err := r.materializeAgents(ctx, cfg.NumAgents)
	if err != nil {
		return model.Run{}, r.fail(ctx, run, fmt.Errorf("sim: run %s: %w", run.ID, err))
	}

	for turn := 0; turn < run.TotalTurns; turn++ {
		if err := r.simulateTurn(ctx, run, agents, turn, cfg); err != nil {
			return model.Run{}, r.fail(ctx, run, fmt.Errorf("sim: run %s turn %d: %w", run.ID, turn, err))
		}
	}

	completed, err := r.runs.UpdateRunStatus(ctx, run.ID, model.RunStatusCompleted)
	if err != nil {
		return model.Run{}, r.fail(ctx, run, fmt.Errorf("sim: run %s: mark completed: %w", run.ID, err))
	}

	log.Info("run completed", "turns", completed.TotalTurns)
	return completed, nil
}

// GetRun retrieves a run. Absence is a valid outcome (nil, nil).
func (r *Runner) GetRun(ctx context.Context, id string) (*model.Run, error) {
	return r.runs.GetRun(ctx, id)
}

// ListRuns returns all runs, newest first.
func (r *Runner) ListRuns(ctx context.Context) ([]model.Run, error) {
	return r.runs.ListRuns(ctx)
}

// GetTurnMetadata retrieves one turn summary. Absence is a valid outcome.
func (r *Runner) GetTurnMetadata(ctx context.Context, runID string, turnNumber int) (*model.TurnMetadata, error) {
	return r.runs.GetTurnMetadata(ctx, runID, turnNumber)
}

// simulateTurn generates feeds for every agent, applies the action hook
// per agent, and records the aggregated counts as write-once turn
// metadata.
func (r *Runner) simulateTurn(ctx context.Context, run model.Run, agents []Agent, turnNumber int, cfg model.RunConfig) error {
	handles := make([]string, len(agents))
	for i, agent := range agents {
		handles[i] = agent.Handle
	}

	feedsByAgent, err := r.pipeline.GenerateFeeds(ctx, handles, run.ID, turnNumber, cfg.Algorithm)
	if err != nil {
		return err
	}

	totals := model.ActionCounts{}
	for _, agent := range agents {
		counts, err := r.actor.Act(ctx, agent, feedsByAgent[agent.Handle])
		if err != nil {
			return fmt.Errorf("agent %s actions: %w", agent.Handle, err)
		}
		totals.Merge(counts)
	}
	r.actionsRecorded.Add(ctx, int64(totals.Total()))

	md := model.TurnMetadata{
		RunID:        run.ID,
		TurnNumber:   turnNumber,
		TotalActions: totals,
		CreatedAt:    r.now().UTC(),
	}
	if err := r.runs.WriteTurnMetadata(ctx, md); err != nil {
		return err
	}

	r.logger.Debug("turn recorded", "run_id", run.ID, "turn", turnNumber, "actions", totals.Total())
	return nil
}

// fail records the primary error on the active span and attempts to move
// the run to FAILED. The primary error always survives; a failure of the
// transition itself is only logged.
func (r *Runner) fail(ctx context.Context, run model.Run, primary error) error {
	trace.SpanFromContext(ctx).RecordError(primary)
	if _, err := r.runs.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); err != nil {
		r.logger.Error("sim: could not mark run failed", "run_id", run.ID, "error", err)
	}
	return primary
}

// materializeAgents seeds n agents from the reference profiles, ordered
// by handle, with generated bios substituted when present. Fewer profiles
// than requested agents is an error, not a silent shortfall.
func (r *Runner) materializeAgents(ctx context.Context, n int) ([]Agent, error) {
	profiles, err := r.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) < n {
		return nil, fmt.Errorf("%d agents requested but only %d profiles available", n, len(profiles))
	}

	bios, err := r.bios.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bios: %w", err)
	}
	bioByHandle := make(map[string]string, len(bios))
	for _, bio := range bios {
		bioByHandle[bio.Handle] = bio.Bio
	}

	agents := make([]Agent, n)
	for i, profile := range profiles[:n] {
		agent := Agent{
			Handle:      profile.Handle,
			DisplayName: profile.DisplayName,
			Bio:         profile.Bio,
		}
		if bio, ok := bioByHandle[profile.Handle]; ok {
			agent.Bio = bio
		}
		agents[i] = agent
	}
	return agents, nil
}
