package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/hibari/internal/model"
	"github.com/ashita-ai/hibari/internal/storage"
)

// RunStore is the adapter surface Runs depends on.
type RunStore interface {
	InsertRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status model.RunStatus, completedAt *time.Time) error
	InsertTurnMetadata(ctx context.Context, md model.TurnMetadata) error
	GetTurnMetadata(ctx context.Context, runID string, turnNumber int) (model.TurnMetadata, error)
}

// runTransitions is the fixed table of legal status transitions.
// COMPLETED and FAILED are terminal. RUNNING -> RUNNING is an idempotent
// no-op-equivalent.
var runTransitions = map[model.RunStatus][]model.RunStatus{
	model.RunStatusRunning:   {model.RunStatusRunning, model.RunStatusCompleted, model.RunStatusFailed},
	model.RunStatusCompleted: nil,
	model.RunStatusFailed:    nil,
}

// Runs creates runs, reads them back, and enforces legal status
// transitions and write-once turn metadata.
type Runs struct {
	store  RunStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRuns creates a run repository over the given store.
func NewRuns(store RunStore, logger *slog.Logger) *Runs {
	return &Runs{store: store, logger: logger, now: time.Now}
}

// NewRunID mints a fresh run id: a UTC timestamp for human sorting plus a
// UUID suffix so concurrent callers can never collide.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("run_%s_%s", now.UTC().Format("20060102T150405"), uuid.NewString())
}

// CreateRun persists a new run in status RUNNING with started_at =
// created_at = now and no completed_at.
func (r *Runs) CreateRun(ctx context.Context, cfg model.RunConfig) (model.Run, error) {
	if err := cfg.Validate(); err != nil {
		return model.Run{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	now := r.now().UTC()
	run := model.Run{
		ID:          NewRunID(now),
		CreatedAt:   now,
		StartedAt:   now,
		TotalTurns:  cfg.NumTurns,
		TotalAgents: cfg.NumAgents,
		Status:      model.RunStatusRunning,
	}
	if err := r.store.InsertRun(ctx, run); err != nil {
		return model.Run{}, &RunCreationError{RunID: run.ID, Err: err}
	}
	r.logger.Info("run created", "run_id", run.ID, "total_turns", run.TotalTurns, "total_agents", run.TotalAgents)
	return run, nil
}

// GetRun retrieves a run by id. Absence is a valid outcome, reported as a
// nil run with nil error.
func (r *Runs) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: run id is empty", ErrInvalidArgument)
	}
	run, err := r.store.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns all runs newest first. An empty store is a valid
// outcome, not an error.
func (r *Runs) ListRuns(ctx context.Context) ([]model.Run, error) {
	return r.store.ListRuns(ctx)
}

// UpdateRunStatus validates the transition against the fixed table and
// applies it. completed_at is set to now exactly when the target status
// is COMPLETED, and forced to null otherwise. Returns the updated run.
//
// RunNotFoundError and InvalidTransitionError are returned as-is;
// storage-layer failures are wrapped in RunStatusUpdateError.
func (r *Runs) UpdateRunStatus(ctx context.Context, id string, target model.RunStatus) (model.Run, error) {
	if id == "" {
		return model.Run{}, fmt.Errorf("%w: run id is empty", ErrInvalidArgument)
	}
	if _, err := model.ParseRunStatus(string(target)); err != nil {
		return model.Run{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	current, err := r.store.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Run{}, &RunNotFoundError{RunID: id}
	}
	if err != nil {
		return model.Run{}, &RunStatusUpdateError{RunID: id, Err: err}
	}

	allowed := runTransitions[current.Status]
	if !slices.Contains(allowed, target) {
		return model.Run{}, &InvalidTransitionError{
			RunID:   id,
			From:    current.Status,
			To:      target,
			Allowed: allowed,
		}
	}

	var completedAt *time.Time
	if target == model.RunStatusCompleted {
		t := r.now().UTC()
		completedAt = &t
	}

	if err := r.store.UpdateRunStatus(ctx, id, target, completedAt); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Run{}, &RunNotFoundError{RunID: id}
		}
		return model.Run{}, &RunStatusUpdateError{RunID: id, Err: err}
	}

	current.Status = target
	current.CompletedAt = completedAt
	r.logger.Info("run status updated", "run_id", id, "status", string(target))
	return current, nil
}

// GetTurnMetadata retrieves the summary of one turn. Absence is a valid
// outcome, reported as nil with nil error.
func (r *Runs) GetTurnMetadata(ctx context.Context, runID string, turnNumber int) (*model.TurnMetadata, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is empty", ErrInvalidArgument)
	}
	if turnNumber < 0 {
		return nil, fmt.Errorf("%w: turn_number must not be negative, got %d", ErrInvalidArgument, turnNumber)
	}
	md, err := r.store.GetTurnMetadata(ctx, runID, turnNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &md, nil
}

// WriteTurnMetadata persists a write-once turn summary. The parent run
// must exist and the turn number must fall inside its range. A record
// already present for the same (run_id, turn_number) is a
// DuplicateTurnMetadataError; the existence pre-check produces the precise
// domain error before the write is attempted.
func (r *Runs) WriteTurnMetadata(ctx context.Context, md model.TurnMetadata) error {
	if err := md.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	run, err := r.store.GetRun(ctx, md.RunID)
	if errors.Is(err, storage.ErrNotFound) {
		return &RunNotFoundError{RunID: md.RunID}
	}
	if err != nil {
		return err
	}
	if md.TurnNumber >= run.TotalTurns {
		return fmt.Errorf("%w: turn %d out of range for run %s (total_turns=%d)",
			ErrInvalidArgument, md.TurnNumber, md.RunID, run.TotalTurns)
	}

	_, err = r.store.GetTurnMetadata(ctx, md.RunID, md.TurnNumber)
	if err == nil {
		return &DuplicateTurnMetadataError{RunID: md.RunID, TurnNumber: md.TurnNumber}
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	return r.store.InsertTurnMetadata(ctx, md)
}
