// Package repo provides the repositories the orchestration core depends
// on. Repositories wrap the storage adapters with input validation,
// absent-value semantics for reads, and — for runs — state-machine
// enforcement with typed domain errors.
package repo

import (
	"errors"
	"fmt"

	"github.com/ashita-ai/hibari/internal/model"
)

// ErrInvalidArgument marks synchronous validation failures raised before
// any I/O. Never retried.
var ErrInvalidArgument = errors.New("repo: invalid argument")

// RunNotFoundError is returned by writes and updates that require a
// pre-existing run.
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("repo: run %s not found", e.RunID)
}

// RunCreationError wraps a persistence failure while creating a run. It
// carries the run id that was attempted.
type RunCreationError struct {
	RunID string
	Err   error
}

func (e *RunCreationError) Error() string {
	return fmt.Sprintf("repo: create run %s: %v", e.RunID, e.Err)
}

func (e *RunCreationError) Unwrap() error {
	return e.Err
}

// RunStatusUpdateError wraps a storage-layer failure during a status
// update. Domain errors (RunNotFoundError, InvalidTransitionError) are
// never wrapped in it.
type RunStatusUpdateError struct {
	RunID string
	Err   error
}

func (e *RunStatusUpdateError) Error() string {
	return fmt.Sprintf("repo: update status of run %s: %v", e.RunID, e.Err)
}

func (e *RunStatusUpdateError) Unwrap() error {
	return e.Err
}

// InvalidTransitionError reports an illegal run status transition. It is
// a programming/data error and should be surfaced, not retried.
type InvalidTransitionError struct {
	RunID   string
	From    model.RunStatus
	To      model.RunStatus
	Allowed []model.RunStatus
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("repo: run %s: illegal transition %s -> %s (%s is terminal)",
			e.RunID, e.From, e.To, e.From)
	}
	return fmt.Sprintf("repo: run %s: illegal transition %s -> %s (allowed: %v)",
		e.RunID, e.From, e.To, e.Allowed)
}

// DuplicateTurnMetadataError reports a second write for an already
// recorded (run_id, turn_number) key. Turn metadata is write-once.
type DuplicateTurnMetadataError struct {
	RunID      string
	TurnNumber int
}

func (e *DuplicateTurnMetadataError) Error() string {
	return fmt.Sprintf("repo: turn metadata for run %s turn %d already recorded", e.RunID, e.TurnNumber)
}
