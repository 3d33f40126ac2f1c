// Package model defines the core domain types for hibari.
//
// All types correspond directly to database tables. Types use strong
// typing (time.Time, enums) and carry their invariants as Validate
// methods checked at construction boundaries.
package model

import (
	"fmt"
	"time"
)

// RunStatus represents the lifecycle state of a simulation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ParseRunStatus maps a stored status string onto a RunStatus.
// Unknown strings are an error, never coerced to a default.
func ParseRunStatus(s string) (RunStatus, error) {
	switch st := RunStatus(s); st {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("model: unknown run status %q", s)
	}
}

// Run is one end-to-end simulation execution spanning a fixed number of
// turns and agents. Created once at run start; mutated only via status
// transitions; never deleted.
type Run struct {
	ID          string     `json:"run_id"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   time.Time  `json:"started_at"`
	TotalTurns  int        `json:"total_turns"`
	TotalAgents int        `json:"total_agents"`
	Status      RunStatus  `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Validate checks the Run invariants, most importantly that completed_at
// is set exactly when the run is completed.
func (r Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("model: run id is empty")
	}
	if r.TotalTurns <= 0 {
		return fmt.Errorf("model: run %s: total_turns must be positive, got %d", r.ID, r.TotalTurns)
	}
	if r.TotalAgents <= 0 {
		return fmt.Errorf("model: run %s: total_agents must be positive, got %d", r.ID, r.TotalAgents)
	}
	if _, err := ParseRunStatus(string(r.Status)); err != nil {
		return fmt.Errorf("model: run %s: %w", r.ID, err)
	}
	if (r.Status == RunStatusCompleted) != (r.CompletedAt != nil) {
		return fmt.Errorf("model: run %s: completed_at must be set exactly when status is completed", r.ID)
	}
	if r.CompletedAt != nil && r.CompletedAt.Before(r.StartedAt) {
		return fmt.Errorf("model: run %s: completed_at precedes started_at", r.ID)
	}
	return nil
}

// RunConfig is the caller-supplied shape of a new run.
type RunConfig struct {
	NumAgents int
	NumTurns  int

	// Algorithm selects the ranking algorithm by name. Empty means the
	// orchestrator's default (chronological).
	Algorithm string
}

// Validate checks that the config describes a runnable simulation.
func (c RunConfig) Validate() error {
	if c.NumAgents <= 0 {
		return fmt.Errorf("model: num_agents must be positive, got %d", c.NumAgents)
	}
	if c.NumTurns <= 0 {
		return fmt.Errorf("model: num_turns must be positive, got %d", c.NumTurns)
	}
	return nil
}

// ActionKind is the closed enumeration of agent actions tracked per turn.
type ActionKind string

const (
	ActionLike    ActionKind = "like"
	ActionComment ActionKind = "comment"
	ActionFollow  ActionKind = "follow"
)

// ActionKinds returns every tracked action kind.
func ActionKinds() []ActionKind {
	return []ActionKind{ActionLike, ActionComment, ActionFollow}
}

// ParseActionKind maps a stored action key onto an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	switch k := ActionKind(s); k {
	case ActionLike, ActionComment, ActionFollow:
		return k, nil
	default:
		return "", fmt.Errorf("model: unknown action kind %q", s)
	}
}

// ActionCounts maps action kinds to how often they occurred.
type ActionCounts map[ActionKind]int

// Merge adds the counts from other into c.
func (c ActionCounts) Merge(other ActionCounts) {
	for kind, n := range other {
		c[kind] += n
	}
}

// Total returns the sum of all counts.
func (c ActionCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// TurnMetadata summarizes one turn of one run. The (run_id, turn_number)
// key is write-once: a second write for the same key is a domain error,
// not an overwrite.
type TurnMetadata struct {
	RunID        string       `json:"run_id"`
	TurnNumber   int          `json:"turn_number"`
	TotalActions ActionCounts `json:"total_actions"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks the TurnMetadata field invariants. The relationship to
// the parent run (turn_number < total_turns) is enforced by the run
// repository, which can see both records.
func (m TurnMetadata) Validate() error {
	if m.RunID == "" {
		return fmt.Errorf("model: turn metadata run id is empty")
	}
	if m.TurnNumber < 0 {
		return fmt.Errorf("model: turn metadata for run %s: turn_number must not be negative, got %d", m.RunID, m.TurnNumber)
	}
	for kind, n := range m.TotalActions {
		if _, err := ParseActionKind(string(kind)); err != nil {
			return fmt.Errorf("model: turn metadata for run %s: %w", m.RunID, err)
		}
		if n < 0 {
			return fmt.Errorf("model: turn metadata for run %s: count for %s must not be negative, got %d", m.RunID, kind, n)
		}
	}
	return nil
}
