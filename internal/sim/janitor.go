package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashita-ai/hibari/internal/model"
	"github.com/ashita-ai/hibari/internal/repo"
)

// SweepAbandoned marks RUNNING runs whose started_at is older than
// olderThan as FAILED. A run stuck in RUNNING means the host process died
// mid-run; the sweep drives it through the normal RUNNING -> FAILED
// transition rather than editing rows directly, so the state machine
// stays the single authority. Returns how many runs were swept.
func (r *Runner) SweepAbandoned(ctx context.Context, olderThan time.Duration) (int, error) {
	runs, err := r.runs.ListRuns(ctx)
	if err != nil {
		return 0, fmt.Errorf("sim: list runs for sweep: %w", err)
	}

	cutoff := r.now().UTC().Add(-olderThan)
	swept := 0
	for _, run := range runs {
		if run.Status != model.RunStatusRunning || !run.StartedAt.Before(cutoff) {
			continue
		}
		if _, err := r.runs.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); err != nil {
			// The run reached a terminal state between the listing and
			// this update; it no longer needs sweeping.
			var invalid *repo.InvalidTransitionError
			if errors.As(err, &invalid) {
				r.logger.Debug("run already terminal, skipping sweep", "run_id", run.ID, "status", invalid.From)
				continue
			}
			return swept, fmt.Errorf("sim: sweep run %s: %w", run.ID, err)
		}
		r.logger.Info("marked abandoned run failed", "run_id", run.ID, "started_at", run.StartedAt)
		swept++
	}
	return swept, nil
}
