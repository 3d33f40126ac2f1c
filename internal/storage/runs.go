package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/hibari/internal/model"
)

// InsertRun persists a new run row.
func (db *DB) InsertRun(ctx context.Context, run model.Run) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO runs (run_id, created_at, started_at, total_turns, total_agents, status, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.CreatedAt, run.StartedAt, run.TotalTurns, run.TotalAgents,
		string(run.Status), run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id. Returns ErrNotFound when no row exists.
func (db *DB) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT run_id, created_at, started_at, total_turns, total_agents, status, completed_at
		 FROM runs WHERE run_id = $1`, id,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Run{}, ErrNotFound
		}
		return model.Run{}, fmt.Errorf("storage: get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first by created_at.
func (db *DB) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT run_id, created_at, started_at, total_turns, total_agents, status, completed_at
		 FROM runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateRunStatus sets the status (and completed_at) of an existing run.
// Transition legality is the run repository's concern; this method only
// performs the write. Returns ErrNotFound when the run does not exist.
func (db *DB) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus, completedAt *time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1, completed_at = $2 WHERE run_id = $3`,
		string(status), completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("storage: update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var (
		run       model.Run
		rawStatus string
	)
	if err := row.Scan(
		&run.ID, &run.CreatedAt, &run.StartedAt, &run.TotalTurns,
		&run.TotalAgents, &rawStatus, &run.CompletedAt,
	); err != nil {
		return model.Run{}, err
	}
	status, err := model.ParseRunStatus(rawStatus)
	if err != nil {
		return model.Run{}, &RowError{Table: "runs", Key: run.ID, Field: "status", Err: err}
	}
	run.Status = status
	return run, nil
}
