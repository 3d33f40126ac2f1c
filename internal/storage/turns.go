package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/hibari/internal/model"
)

// InsertTurnMetadata persists the summary of one turn. The primary key on
// (run_id, turn_number) enforces write-once at the storage level; the run
// repository produces the precise domain error before attempting this.
func (db *DB) InsertTurnMetadata(ctx context.Context, md model.TurnMetadata) error {
	actions := make(map[string]int, len(md.TotalActions))
	for kind, n := range md.TotalActions {
		actions[string(kind)] = n
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO turn_metadata (run_id, turn_number, total_actions, created_at)
		 VALUES ($1, $2, $3, $4)`,
		md.RunID, md.TurnNumber, actions, md.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert turn metadata: %w", err)
	}
	return nil
}

// GetTurnMetadata retrieves the summary of one turn of one run.
// Returns ErrNotFound when no row exists.
func (db *DB) GetTurnMetadata(ctx context.Context, runID string, turnNumber int) (model.TurnMetadata, error) {
	var (
		md      model.TurnMetadata
		actions map[string]int
	)
	err := db.pool.QueryRow(ctx,
		`SELECT run_id, turn_number, total_actions, created_at
		 FROM turn_metadata WHERE run_id = $1 AND turn_number = $2`,
		runID, turnNumber,
	).Scan(&md.RunID, &md.TurnNumber, &actions, &md.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TurnMetadata{}, ErrNotFound
		}
		return model.TurnMetadata{}, fmt.Errorf("storage: get turn metadata: %w", err)
	}

	md.TotalActions = make(model.ActionCounts, len(actions))
	for raw, n := range actions {
		kind, err := model.ParseActionKind(raw)
		if err != nil {
			return model.TurnMetadata{}, &RowError{
				Table: "turn_metadata",
				Key:   fmt.Sprintf("%s/%d", runID, turnNumber),
				Field: "total_actions",
				Err:   err,
			}
		}
		md.TotalActions[kind] = n
	}
	return md, nil
}
