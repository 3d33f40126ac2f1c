package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/hibari/internal/model"
)

// UpsertFeed writes a generated feed, replacing any existing row for the
// same (agent_handle, run_id, turn_number) key.
func (db *DB) UpsertFeed(ctx context.Context, feed model.GeneratedFeed) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO generated_feeds (feed_id, run_id, turn_number, agent_handle, post_uris, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (agent_handle, run_id, turn_number) DO UPDATE
		 SET feed_id = EXCLUDED.feed_id,
		     post_uris = EXCLUDED.post_uris,
		     created_at = EXCLUDED.created_at`,
		feed.FeedID, feed.RunID, feed.TurnNumber, feed.AgentHandle,
		feed.PostURIs, feed.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert feed: %w", err)
	}
	return nil
}

// GetFeed retrieves the feed served to one agent on one turn.
// Returns ErrNotFound when no row exists.
func (db *DB) GetFeed(ctx context.Context, agentHandle, runID string, turnNumber int) (model.GeneratedFeed, error) {
	var feed model.GeneratedFeed
	err := db.pool.QueryRow(ctx,
		`SELECT feed_id, run_id, turn_number, agent_handle, post_uris, created_at
		 FROM generated_feeds WHERE agent_handle = $1 AND run_id = $2 AND turn_number = $3`,
		agentHandle, runID, turnNumber,
	).Scan(&feed.FeedID, &feed.RunID, &feed.TurnNumber, &feed.AgentHandle, &feed.PostURIs, &feed.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GeneratedFeed{}, ErrNotFound
		}
		return model.GeneratedFeed{}, fmt.Errorf("storage: get feed: %w", err)
	}
	return feed, nil
}

// ListFeeds returns all generated feeds, newest first.
func (db *DB) ListFeeds(ctx context.Context) ([]model.GeneratedFeed, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT feed_id, run_id, turn_number, agent_handle, post_uris, created_at
		 FROM generated_feeds ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list feeds: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

// FeedsForTurn returns every feed generated for one turn of one run.
func (db *DB) FeedsForTurn(ctx context.Context, runID string, turnNumber int) ([]model.GeneratedFeed, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT feed_id, run_id, turn_number, agent_handle, post_uris, created_at
		 FROM generated_feeds WHERE run_id = $1 AND turn_number = $2
		 ORDER BY agent_handle`,
		runID, turnNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: feeds for turn: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

// ServedPostURIs returns the set of post URIs already served to an agent
// in any feed of the given run, across all turns.
func (db *DB) ServedPostURIs(ctx context.Context, agentHandle, runID string) (map[string]struct{}, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT unnest(post_uris)
		 FROM generated_feeds WHERE agent_handle = $1 AND run_id = $2`,
		agentHandle, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: served post uris: %w", err)
	}
	defer rows.Close()

	served := make(map[string]struct{})
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("storage: scan served uri: %w", err)
		}
		served[uri] = struct{}{}
	}
	return served, rows.Err()
}

func scanFeeds(rows pgx.Rows) ([]model.GeneratedFeed, error) {
	var feeds []model.GeneratedFeed
	for rows.Next() {
		var f model.GeneratedFeed
		if err := rows.Scan(
			&f.FeedID, &f.RunID, &f.TurnNumber, &f.AgentHandle, &f.PostURIs, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan feed: %w", err)
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}
