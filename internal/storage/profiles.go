package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/hibari/internal/model"
)

// GetProfile retrieves a profile by handle. Returns ErrNotFound when no
// row exists.
func (db *DB) GetProfile(ctx context.Context, handle string) (model.Profile, error) {
	var p model.Profile
	err := db.pool.QueryRow(ctx,
		`SELECT handle, display_name, bio, followers_count, follows_count, posts_count
		 FROM profiles WHERE handle = $1`, handle,
	).Scan(&p.Handle, &p.DisplayName, &p.Bio, &p.FollowersCount, &p.FollowsCount, &p.PostsCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("storage: get profile %s: %w", handle, err)
	}
	return p, nil
}

// ListProfiles returns all profiles ordered by handle for deterministic
// agent materialization.
func (db *DB) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT handle, display_name, bio, followers_count, follows_count, posts_count
		 FROM profiles ORDER BY handle`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(
			&p.Handle, &p.DisplayName, &p.Bio, &p.FollowersCount, &p.FollowsCount, &p.PostsCount,
		); err != nil {
			return nil, fmt.Errorf("storage: scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpsertProfiles writes profiles in one transaction, replacing existing
// rows by handle. Any single-row failure rolls back the whole batch.
func (db *DB) UpsertProfiles(ctx context.Context, profiles []model.Profile) error {
	if len(profiles) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin upsert profiles: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range profiles {
		if _, err := tx.Exec(ctx,
			`INSERT INTO profiles (handle, display_name, bio, followers_count, follows_count, posts_count)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (handle) DO UPDATE
			 SET display_name = EXCLUDED.display_name,
			     bio = EXCLUDED.bio,
			     followers_count = EXCLUDED.followers_count,
			     follows_count = EXCLUDED.follows_count,
			     posts_count = EXCLUDED.posts_count`,
			p.Handle, p.DisplayName, p.Bio, p.FollowersCount, p.FollowsCount, p.PostsCount,
		); err != nil {
			return fmt.Errorf("storage: upsert profile %s: %w", p.Handle, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit upsert profiles: %w", err)
	}
	return nil
}
