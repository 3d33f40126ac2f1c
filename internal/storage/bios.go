package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/hibari/internal/model"
)

// GetBio retrieves a generated bio by handle. Returns ErrNotFound when no
// row exists.
func (db *DB) GetBio(ctx context.Context, handle string) (model.GeneratedBio, error) {
	var b model.GeneratedBio
	err := db.pool.QueryRow(ctx,
		`SELECT handle, bio, created_at FROM generated_bios WHERE handle = $1`, handle,
	).Scan(&b.Handle, &b.Bio, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GeneratedBio{}, ErrNotFound
		}
		return model.GeneratedBio{}, fmt.Errorf("storage: get bio %s: %w", handle, err)
	}
	return b, nil
}

// ListBios returns all generated bios ordered by handle.
func (db *DB) ListBios(ctx context.Context) ([]model.GeneratedBio, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT handle, bio, created_at FROM generated_bios ORDER BY handle`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list bios: %w", err)
	}
	defer rows.Close()

	var bios []model.GeneratedBio
	for rows.Next() {
		var b model.GeneratedBio
		if err := rows.Scan(&b.Handle, &b.Bio, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan bio: %w", err)
		}
		bios = append(bios, b)
	}
	return bios, rows.Err()
}

// UpsertBio writes a generated bio, replacing any existing row for the
// same handle.
func (db *DB) UpsertBio(ctx context.Context, bio model.GeneratedBio) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO generated_bios (handle, bio, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (handle) DO UPDATE
		 SET bio = EXCLUDED.bio, created_at = EXCLUDED.created_at`,
		bio.Handle, bio.Bio, bio.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert bio %s: %w", bio.Handle, err)
	}
	return nil
}
