package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/hibari/internal/model"
)

// InsertPost inserts a single post.
func (db *DB) InsertPost(ctx context.Context, post model.FeedPost) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO posts (uri, cid, author_handle, author_display_name, text,
		                    like_count, reply_count, repost_count, created_at, indexed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		post.URI, post.CID, post.AuthorHandle, post.AuthorDisplayName, post.Text,
		post.LikeCount, post.ReplyCount, post.RepostCount, post.CreatedAt, post.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert post: %w", err)
	}
	return nil
}

// InsertPosts inserts posts using the COPY protocol. COPY executes as a
// single statement, so any row failure rolls back the whole batch.
func (db *DB) InsertPosts(ctx context.Context, posts []model.FeedPost) (int64, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	columns := []string{
		"uri", "cid", "author_handle", "author_display_name", "text",
		"like_count", "reply_count", "repost_count", "created_at", "indexed_at",
	}

	rows := make([][]any, len(posts))
	for i, p := range posts {
		rows[i] = []any{
			p.URI, p.CID, p.AuthorHandle, p.AuthorDisplayName, p.Text,
			p.LikeCount, p.ReplyCount, p.RepostCount, p.CreatedAt, p.IndexedAt,
		}
	}

	count, err := db.pool.CopyFrom(ctx, pgx.Identifier{"posts"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("storage: copy posts: %w", err)
	}
	return count, nil
}

// GetPost retrieves a post by URI. Returns ErrNotFound when no row exists.
func (db *DB) GetPost(ctx context.Context, uri string) (model.FeedPost, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT uri, cid, author_handle, author_display_name, text,
		        like_count, reply_count, repost_count, created_at, indexed_at
		 FROM posts WHERE uri = $1`, uri,
	)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.FeedPost{}, ErrNotFound
		}
		return model.FeedPost{}, fmt.Errorf("storage: get post %s: %w", uri, err)
	}
	return post, nil
}

// ListPosts returns the full content universe, newest first by created_at.
func (db *DB) ListPosts(ctx context.Context) ([]model.FeedPost, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT uri, cid, author_handle, author_display_name, text,
		        like_count, reply_count, repost_count, created_at, indexed_at
		 FROM posts ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListPostsByAuthor returns all posts by one author, newest first.
func (db *DB) ListPostsByAuthor(ctx context.Context, authorHandle string) ([]model.FeedPost, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT uri, cid, author_handle, author_display_name, text,
		        like_count, reply_count, repost_count, created_at, indexed_at
		 FROM posts WHERE author_handle = $1 ORDER BY created_at DESC`,
		authorHandle,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list posts by author: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// PostsByURIs retrieves all posts whose URI appears in uris, in one batch
// read. URIs with no matching row are simply absent from the result.
func (db *DB) PostsByURIs(ctx context.Context, uris []string) ([]model.FeedPost, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT uri, cid, author_handle, author_display_name, text,
		        like_count, reply_count, repost_count, created_at, indexed_at
		 FROM posts WHERE uri = ANY($1)`,
		uris,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: posts by uris: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

func scanPost(row rowScanner) (model.FeedPost, error) {
	var p model.FeedPost
	err := row.Scan(
		&p.URI, &p.CID, &p.AuthorHandle, &p.AuthorDisplayName, &p.Text,
		&p.LikeCount, &p.ReplyCount, &p.RepostCount, &p.CreatedAt, &p.IndexedAt,
	)
	return p, err
}

func scanPosts(rows pgx.Rows) ([]model.FeedPost, error) {
	var posts []model.FeedPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
