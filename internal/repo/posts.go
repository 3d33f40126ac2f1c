package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashita-ai/hibari/internal/model"
	"github.com/ashita-ai/hibari/internal/storage"
)

// PostStore is the adapter surface FeedPosts depends on.
type PostStore interface {
	InsertPost(ctx context.Context, post model.FeedPost) error
	InsertPosts(ctx context.Context, posts []model.FeedPost) (int64, error)
	GetPost(ctx context.Context, uri string) (model.FeedPost, error)
	ListPosts(ctx context.Context) ([]model.FeedPost, error)
	ListPostsByAuthor(ctx context.Context, authorHandle string) ([]model.FeedPost, error)
	PostsByURIs(ctx context.Context, uris []string) ([]model.FeedPost, error)
}

// FeedPosts exposes the ingested content universe. Posts are append-mostly
// reference data, read-only from the orchestration core's perspective.
type FeedPosts struct {
	store PostStore
}

// NewFeedPosts creates a post repository over the given store.
func NewFeedPosts(store PostStore) *FeedPosts {
	return &FeedPosts{store: store}
}

// Get retrieves a post by URI. Absence is a valid outcome, reported as
// nil with nil error.
func (p *FeedPosts) Get(ctx context.Context, uri string) (*model.FeedPost, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: post uri is empty", ErrInvalidArgument)
	}
	post, err := p.store.GetPost(ctx, uri)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListAll returns the full content universe.
func (p *FeedPosts) ListAll(ctx context.Context) ([]model.FeedPost, error) {
	return p.store.ListPosts(ctx)
}

// ListByAuthor returns all posts by one author.
func (p *FeedPosts) ListByAuthor(ctx context.Context, authorHandle string) ([]model.FeedPost, error) {
	if authorHandle == "" {
		return nil, fmt.Errorf("%w: author handle is empty", ErrInvalidArgument)
	}
	return p.store.ListPostsByAuthor(ctx, authorHandle)
}

// ByURIs resolves post URIs into full records in one batch read. URIs
// with no matching post are absent from the result, not an error.
func (p *FeedPosts) ByURIs(ctx context.Context, uris []string) ([]model.FeedPost, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	return p.store.PostsByURIs(ctx, uris)
}

// Write validates and inserts a single post.
func (p *FeedPosts) Write(ctx context.Context, post model.FeedPost) error {
	if err := post.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return p.store.InsertPost(ctx, post)
}

// WriteBatch validates and inserts posts all-or-nothing. Validation runs
// before any I/O so a malformed post fails the batch without touching
// storage.
func (p *FeedPosts) WriteBatch(ctx context.Context, posts []model.FeedPost) (int64, error) {
	for i, post := range posts {
		if err := post.Validate(); err != nil {
			return 0, fmt.Errorf("%w: posts[%d]: %v", ErrInvalidArgument, i, err)
		}
	}
	return p.store.InsertPosts(ctx, posts)
}
