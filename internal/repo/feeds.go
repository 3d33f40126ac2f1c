package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashita-ai/hibari/internal/model"
	"github.com/ashita-ai/hibari/internal/storage"
)

// FeedStore is the adapter surface GeneratedFeeds depends on.
type FeedStore interface {
	UpsertFeed(ctx context.Context, feed model.GeneratedFeed) error
	GetFeed(ctx context.Context, agentHandle, runID string, turnNumber int) (model.GeneratedFeed, error)
	ListFeeds(ctx context.Context) ([]model.GeneratedFeed, error)
	FeedsForTurn(ctx context.Context, runID string, turnNumber int) ([]model.GeneratedFeed, error)
	ServedPostURIs(ctx context.Context, agentHandle, runID string) (map[string]struct{}, error)
}

// GeneratedFeeds persists and reads back the feeds served to agents.
// Writes replace any existing feed for the same
// (agent_handle, run_id, turn_number) key.
type GeneratedFeeds struct {
	store FeedStore
}

// NewGeneratedFeeds creates a feed repository over the given store.
func NewGeneratedFeeds(store FeedStore) *GeneratedFeeds {
	return &GeneratedFeeds{store: store}
}

// CreateOrUpdate validates and writes a feed with upsert semantics.
func (g *GeneratedFeeds) CreateOrUpdate(ctx context.Context, feed model.GeneratedFeed) error {
	if err := feed.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return g.store.UpsertFeed(ctx, feed)
}

// Get retrieves the feed served to one agent on one turn. Absence is a
// valid outcome, reported as nil with nil error.
func (g *GeneratedFeeds) Get(ctx context.Context, agentHandle, runID string, turnNumber int) (*model.GeneratedFeed, error) {
	if agentHandle == "" || runID == "" {
		return nil, fmt.Errorf("%w: agent handle and run id are required", ErrInvalidArgument)
	}
	if turnNumber < 0 {
		return nil, fmt.Errorf("%w: turn_number must not be negative, got %d", ErrInvalidArgument, turnNumber)
	}
	feed, err := g.store.GetFeed(ctx, agentHandle, runID, turnNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// ListAll returns every generated feed.
func (g *GeneratedFeeds) ListAll(ctx context.Context) ([]model.GeneratedFeed, error) {
	return g.store.ListFeeds(ctx)
}

// FeedsForTurn returns every feed generated for one turn of one run.
func (g *GeneratedFeeds) FeedsForTurn(ctx context.Context, runID string, turnNumber int) ([]model.GeneratedFeed, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is empty", ErrInvalidArgument)
	}
	if turnNumber < 0 {
		return nil, fmt.Errorf("%w: turn_number must not be negative, got %d", ErrInvalidArgument, turnNumber)
	}
	return g.store.FeedsForTurn(ctx, runID, turnNumber)
}

// ServedURIs returns the set of post URIs already served to an agent in
// any prior feed of the given run. Used by the novelty filter.
func (g *GeneratedFeeds) ServedURIs(ctx context.Context, agentHandle, runID string) (map[string]struct{}, error) {
	if agentHandle == "" || runID == "" {
		return nil, fmt.Errorf("%w: agent handle and run id are required", ErrInvalidArgument)
	}
	return g.store.ServedPostURIs(ctx, agentHandle, runID)
}
