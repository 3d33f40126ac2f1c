package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/hibari/internal/model"
	"github.com/ashita-ai/hibari/internal/telemetry"
)

// maxMissingExamples caps how many unresolvable URIs one hydration
// warning names; the rest is a remainder count.
const maxMissingExamples = 5

// PostSource is the content-universe surface the pipeline reads from.
type PostSource interface {
	ListAll(ctx context.Context) ([]model.FeedPost, error)
	ByURIs(ctx context.Context, uris []string) ([]model.FeedPost, error)
}

// FeedSink is the feed persistence surface the pipeline writes to.
type FeedSink interface {
	CreateOrUpdate(ctx context.Context, feed model.GeneratedFeed) error
	ServedURIs(ctx context.Context, agentHandle, runID string) (map[string]struct{}, error)
}

// Pipeline produces, persists, and hydrates per-agent feeds for one turn.
type Pipeline struct {
	posts  PostSource
	sink   FeedSink
	logger *slog.Logger
	limit  int
	now    func() time.Time

	feedsGenerated metric.Int64Counter
	missingPosts   metric.Int64Counter
}

// NewPipeline creates a feed pipeline. limit caps feed length per agent
// per turn; zero means DefaultFeedLimit.
func NewPipeline(posts PostSource, sink FeedSink, limit int, logger *slog.Logger) *Pipeline {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	meter := telemetry.Meter("hibari/feeds")
	generated, _ := meter.Int64Counter("hibari.feeds.generated",
		metric.WithDescription("Generated feeds persisted"),
	)
	missing, _ := meter.Int64Counter("hibari.feeds.missing_posts",
		metric.WithDescription("Feed URIs dropped during hydration because the post no longer exists"),
	)
	return &Pipeline{
		posts:          posts,
		sink:           sink,
		logger:         logger,
		limit:          limit,
		now:            time.Now,
		feedsGenerated: generated,
		missingPosts:   missing,
	}
}

// LoadCandidates returns the current content universe.
func (p *Pipeline) LoadCandidates(ctx context.Context) ([]model.FeedPost, error) {
	return p.posts.ListAll(ctx)
}

// FilterCandidates excludes posts already served to the agent in any
// prior feed of this run (novelty filter) and posts authored by the agent
// itself. The order of survivors is left to the ranking step.
func (p *Pipeline) FilterCandidates(ctx context.Context, candidates []model.FeedPost, agentHandle, runID string) ([]model.FeedPost, error) {
	served, err := p.sink.ServedURIs(ctx, agentHandle, runID)
	if err != nil {
		return nil, fmt.Errorf("feeds: load served uris for %s: %w", agentHandle, err)
	}

	filtered := make([]model.FeedPost, 0, len(candidates))
	for _, post := range candidates {
		if post.AuthorHandle == agentHandle {
			continue
		}
		if _, seen := served[post.URI]; seen {
			continue
		}
		filtered = append(filtered, post)
	}
	return filtered, nil
}

// GenerateFeed filters and ranks candidates for one agent, then persists
// the resulting feed with upsert semantics on the
// (agent_handle, run_id, turn_number) key.
func (p *Pipeline) GenerateFeed(ctx context.Context, agentHandle string, candidates []model.FeedPost, runID string, turnNumber int, algorithmName string) (model.GeneratedFeed, error) {
	algorithm, err := AlgorithmByName(algorithmName)
	if err != nil {
		return model.GeneratedFeed{}, err
	}

	filtered, err := p.FilterCandidates(ctx, candidates, agentHandle, runID)
	if err != nil {
		return model.GeneratedFeed{}, err
	}
	ranked := algorithm.Rank(filtered, p.limit)

	uris := make([]string, len(ranked))
	for i, post := range ranked {
		uris[i] = post.URI
	}

	feed := model.GeneratedFeed{
		FeedID:      uuid.NewString(),
		RunID:       runID,
		TurnNumber:  turnNumber,
		AgentHandle: agentHandle,
		PostURIs:    uris,
		CreatedAt:   p.now().UTC(),
	}
	if err := p.sink.CreateOrUpdate(ctx, feed); err != nil {
		return model.GeneratedFeed{}, fmt.Errorf("feeds: persist feed for %s: %w", agentHandle, err)
	}

	p.feedsGenerated.Add(ctx, 1)
	return feed, nil
}

// GenerateFeeds generates and persists one feed per agent for the given
// turn, then hydrates all of them with a single batch read over the union
// of referenced URIs. A URI with no matching post is dropped from that
// agent's hydrated result and reported once per agent as a warning.
//
// Per-agent generation fans out through an errgroup; the upserts touch
// disjoint (agent_handle, run_id, turn_number) keys, so concurrent writes
// are safe.
func (p *Pipeline) GenerateFeeds(ctx context.Context, agentHandles []string, runID string, turnNumber int, algorithmName string) (map[string][]model.FeedPost, error) {
	// Resolve the algorithm up front so an unknown name fails before any
	// feed is written.
	if _, err := AlgorithmByName(algorithmName); err != nil {
		return nil, err
	}

	candidates, err := p.LoadCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("feeds: load candidates: %w", err)
	}

	generated := make([]model.GeneratedFeed, len(agentHandles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, handle := range agentHandles {
		g.Go(func() error {
			feed, err := p.GenerateFeed(gctx, handle, candidates, runID, turnNumber, algorithmName)
			if err != nil {
				return err
			}
			generated[i] = feed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Union of every referenced URI across all feeds, hydrated in one
	// batch read. The full content universe is never re-loaded per agent.
	uriSet := make(map[string]struct{})
	var union []string
	for _, feed := range generated {
		for _, uri := range feed.PostURIs {
			if _, ok := uriSet[uri]; ok {
				continue
			}
			uriSet[uri] = struct{}{}
			union = append(union, uri)
		}
	}

	hydrated, err := p.posts.ByURIs(ctx, union)
	if err != nil {
		return nil, fmt.Errorf("feeds: hydrate posts: %w", err)
	}
	byURI := make(map[string]model.FeedPost, len(hydrated))
	for _, post := range hydrated {
		byURI[post.URI] = post
	}

	result := make(map[string][]model.FeedPost, len(generated))
	for _, feed := range generated {
		posts := make([]model.FeedPost, 0, len(feed.PostURIs))
		var missing []string
		for _, uri := range feed.PostURIs {
			if post, ok := byURI[uri]; ok {
				posts = append(posts, post)
			} else {
				missing = append(missing, uri)
			}
		}
		if len(missing) > 0 {
			p.missingPosts.Add(ctx, int64(len(missing)))
			examples := missing
			if len(examples) > maxMissingExamples {
				examples = examples[:maxMissingExamples]
			}
			p.logger.Warn("feeds: dropped unresolvable post uris during hydration",
				"agent", feed.AgentHandle,
				"run_id", runID,
				"turn", turnNumber,
				"missing", len(missing),
				"examples", examples,
				"omitted", len(missing)-len(examples),
			)
		}
		result[feed.AgentHandle] = posts
	}
	return result, nil
}
