// Package feeds implements the feed generation pipeline: candidate
// filtering, pluggable ranking, feed persistence, and batch hydration.
package feeds

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ashita-ai/hibari/internal/model"
)

// DefaultFeedLimit caps feed length when the caller does not specify one.
const DefaultFeedLimit = 20

// Algorithm names form a closed registry. Dispatch is an exhaustive
// switch, so an unknown name is an explicit error rather than a map miss.
const (
	AlgorithmChronological = "chronological"
	AlgorithmEngagement    = "engagement"
)

// Algorithm ranks filtered candidates into presentation order.
type Algorithm interface {
	Name() string
	Rank(candidates []model.FeedPost, limit int) []model.FeedPost
}

// UnknownAlgorithmError reports a ranking algorithm name outside the
// registry. There is no silent fallback.
type UnknownAlgorithmError struct {
	Name string
}

func (e *UnknownAlgorithmError) Error() string {
	return fmt.Sprintf("feeds: unknown ranking algorithm %q (known: %v)", e.Name, AlgorithmNames())
}

// AlgorithmByName resolves an algorithm from the closed registry.
func AlgorithmByName(name string) (Algorithm, error) {
	switch name {
	case AlgorithmChronological:
		return chronological{}, nil
	case AlgorithmEngagement:
		return engagement{}, nil
	default:
		return nil, &UnknownAlgorithmError{Name: name}
	}
}

// AlgorithmNames lists the registry contents.
func AlgorithmNames() []string {
	return []string{AlgorithmChronological, AlgorithmEngagement}
}

// chronological ranks by created_at descending. The sort is stable, so
// posts with equal timestamps keep their candidate order; ties are
// algorithm-defined and not further broken by id.
type chronological struct{}

func (chronological) Name() string { return AlgorithmChronological }

func (chronological) Rank(candidates []model.FeedPost, limit int) []model.FeedPost {
	ranked := slices.Clone(candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	return truncate(ranked, limit)
}

// engagement ranks by a weighted engagement score, reposts counting
// double. Stable on ties, like chronological.
type engagement struct{}

func (engagement) Name() string { return AlgorithmEngagement }

func (engagement) Rank(candidates []model.FeedPost, limit int) []model.FeedPost {
	ranked := slices.Clone(candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return engagementScore(ranked[i]) > engagementScore(ranked[j])
	})
	return truncate(ranked, limit)
}

func engagementScore(p model.FeedPost) int64 {
	return p.LikeCount + 2*p.RepostCount + p.ReplyCount
}

func truncate(posts []model.FeedPost, limit int) []model.FeedPost {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if len(posts) > limit {
		return posts[:limit]
	}
	return posts
}
