package sim

import (
	"context"
	"math/rand/v2"

	"github.com/ashita-ai/hibari/internal/model"
)

// RandomActor takes uniformly random actions against each feed item. It
// stands in for real agent behavior in local runs and smoke tests;
// research code plugs in its own Actor.
type RandomActor struct {
	rng *rand.Rand

	likeP    float64
	commentP float64
	followP  float64
}

// NewRandomActor creates a seeded RandomActor so runs are reproducible.
func NewRandomActor(seed uint64) *RandomActor {
	return &RandomActor{
		rng:      rand.New(rand.NewPCG(seed, seed)),
		likeP:    0.30,
		commentP: 0.10,
		followP:  0.05,
	}
}

// Act rolls once per feed item per action kind.
func (a *RandomActor) Act(ctx context.Context, agent Agent, feed []model.FeedPost) (model.ActionCounts, error) {
	counts := model.ActionCounts{}
	for range feed {
		if a.rng.Float64() < a.likeP {
			counts[model.ActionLike]++
		}
		if a.rng.Float64() < a.commentP {
			counts[model.ActionComment]++
		}
		if a.rng.Float64() < a.followP {
			counts[model.ActionFollow]++
		}
	}
	return counts, nil
}
