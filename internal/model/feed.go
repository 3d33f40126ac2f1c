package model

import (
	"fmt"
	"time"
)

// GeneratedFeed is the ordered list of post URIs served to one agent on
// one turn of one run. The (agent_handle, run_id, turn_number) key is
// unique; writes use upsert semantics. PostURIs order is presentation
// order. The same URI may appear in feeds across turns for novelty
// accounting, but never twice within one feed.
type GeneratedFeed struct {
	FeedID      string    `json:"feed_id"`
	RunID       string    `json:"run_id"`
	TurnNumber  int       `json:"turn_number"`
	AgentHandle string    `json:"agent_handle"`
	PostURIs    []string  `json:"post_uris"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the GeneratedFeed field invariants.
func (f GeneratedFeed) Validate() error {
	if f.FeedID == "" {
		return fmt.Errorf("model: feed id is empty")
	}
	if f.RunID == "" {
		return fmt.Errorf("model: feed %s: run id is empty", f.FeedID)
	}
	if f.TurnNumber < 0 {
		return fmt.Errorf("model: feed %s: turn_number must not be negative, got %d", f.FeedID, f.TurnNumber)
	}
	if f.AgentHandle == "" {
		return fmt.Errorf("model: feed %s: agent handle is empty", f.FeedID)
	}
	seen := make(map[string]struct{}, len(f.PostURIs))
	for _, uri := range f.PostURIs {
		if uri == "" {
			return fmt.Errorf("model: feed %s: post uri is empty", f.FeedID)
		}
		if _, dup := seen[uri]; dup {
			return fmt.Errorf("model: feed %s: duplicate post uri %s", f.FeedID, uri)
		}
		seen[uri] = struct{}{}
	}
	return nil
}
