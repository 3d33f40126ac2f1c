package model

import (
	"fmt"
	"time"
)

// FeedPost is an ingested platform post, immutable from the orchestration
// core's perspective. URI is the AT-URI of the post
// (e.g. at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b).
type FeedPost struct {
	URI               string    `json:"uri"`
	CID               string    `json:"cid"`
	AuthorHandle      string    `json:"author_handle"`
	AuthorDisplayName string    `json:"author_display_name"`
	Text              string    `json:"text"`
	LikeCount         int64     `json:"like_count"`
	ReplyCount        int64     `json:"reply_count"`
	RepostCount       int64     `json:"repost_count"`
	CreatedAt         time.Time `json:"created_at"`
	IndexedAt         time.Time `json:"indexed_at"`
}

// Validate checks the FeedPost field invariants.
func (p FeedPost) Validate() error {
	if p.URI == "" {
		return fmt.Errorf("model: post uri is empty")
	}
	if p.AuthorHandle == "" {
		return fmt.Errorf("model: post %s: author handle is empty", p.URI)
	}
	if p.LikeCount < 0 || p.ReplyCount < 0 || p.RepostCount < 0 {
		return fmt.Errorf("model: post %s: engagement counters must not be negative", p.URI)
	}
	return nil
}
