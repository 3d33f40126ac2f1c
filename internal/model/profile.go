package model

import (
	"fmt"
	"time"
)

// Profile is author metadata used to seed simulation agents.
type Profile struct {
	Handle         string `json:"handle"`
	DisplayName    string `json:"display_name"`
	Bio            string `json:"bio"`
	FollowersCount int64  `json:"followers_count"`
	FollowsCount   int64  `json:"follows_count"`
	PostsCount     int64  `json:"posts_count"`
}

// Validate checks the Profile field invariants.
func (p Profile) Validate() error {
	if p.Handle == "" {
		return fmt.Errorf("model: profile handle is empty")
	}
	if p.FollowersCount < 0 || p.FollowsCount < 0 || p.PostsCount < 0 {
		return fmt.Errorf("model: profile %s: counts must not be negative", p.Handle)
	}
	return nil
}

// GeneratedBio is an externally generated persona bio for one handle.
// When present it overrides the profile bio during agent materialization.
type GeneratedBio struct {
	Handle    string    `json:"handle"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the GeneratedBio field invariants.
func (b GeneratedBio) Validate() error {
	if b.Handle == "" {
		return fmt.Errorf("model: generated bio handle is empty")
	}
	if b.Bio == "" {
		return fmt.Errorf("model: generated bio for %s is empty", b.Handle)
	}
	return nil
}
