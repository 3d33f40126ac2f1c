package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/hibari/internal/model"
)

// seedFile is the on-disk shape consumed by `hibari seed`. It is produced
// by the external ingestion tooling (Bluesky crawler, bio generator).
type seedFile struct {
	Profiles []model.Profile      `json:"profiles"`
	Posts    []model.FeedPost     `json:"posts"`
	Bios     []model.GeneratedBio `json:"bios"`
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference profiles, posts, and bios from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read seed file: %w", err)
				}
				var seed seedFile
				if err := json.Unmarshal(raw, &seed); err != nil {
					return fmt.Errorf("parse seed file: %w", err)
				}

				now := time.Now().UTC()
				for i := range seed.Posts {
					if seed.Posts[i].IndexedAt.IsZero() {
						seed.Posts[i].IndexedAt = now
					}
				}

				if err := a.profiles.UpsertBatch(ctx, seed.Profiles); err != nil {
					return fmt.Errorf("seed profiles: %w", err)
				}
				inserted, err := a.posts.WriteBatch(ctx, seed.Posts)
				if err != nil {
					return fmt.Errorf("seed posts: %w", err)
				}
				for _, bio := range seed.Bios {
					if bio.CreatedAt.IsZero() {
						bio.CreatedAt = now
					}
					if err := a.bios.Upsert(ctx, bio); err != nil {
						return fmt.Errorf("seed bio %s: %w", bio.Handle, err)
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d profile(s), %d post(s), %d bio(s)\n",
					len(seed.Profiles), inserted, len(seed.Bios))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the seed JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
