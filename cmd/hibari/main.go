// Package main provides the hibari command line interface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/hibari/internal/config"
	"github.com/ashita-ai/hibari/internal/feeds"
	"github.com/ashita-ai/hibari/internal/repo"
	"github.com/ashita-ai/hibari/internal/sim"
	"github.com/ashita-ai/hibari/internal/storage"
	"github.com/ashita-ai/hibari/internal/telemetry"
	"github.com/ashita-ai/hibari/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hibari",
		Short: "Social-feed simulation harness",
		Long: "hibari simulates social-media agents consuming algorithmically generated feeds\n" +
			"over repeated turns, persisting runs, feeds, and per-turn action counts in PostgreSQL.",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newRunsCmd(), newShowCmd(), newSeedCmd(), newSweepCmd())
	return root
}

// app holds the wired subsystems shared by all commands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *storage.DB
	runs     *repo.Runs
	feeds    *repo.GeneratedFeeds
	posts    *repo.FeedPosts
	profiles *repo.Profiles
	bios     *repo.GeneratedBios
}

// newRunner builds a pipeline and orchestrator over the wired repositories.
func (a *app) newRunner(seed uint64, feedLimit int) *sim.Runner {
	if feedLimit <= 0 {
		feedLimit = a.cfg.FeedLimit
	}
	pipeline := feeds.NewPipeline(a.posts, a.feeds, feedLimit, a.logger)
	return sim.NewRunner(a.runs, a.profiles, a.bios, pipeline, sim.NewRandomActor(seed), a.logger)
}

// withApp loads config, wires storage and repositories, runs fn, and
// tears everything down.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, true)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		runs:     repo.NewRuns(db, logger),
		feeds:    repo.NewGeneratedFeeds(db),
		posts:    repo.NewFeedPosts(db),
		profiles: repo.NewProfiles(db),
		bios:     repo.NewGeneratedBios(db),
	}
	return fn(ctx, a)
}
