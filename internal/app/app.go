// Package app wires the job service and its backing stores from config. The
// API server and the MCP server share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/vidlens/internal/ai"
	"github.com/kiranshivaraju/vidlens/internal/cache"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/internal/downloader"
	"github.com/kiranshivaraju/vidlens/internal/files"
	"github.com/kiranshivaraju/vidlens/internal/jobs"
	"github.com/kiranshivaraju/vidlens/internal/store"
)

// App holds the long-lived collaborators of a running process.
type App struct {
	Store     store.Store
	Cache     *cache.RedisCache
	Jobs      *jobs.Service
	Scheduler *jobs.GoScheduler

	closers []func()
}

// Options tunes Build.
type Options struct {
	// Resume fails interrupted jobs and reschedules pending ones. Only the
	// process that owns the job queue should set it.
	Resume bool
}

// Build connects to the database and Redis, applies migrations and assembles
// the job service. On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// 1. Connect to database
	a.Store, err = store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)
	slog.Info("database connected")

	// 2. Run migrations
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 3. Create Redis cache
	a.Cache, err = cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.Cache.Close() })

	if err := a.Cache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. Create AI provider and analysis pipeline
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name(), "model", aiProvider.Model())

	analyzer := ai.NewAnalysisService(aiProvider, cfg.AI, cfg.Storage.MaxFileSize)
	dl := downloader.New(cfg.Download, nil, slog.Default())

	fileManager, err := files.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("prepare storage: %w", err)
	}

	// 5. Assemble the job service
	a.Scheduler = jobs.NewGoScheduler(cfg.Server.MaxConcurrentJobs)
	a.Jobs = jobs.NewService(jobs.Deps{
		Store:            a.Store,
		Prober:           downloader.NewCachedProber(dl, a.Cache, cfg.Redis.ProbeCacheTTL),
		Downloader:       dl,
		Analyzer:         analyzer,
		Files:            fileManager,
		Scheduler:        a.Scheduler,
		AllowedPlatforms: cfg.Server.AllowedPlatforms,
		Logger:           slog.Default(),
	})

	if opts.Resume {
		if err := a.Jobs.Resume(ctx); err != nil {
			return nil, fmt.Errorf("resume jobs: %w", err)
		}
	}
	return a, nil
}

// Shutdown waits for background jobs to finish or ctx to expire.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Scheduler == nil {
		return nil
	}
	return a.Scheduler.Shutdown(ctx)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
