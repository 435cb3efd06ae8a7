package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/photovault/memories/internal/app"
	"github.com/photovault/memories/internal/cache"
	"github.com/photovault/memories/internal/config"
	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/jobs"
	"github.com/photovault/memories/internal/logger"
	"github.com/photovault/memories/internal/memory"
	"github.com/photovault/memories/internal/reel"
	"github.com/photovault/memories/internal/render"
)

// logDeliverer stands in for the email/push gateway. Delivery failures are
// tolerated upstream, so logging the preview is enough for local runs.
type logDeliverer struct{}

func (logDeliverer) Deliver(ctx context.Context, userID, memoryID uint64, preview memory.NotificationPreview) error {
	logger.Info("memory notification delivered",
		"user_id", userID, "memory_id", memoryID,
		"title", preview.Title, "photos", preview.PhotoCount)
	return nil
}

// tokenSharing mints opaque share tokens locally. The real sharing service
// would persist the token alongside the photo grant.
type tokenSharing struct{}

func (tokenSharing) CreateShareLink(ctx context.Context, photoIDs []uint64, ownerID uint64) (string, error) {
	return fmt.Sprintf("share/%s", uuid.NewString()), nil
}

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis. The cache degrades to miss, so a dead Redis is a warning,
	// not a startup failure.
	redisCache := cache.NewRedisCache(cfg, log)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("redis unreachable, running without cache", "err", err)
	}

	queue, err := jobs.NewRepo(database)
	if err != nil {
		log.Error("failed to init job queue", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log, queue)

	engine := memory.NewEngine(appCtx)
	notifier := memory.NewNotifier(appCtx, engine, logDeliverer{})
	renderer := render.NewFileRenderer(cfg.Artifacts.Dir)
	reelSvc := reel.NewService(appCtx, renderer, tokenSharing{})

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Worker.Count; i++ {
		worker := jobs.NewWorker(queue, log, cfg.Worker.PollInterval)
		notifier.RegisterJobs(worker)
		reelSvc.RegisterJobs(worker)

		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSchedules(ctx, notifier)
	}()

	log.Info("memory engine started", "workers", cfg.Worker.Count, "env", cfg.App.ENV)
	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
}

// runSchedules enqueues the recurring batch jobs: daily discovery plus
// notifications, and a weekly retention sweep. The queue deduplicates
// nothing, so the tickers are the only source of these jobs.
func runSchedules(ctx context.Context, notifier *memory.Notifier) {
	daily := time.NewTicker(24 * time.Hour)
	weekly := time.NewTicker(7 * 24 * time.Hour)
	defer daily.Stop()
	defer weekly.Stop()

	// kick off today's batch on startup
	if err := notifier.EnqueueDailyBatch(time.Now().UTC(), 3); err != nil {
		logger.Error("failed to enqueue daily batch", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-daily.C:
			if err := notifier.EnqueueDailyBatch(time.Now().UTC(), 3); err != nil {
				logger.Error("failed to enqueue daily batch", "err", err)
			}
		case <-weekly.C:
			if err := notifier.EnqueueCleanup(3); err != nil {
				logger.Error("failed to enqueue retention cleanup", "err", err)
			}
		}
	}
}
