package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/photovault/memories/internal/cache"
	"github.com/photovault/memories/internal/jobs"
)

// AppContext holds shared dependencies (DB, Redis, Logger, job queue).
type AppContext struct {
	DB     *gorm.DB
	Cache  *cache.RedisCache
	Logger *slog.Logger
	Queue  *jobs.Repo
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, queue *jobs.Repo) *AppContext {
	return &AppContext{
		DB:     db,
		Cache:  rdb,
		Logger: logger,
		Queue:  queue,
	}
}
