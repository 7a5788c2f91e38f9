// cmd/server/app.go
package main

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/database"
	"github.com/javajoker/storefront-analytics/internal/logging"
	"github.com/javajoker/storefront-analytics/internal/providers"
	"github.com/javajoker/storefront-analytics/internal/storage"
	"github.com/javajoker/storefront-analytics/internal/syncer"
	"github.com/javajoker/storefront-analytics/internal/variation"
)

// app holds what every command needs: configuration, a logger and an open
// database with the schema in place.
type app struct {
	cfg *config.Config
	log *logrus.Logger
	db  *gorm.DB
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logging.New(cfg.Environment, cfg.Log)

	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.RunMigrations(db, log); err != nil {
		database.Close(db, log)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &app{cfg: cfg, log: log, db: db}, nil
}

func (a *app) close() {
	database.Close(a.db, a.log)
}

// syncStack is the fetch pipeline: rate limiter, HTTP client with snapshot
// archive, per-provider circuit breakers and the orchestrator on top.
type syncStack struct {
	limiter  *providers.RateLimiter
	breakers *providers.BreakerClient
	service  *syncer.Service
}

func (a *app) newSyncStack() (*syncStack, error) {
	archiver, err := storage.NewArchiver(a.cfg.AWS, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot archive: %w", err)
	}

	limiter := providers.NewRateLimiter(a.log)
	client := providers.NewClient(&http.Client{Timeout: a.cfg.Sync.HTTPTimeout}, limiter, archiver, a.log)
	breakers := providers.NewBreakerClient(client, providers.DefaultBreakerSettings(), a.log)

	service := syncer.NewService(a.db, breakers, a.cfg.Providers, a.cfg.Sync, variation.New(), a.log)
	return &syncStack{limiter: limiter, breakers: breakers, service: service}, nil
}
