// cmd/server/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/javajoker/storefront-analytics/internal/database"
	"github.com/javajoker/storefront-analytics/internal/i18n"
	"github.com/javajoker/storefront-analytics/internal/router"
	"github.com/javajoker/storefront-analytics/internal/syncer"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	if err := database.SeedInitialData(a.db, a.cfg.Admin, a.log); err != nil {
		return fmt.Errorf("failed to seed initial data: %w", err)
	}

	if err := i18n.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize i18n: %w", err)
	}

	stack, err := a.newSyncStack()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Runs left RUNNING by a crashed process would otherwise never finish.
	if n, err := stack.service.RecoverStale(ctx); err != nil {
		a.log.WithError(err).Warn("Failed to recover stale sync runs")
	} else if n > 0 {
		a.log.WithField("count", n).Warn("Marked stale sync runs as failed")
	}

	runner := syncer.NewRunner(stack.service, a.log)
	defer runner.Stop()
	runner.Start(ctx, a.cfg.Sync.Interval)
	if a.cfg.Sync.RunOnStartup {
		runner.TriggerAsync()
	}

	// Set Gin mode
	if a.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.Initialize(ctx, router.Dependencies{
		DB:         a.db,
		Config:     a.cfg,
		Sync:       runner,
		RateLimits: stack.limiter,
		Breakers:   stack.breakers,
		Log:        a.log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info("Server exited")
	return nil
}
