package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"catalog-adaptation-service/internal/cache"
	"catalog-adaptation-service/internal/config"
	"catalog-adaptation-service/internal/database"
	"catalog-adaptation-service/internal/events"
	"catalog-adaptation-service/internal/handlers"
	"catalog-adaptation-service/internal/repository"
	"catalog-adaptation-service/internal/services"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalog adaptation HTTP service",
		Example: `  # Start server on the port from PORT (default 8099)
  catalog-adapter serve

  # Start server on a custom port
  catalog-adapter serve --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			logger := newLogger(cfg, os.Stdout)

			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db, logger); err != nil {
				return err
			}
			logger.Info("Database models migrated")

			lib, registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			templateService := services.NewTemplateService(registry, repository.NewTemplateRepository(db), logger)
			if _, err := templateService.Restore(ctx); err != nil {
				logger.WithError(err).Warn("Failed to restore template versions")
			}

			adapter, err := newAdaptationService(ctx, cfg, logger, lib, templateService)
			if err != nil {
				return err
			}

			redisClient, err := cache.Connect(ctx, cfg.RedisURL)
			if err != nil {
				logger.WithError(err).Warn("Redis unavailable, job progress stays in process")
			}
			progress := cache.NewProgressCache(redisClient, time.Hour)

			var publisher services.EventPublisher
			natsPublisher, err := events.NewPublisher(cfg.NATSURL, logger)
			if err != nil {
				logger.WithError(err).Warn("NATS unavailable, job events disabled")
			} else {
				publisher = natsPublisher
				defer natsPublisher.Close()
			}

			limiter := services.NewJobLimiter(&services.JobLimiterConfig{
				MaxConcurrentJobs: cfg.MaxConcurrentJobs,
				JobTimeout:        cfg.JobTimeout,
				QueueTimeout:      time.Minute,
			})
			jobService := services.NewJobService(
				adapter,
				repository.NewJobRepository(db),
				progress,
				publisher,
				limiter,
				services.JobServiceConfig{JobTimeout: cfg.JobTimeout, FlushEvery: 10},
				logger,
			)

			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			router := handlers.NewRouter(handlers.Router{
				Health:         handlers.NewHealthHandler(db),
				Templates:      handlers.NewTemplateHandler(templateService),
				Adaptation:     handlers.NewAdaptationHandler(adapter, cfg.MaxUploadSizeMB),
				Jobs:           handlers.NewJobHandler(jobService, templateService, cfg.MaxUploadSizeMB),
				AllowedOrigins: cfg.CORSAllowedOrigins,
				Logger:         logger,
			})

			server := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.WithField("port", cfg.Port).WithField("env", cfg.Environment).Info("Catalog adaptation service starting")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				logger.Info("Shutting down catalog-adaptation-service...")
			case err := <-serverErr:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Server shutdown failed")
			}

			// Running jobs end as CANCELLED
			jobService.Shutdown()
			for jobService.ActiveJobCount() > 0 && shutdownCtx.Err() == nil {
				time.Sleep(100 * time.Millisecond)
			}

			if redisClient != nil {
				_ = redisClient.Close()
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
			logger.Info("Catalog adaptation service stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")

	return cmd
}
