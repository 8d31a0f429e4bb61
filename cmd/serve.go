package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/event-registration/internal/config"
	"github.com/Shivanand-hulikatti/event-registration/internal/database"
	"github.com/Shivanand-hulikatti/event-registration/internal/handler"
	"github.com/Shivanand-hulikatti/event-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registration/internal/repository"
	"github.com/Shivanand-hulikatti/event-registration/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	metrics.Init()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to postgres")

	if cfg.MigrateOnStart {
		if err := database.MigrateUp(cfg.Database.DSN()); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	eventRepo := repository.NewEventRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)

	router := handler.NewRouter(handler.Deps{
		Events: service.NewEventService(eventRepo, regRepo, logger),
		Users:  service.NewUserService(userRepo, logger),
		DB:     pool,
		Logger: logger,
	})

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("environment", cfg.Environment).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
