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

	"github.com/layer-3/polkauth"
	"github.com/layer-3/polkauth/internal/config"
	"github.com/layer-3/polkauth/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if err := config.LoadFile(os.Getenv("POLKAUTH_ENV_FILE")); err != nil {
		log.Fatal().Err(err).Msg("failed to load env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		logger.Fatal().Err(err).Msg("polkauth stopped")
	}
}

// run serves until ctx ends. Everything it opens is closed before it returns.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	svc, err := polkauth.NewService(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close service")
		}
	}()

	if err := svc.Warmup(ctx); err != nil {
		return fmt.Errorf("signature verification unavailable: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}
