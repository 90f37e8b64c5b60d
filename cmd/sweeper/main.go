package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/castrolabs/osbot/internal/config"
	"github.com/castrolabs/osbot/internal/notifications"
	"github.com/castrolabs/osbot/internal/whatsapp"
	"github.com/castrolabs/osbot/pkg/logging"
)

// The sweeper delivers due scheduled notifications. It runs as its own
// process so a slow WhatsApp provider never backs up the API server.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting osbot notification sweeper",
		"env", cfg.Env,
		"interval", cfg.SweepInterval,
		"batch", cfg.SweepBatch,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.EvolutionAPIURL == "" || cfg.EvolutionAPIKey == "" {
		logger.Error("EVOLUTION_API_URL and EVOLUTION_API_KEY are required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := notifications.NewPostgresRepository(pool)
	gateway := whatsapp.NewClient(cfg.EvolutionAPIURL, cfg.EvolutionAPIKey, cfg.EvolutionInstance, logger)

	sweeper := notifications.NewSweeper(repo, gateway, logger).
		WithInterval(cfg.SweepInterval).
		WithBatchSize(cfg.SweepBatch)
	sweeper.Run(ctx)

	logger.Info("sweeper stopped")
}
