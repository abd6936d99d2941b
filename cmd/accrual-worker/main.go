package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"taschengeld/internal/amqp"
	"taschengeld/internal/config"
	"taschengeld/internal/core"
	"taschengeld/internal/log"
	"taschengeld/internal/services"
	"taschengeld/internal/storage"
	"taschengeld/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.NewFromEnv(log.ComponentWorker)
	log.SetDefault(logger)

	logger.Info("Starting accrual-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, interest events will not be published", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	engine := services.NewAccrualEngine(repo, amqpClient)
	sweeper := worker.NewAccrualWorker(repo, engine, cfg.AccrualParallelism)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Accrual sweep configured",
		"interval", cfg.AccrualInterval,
		"parallelism", cfg.AccrualParallelism,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.AccrualInterval)
	defer ticker.Stop()

	// Run an initial sweep on startup so a crashed or paused worker catches
	// up immediately instead of waiting a full interval.
	logger.Info("Running initial accrual sweep...")
	if result, err := sweeper.RunSweep(ctx, core.Today()); err != nil {
		logger.Error("Initial sweep failed", "error", err)
	} else {
		logger.Info("Initial sweep complete", "accrued", result.Accrued, "interest_paid_cents", result.InterestPaid)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				result, err := sweeper.RunSweep(ctx, core.DateOf(now))
				if err != nil {
					logger.Error("Periodic sweep failed", "error", err)
				} else {
					logger.Info("Periodic sweep complete",
						"accrued", result.Accrued,
						"interest_paid_cents", result.InterestPaid,
						"next_check", now.Add(cfg.AccrualInterval).Format("15:04:05"))
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Accrual-worker shutdown complete")
}
