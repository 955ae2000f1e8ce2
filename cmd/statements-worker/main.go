package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/flechilla/statements/internal/amqp"
	"github.com/flechilla/statements/internal/config"
	"github.com/flechilla/statements/internal/core"
	"github.com/flechilla/statements/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting statements-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audit each persisted statement: verify it is readable and log its
	// total so ingestion problems surface right after upload.
	handler := func(msg *amqp.StatementCreatedMessage) error {
		st, err := repo.GetStatement(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("load statement %d: %w", msg.ID, err)
		}

		total, err := repo.SumAmount(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("sum statement %d: %w", msg.ID, err)
		}

		slog.InfoContext(ctx, "Statement ingested",
			"id", st.ID,
			"period", st.StatementPeriod,
			"bank", st.BankName,
			"card", core.FormatCardName(st.CardName),
			"transactions", msg.TransactionCount,
			"total", core.FormatUSD(total))
		return nil
	}

	if err := amqpClient.ConsumeStatementCreated(ctx, handler); err != nil && err != context.Canceled {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
