// Command seed loads statement JSON files from a data directory into the
// database. Layout: <data-dir>/<card-folder>/<statement>.json, one file per
// billing cycle.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/flechilla/statements/internal/config"
	"github.com/flechilla/statements/internal/core"
	"github.com/flechilla/statements/internal/storage"
)

const (
	defaultClientName  = "Default Client"
	defaultClientEmail = "client@example.com"
)

// seedFile mirrors the on-disk statement format.
type seedFile struct {
	StatementPeriod  string        `json:"statement_period"`
	BankName         string        `json:"bank_name"`
	CardName         string        `json:"card_name"`
	BusinessExpenses []seedExpense `json:"business_expenses"`
}

type seedExpense struct {
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Justification string          `json:"justification,omitempty"`
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

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

	ctx := context.Background()

	clientID, err := ensureDefaultClient(ctx, repo)
	if err != nil {
		logger.Error("Failed to ensure default client", "error", err)
		os.Exit(1)
	}

	count, err := seedDirectory(ctx, repo, cfg.DataDir, clientID)
	if err != nil {
		logger.Error("Seeding failed", "error", err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	logger.Info("Seeding complete", "statements", count, "dir", cfg.DataDir)
}

// ensureDefaultClient returns the default client's id, creating it on first
// run.
func ensureDefaultClient(ctx context.Context, repo *storage.SQLiteRepository) (int64, error) {
	existing, err := repo.GetClientByEmail(ctx, defaultClientEmail)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return 0, err
	}

	return repo.CreateClient(ctx, core.Client{
		Name:  defaultClientName,
		Email: defaultClientEmail,
	})
}

// seedDirectory imports every card folder concurrently, one goroutine per
// folder so statements within a card keep their file order.
func seedDirectory(ctx context.Context, repo *storage.SQLiteRepository, dir string, clientID int64) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read data directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	counts := make([]int, len(entries))

	for i, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(dir, entry.Name())

		g.Go(func() error {
			n, err := seedCardFolder(ctx, repo, folder, clientID)
			if err != nil {
				return fmt.Errorf("seed %s: %w", entry.Name(), err)
			}
			counts[i] = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func seedCardFolder(ctx context.Context, repo *storage.SQLiteRepository, folder string, clientID int64) (int, error) {
	files, err := filepath.Glob(filepath.Join(folder, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("glob statement files: %w", err)
	}

	count := 0
	for _, path := range files {
		payload, err := loadSeedFile(path, filepath.Base(folder))
		if err != nil {
			return count, err
		}
		payload.ClientID = clientID

		id, err := repo.CreateStatement(ctx, payload)
		if err != nil {
			return count, fmt.Errorf("create statement from %s: %w", filepath.Base(path), err)
		}

		slog.InfoContext(ctx, "Seeded statement",
			"id", id,
			"file", filepath.Base(path),
			"card", payload.CardName,
			"transactions", len(payload.Transactions))
		count++
	}
	return count, nil
}

// loadSeedFile reads one statement file and converts it to a payload. The
// card folder name is the fallback card name when the file omits one.
func loadSeedFile(path, folderName string) (core.StatementPayload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.StatementPayload{}, fmt.Errorf("read %s: %w", path, err)
	}

	var file seedFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return core.StatementPayload{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if strings.TrimSpace(file.CardName) == "" {
		file.CardName = folderName
	}

	payload := core.StatementPayload{
		StatementPeriod: file.StatementPeriod,
		BankName:        file.BankName,
		CardName:        file.CardName,
		Transactions:    make([]core.TransactionInput, 0, len(file.BusinessExpenses)),
	}
	for _, e := range file.BusinessExpenses {
		payload.Transactions = append(payload.Transactions, core.TransactionInput{
			Date:          e.Date,
			Description:   e.Description,
			Amount:        e.Amount,
			Justification: e.Justification,
		})
	}

	payload.ApplyDefaults()
	if err := payload.Validate(); err != nil {
		return core.StatementPayload{}, fmt.Errorf("invalid statement in %s: %w", path, err)
	}
	return payload, nil
}
