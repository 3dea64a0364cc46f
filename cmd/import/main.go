package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/ldelange/invitation/internal/config"
	"github.com/ldelange/invitation/internal/importer"
	"github.com/ldelange/invitation/internal/storage"
	"github.com/ldelange/invitation/internal/storage/mongo"
	"github.com/ldelange/invitation/internal/storage/sqlite"
	"github.com/ldelange/invitation/pkg/logging"
)

func main() {
	logging.Setup()

	csvPath := flag.String("csv", "", "path to the guest list CSV")
	flag.Parse()
	if *csvPath == "" {
		slog.Error("Usage: import -csv <guests.csv>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	f, err := os.Open(*csvPath)
	if err != nil {
		slog.Error("Failed to open CSV", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	count, err := importer.New(store, slog.Default()).Run(context.Background(), f)
	if err != nil {
		slog.Error("Import failed", "imported", count, "error", err)
		os.Exit(1)
	}
	slog.Info("Guests imported", "count", count, "backend", cfg.Storage)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return mongo.New(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return sqlite.New(cfg.DBPath)
	}
}
