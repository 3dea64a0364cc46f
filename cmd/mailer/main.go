package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ldelange/invitation/internal/config"
	"github.com/ldelange/invitation/internal/mailer"
	"github.com/ldelange/invitation/internal/storage"
	"github.com/ldelange/invitation/internal/storage/mongo"
	"github.com/ldelange/invitation/internal/storage/sqlite"
	"github.com/ldelange/invitation/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.SMTP.Host == "" || cfg.SMTP.From == "" {
		slog.Error("SMTP host and from address are required")
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "backend", cfg.Storage)

	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Secure:   cfg.SMTP.Secure,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	d := mailer.NewDispatcher(store, sender, slog.Default())
	d.PollInterval = cfg.MailPollInterval

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Mail dispatcher starting", "poll_interval", cfg.MailPollInterval)
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Dispatcher failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Mail dispatcher stopped")
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
