package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ldelange/invitation/internal/config"
	"github.com/ldelange/invitation/internal/server"
	"github.com/ldelange/invitation/internal/service"
	"github.com/ldelange/invitation/internal/session"
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

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "backend", cfg.Storage)

	sessions := session.NewManager(cfg.SessionTTL)
	rsvp := service.NewRSVPService(store, cfg.NotifyTo, cfg.ReplyTo)

	srv := server.New(store, sessions, rsvp, cfg.StaticPath)

	// h2c keeps HTTP/2 available behind plain-HTTP ingress.
	handler := h2c.NewHandler(srv.Handler(), &http2.Server{})

	slog.Info("Invitation server starting", "address", cfg.Addr, "url", fmt.Sprintf("http://localhost%s", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
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
