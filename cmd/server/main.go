package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/auth"
	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/chat"
	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/server"
	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run owns the whole lifecycle so deferred cleanup executes before exit and
// the entry point stays testable.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded, using system environment", "error", err)
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	db, err := badger.Open(badger.DefaultOptions(cfg.DataDir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("database close failed", "error", err)
		}
	}()

	messages := store.NewMessageStore(db, log)
	users := store.NewUserStore(db)
	catalog := chat.NewCatalog(cfg.Rooms)

	hub := server.NewHub(log)
	router := chat.NewRouter(catalog, messages, hub, log)

	go hub.Run()
	log.Info("hub started", "rooms", catalog.Rooms())

	handler := server.NewHandler(hub, router, cfg, log)
	authHandler := auth.NewHandler(users, log)
	history := server.NewHistoryHandler(messages, catalog, log)
	routes := server.SetupRoutes(handler, authHandler, history, cfg)

	srv := server.CreateServer(cfg.Port, routes)
	log.Info("server listening", "addr", cfg.Port)

	if err := server.Serve(ctx, srv, cfg.ShutdownTimeout); err != nil {
		return err
	}
	return hub.Shutdown(cfg.ShutdownTimeout)
}
