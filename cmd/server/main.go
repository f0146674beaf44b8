// AI Tutor widget server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/textbook-tutor/internal/api"
	"github.com/ashureev/textbook-tutor/internal/backend"
	"github.com/ashureev/textbook-tutor/internal/config"
	"github.com/ashureev/textbook-tutor/internal/host"
	"github.com/ashureev/textbook-tutor/internal/identity"
	"github.com/ashureev/textbook-tutor/internal/middleware"
	"github.com/ashureev/textbook-tutor/internal/render"
	"github.com/ashureev/textbook-tutor/internal/store"
	"github.com/ashureev/textbook-tutor/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.Store.Backend)

	kv, err := store.Open(cfg.Store.Backend, cfg.Store.DBPath, cfg.Store.RedisURL)
	if err != nil {
		slog.Error("Failed to initialize profile store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			slog.Error("Failed to close profile store", "error", closeErr)
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = kv.Ping(pingCtx)
	pingCancel()
	if err != nil {
		slog.Error("Profile store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Profile store connected")

	client, err := backend.NewClient(backend.Config{
		BaseURL:        cfg.Backend.URL,
		Timeout:        cfg.Backend.Timeout,
		TargetLanguage: cfg.Backend.TargetLanguage,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize backend client", "error", err)
		os.Exit(1)
	}
	slog.Info("Backend client ready", "url", cfg.Backend.URL, "timeout", cfg.Backend.Timeout)

	sm := host.NewSessionManager()

	healthHandler := api.NewHealthHandler(kv, sm)
	wsHandler := host.NewWebSocketHandler(kv, sm, client, render.New(), cfg.FrontendURL, cfg.IsDevelopment(), logger)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)

	r.Get("/ws/widget", wsHandler.ServeHTTP)

	// Widget script and sample page.
	r.Handle("/*", web.AssetHandler())

	// WebSocket sessions are long-lived; no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Shutdown does not wait for hijacked connections.
	sm.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
