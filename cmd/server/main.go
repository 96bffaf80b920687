// quotechat - realtime chat and notification server for the quote marketplace
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

	"github.com/ashureev/quotechat/internal/api"
	"github.com/ashureev/quotechat/internal/config"
	"github.com/ashureev/quotechat/internal/identity"
	"github.com/ashureev/quotechat/internal/middleware"
	"github.com/ashureev/quotechat/internal/realtime"
	"github.com/ashureev/quotechat/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize the realtime core.
	registry := realtime.NewRegistry(logger)
	broadcaster := realtime.NewBroadcaster(registry, logger)
	gateway := realtime.NewGateway(repo, cfg.Chat.PersistTimeout, logger)

	var authorizer realtime.Authorizer = realtime.AllowAll{}
	if cfg.Chat.AuthorizeJoin {
		authorizer = realtime.NewStoreAuthorizer(repo, cfg.Chat.PersistTimeout)
		slog.Info("Join authorization enabled")
	}
	limiter := realtime.NewRateLimiter(cfg.RateLimit.MessagesPerWindow, cfg.RateLimit.WindowDuration)

	hub := realtime.NewHub(registry, broadcaster, gateway, authorizer, limiter, logger)
	defer hub.Close()

	connOpts := realtime.ConnectionOptions{
		SendBuffer:   cfg.Chat.SendBuffer,
		WriteTimeout: cfg.Chat.WriteTimeout,
		PingInterval: cfg.Chat.PingInterval,
		Logger:       logger,
	}
	wsHandler := realtime.NewWebSocketHandler(hub, realtime.WebSocketConfig{
		AllowedOrigins: cfg.Chat.AllowedOrigins,
		IsDev:          cfg.IsDevelopment(),
		MaxFrameBytes:  cfg.Chat.MaxFrameBytes,
		Connection:     connOpts,
	})
	sseOpts := connOpts
	sseOpts.PingInterval = cfg.SSE.KeepaliveInterval
	sseHandler := realtime.NewSSEHandler(hub, sseOpts, cfg.SSE.RetryDelay)

	// Initialize handlers.
	chatHandler := api.NewChatHandler(api.NewHandler(repo, hub), cfg.Chat.HistoryLimit)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.Chat.AllowedOrigins))
	r.Use(middleware.Metrics)
	r.Use(identity.Middleware())

	r.Handle("/metrics", promhttp.Handler())
	chatHandler.RegisterRoutes(r)

	// Realtime endpoints.
	r.Get("/ws/chat", wsHandler.ServeHTTP)
	r.Get("/api/events/stream", sseHandler.ServeHTTP)

	// Note: WebSocket and SSE connections are long-lived, so there is no
	// server WriteTimeout; per-frame write deadlines apply instead.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Close live connections first; Shutdown does not wait for hijacked ones.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
