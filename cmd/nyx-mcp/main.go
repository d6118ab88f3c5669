// Package main provides the MCP server entry point for Nyx subscriptions.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iotic-Labs/nyx-sdk/internal/app"
	"github.com/Iotic-Labs/nyx-sdk/internal/config"
	"github.com/Iotic-Labs/nyx-sdk/internal/indexer"
	mcpserver "github.com/Iotic-Labs/nyx-sdk/internal/mcp"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
)

func main() {
	envFile := flag.String("env", "", "path to a .env file (default: ./.env)")
	configFile := flag.String("config", "", "path to a .toml or .yaml config file")
	flag.Parse()

	cfg, err := config.Load(config.Options{EnvFile: *envFile, File: *configFile})
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client, err := app.NewClient(cfg, logger)
	if err != nil {
		return err
	}

	// The Qdrant mirror is optional; without it queries run in memory.
	var (
		mirror      indexer.Mirror
		chunkSearch mcpserver.ChunkSearcher
	)
	if cfg.QdrantHost != "" {
		qs, err := app.OpenMirror(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer qs.Close()
		mirror, chunkSearch = qs, qs
	}

	pipeline, err := app.NewPipeline(client, cfg.SQLiteFile, mirror, logger)
	if err != nil {
		return err
	}
	defer pipeline.Store().Close()

	datasets, err := pipeline.Subscribed(ctx, true)
	if err != nil {
		return err
	}
	if _, err := pipeline.Run(ctx, datasets, indexer.RunOptions{ChunkSize: cfg.ChunkSize, IfExists: storage.Replace}); err != nil {
		return err
	}

	serverCfg := &mcpserver.Config{
		Catalog: client,
		Index:   pipeline.Index(),
		Store:   pipeline.Store(),
		Mirror:  chunkSearch,
		Logger:  logger,
	}
	if cfg.LLMKey() != "" {
		answerer, err := app.NewAnswerer(cfg, logger)
		if err != nil {
			return err
		}
		serverCfg.Answerer = answerer
	}
	server := mcpserver.NewServer(serverCfg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           mcpserver.NewMux(server, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	// Check if running in server mode (HTTP) or stdio mode (local clients)
	if os.Getenv("SERVER_MODE") == "true" {
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	// Stdio mode still serves the health endpoint for local testing.
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting Nyx MCP server (stdio mode)")
	return server.Run(ctx)
}
