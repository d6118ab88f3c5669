// Package app builds the SDK components a binary needs from a resolved
// configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/Iotic-Labs/nyx-sdk/internal/config"
	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/github"
	"github.com/Iotic-Labs/nyx-sdk/internal/indexer"
	"github.com/Iotic-Labs/nyx-sdk/internal/llm"
	"github.com/Iotic-Labs/nyx-sdk/internal/nyx"
	"github.com/Iotic-Labs/nyx-sdk/internal/objectstore"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
	"github.com/Iotic-Labs/nyx-sdk/internal/tabular"
	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

// NewLogger returns a text logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewFetcher chains the content fetchers: the object store when an
// endpoint is configured, then GitHub, then plain HTTP.
func NewFetcher(cfg *config.Config, logger *slog.Logger) (dataset.Chain, error) {
	var chain dataset.Chain

	if cfg.S3Endpoint != "" {
		s3, err := objectstore.NewFetcher(objectstore.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Secure:    cfg.S3Secure,
			Region:    cfg.S3Region,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("object store: %w", err)
		}
		chain = append(chain, s3)
	}

	gh, err := github.NewClient(github.Options{Token: cfg.GitHubToken})
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	chain = append(chain, github.NewFetcher(gh, logger), dataset.NewHTTPFetcher(nil))
	return chain, nil
}

// NewClient validates the credentials and builds a portal client whose
// datasets download through NewFetcher's chain.
func NewClient(cfg *config.Config, logger *slog.Logger) (*nyx.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fetcher, err := NewFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}
	return nyx.NewClient(nyx.Config{
		URL:                cfg.URL,
		Email:              cfg.Email,
		Password:           cfg.Password,
		Token:              cfg.Token,
		Org:                cfg.Org,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: !cfg.VerifySSL,
	},
		nyx.WithLogger(logger),
		nyx.WithFetcher(fetcher),
		nyx.WithRateLimit(rate.Limit(cfg.RateLimit), 1),
	), nil
}

// OpenMirror connects to Qdrant and makes sure the chunk collection exists.
func OpenMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.QdrantMirror, error) {
	host := cfg.QdrantHost
	if host == "" {
		host = "localhost"
	}
	mirror, err := storage.NewQdrantMirror(ctx, storage.QdrantConfig{
		Host:   host,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantTLS,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := mirror.EnsureCollection(ctx); err != nil {
		mirror.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return mirror, nil
}

// NewAnswerer builds the chat client for the configured provider.
func NewAnswerer(cfg *config.Config, logger *slog.Logger) (*llm.Answerer, error) {
	provider, err := llm.ParseProvider(cfg.LLMProvider)
	if err != nil {
		return nil, err
	}
	pc, err := llm.NewProviderConfig(provider, cfg.LLMKey())
	if err != nil {
		return nil, err
	}
	if cfg.LLMModel != "" {
		pc.Model = cfg.LLMModel
	}
	return llm.NewAnswerer(pc, logger)
}

// NewPipeline opens the SQLite store at path, in memory when empty, and
// returns a pipeline over it. The caller closes the store. mirror may be
// nil.
func NewPipeline(catalog indexer.Catalog, path string, mirror indexer.Mirror, logger *slog.Logger) (*indexer.Pipeline, error) {
	store, err := storage.OpenSQLite(path, logger)
	if err != nil {
		return nil, err
	}
	return indexer.NewPipeline(catalog, tabular.NewEngine(store, logger), vector.NewIndex(logger), mirror, logger), nil
}
