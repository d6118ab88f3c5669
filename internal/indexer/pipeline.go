// Package indexer runs the tabular engine and the chunk index over one
// list of datasets, optionally mirroring the chunks into Qdrant.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/nyx"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
	"github.com/Iotic-Labs/nyx-sdk/internal/tabular"
	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

// Catalog lists the datasets a pipeline works on. *nyx.Client satisfies it.
type Catalog interface {
	MySubscriptions(ctx context.Context, filters nyx.SearchOptions) ([]*dataset.Dataset, error)
	MyData(ctx context.Context, filters nyx.SearchOptions) ([]*dataset.Dataset, error)
}

// Mirror receives a copy of the chunk index. *storage.QdrantMirror
// satisfies it.
type Mirror interface {
	ClearCollection(ctx context.Context) error
	UpsertChunks(ctx context.Context, chunks []*storage.Chunk) error
}

// RunResult contains statistics about one run.
type RunResult struct {
	TotalDatasets int
	Tables        []string
	Chunks        int
	Mirrored      int
	Skipped       []Skipped
	Duration      time.Duration
}

// Skipped is a dataset one of the stages left out.
type Skipped struct {
	Title  string
	Stage  string
	Reason string
}

// RunOptions control one run.
type RunOptions struct {
	// ChunkSize is the window size in words; 0 means the default.
	ChunkSize int
	// Supplement stores the chunk index as context tables in SQLite.
	Supplement bool
	// IfExists applies to supplementary tables and the manifest.
	IfExists storage.IfExists
}

// Pipeline orchestrates both engines over the same datasets.
type Pipeline struct {
	catalog Catalog
	engine  *tabular.Engine
	index   *vector.Index
	mirror  Mirror
	logger  *slog.Logger
}

// NewPipeline creates a pipeline. catalog is only needed by Subscribed and
// mirror may be nil.
func NewPipeline(catalog Catalog, engine *tabular.Engine, index *vector.Index, mirror Mirror, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		catalog: catalog,
		engine:  engine,
		index:   index,
		mirror:  mirror,
		logger:  logger.With("component", "indexer"),
	}
}

// Index is the pipeline's chunk index.
func (p *Pipeline) Index() *vector.Index {
	return p.index
}

// Store is the pipeline's SQLite store.
func (p *Pipeline) Store() *storage.SQLiteStore {
	return p.engine.Store()
}

// Subscribed lists the caller's subscriptions, followed by the caller's
// own datasets when includeOwn is set. A dataset in both lists appears
// once.
func (p *Pipeline) Subscribed(ctx context.Context, includeOwn bool) ([]*dataset.Dataset, error) {
	if p.catalog == nil {
		return nil, fmt.Errorf("%w: no catalog configured", nyx.ErrInvalidRequest)
	}
	datasets, err := p.catalog.MySubscriptions(ctx, nyx.SearchOptions{})
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if !includeOwn {
		return datasets, nil
	}

	own, err := p.catalog.MyData(ctx, nyx.SearchOptions{})
	if err != nil {
		return nil, fmt.Errorf("list own data: %w", err)
	}
	seen := make(map[string]bool, len(datasets))
	for _, d := range datasets {
		seen[d.Name()+"\x00"+d.URL()] = true
	}
	for _, d := range own {
		if !seen[d.Name()+"\x00"+d.URL()] {
			datasets = append(datasets, d)
		}
	}
	return datasets, nil
}

// Run builds the chunk index, ingests the tabular datasets and mirrors the
// index when a mirror is configured. Per-dataset failures are reported in
// the result; store and mirror failures return an error.
func (p *Pipeline) Run(ctx context.Context, datasets []*dataset.Dataset, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{TotalDatasets: len(datasets)}
	p.logger.Info("Starting run", "datasets", len(datasets))

	// 1. Chunk index
	if err := p.index.Build(ctx, datasets, opts.ChunkSize); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	result.Chunks = p.index.Len()
	for _, s := range p.index.Skipped() {
		result.Skipped = append(result.Skipped, Skipped{Title: s.Title, Stage: "index", Reason: s.Reason})
	}

	// 2. Tabular ingestion
	ingestOpts := tabular.Options{IfExists: opts.IfExists}
	if opts.Supplement {
		all := p.index.All()
		ingestOpts.Supplement = &all
	}
	var tabularSets []*dataset.Dataset
	for _, d := range datasets {
		if d.Format().Tabular() {
			tabularSets = append(tabularSets, d)
		}
	}
	ingested, err := p.engine.Ingest(ctx, tabularSets, ingestOpts)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	result.Tables = ingested.Tables
	for _, s := range ingested.Skipped {
		result.Skipped = append(result.Skipped, Skipped{Title: s.Title, Stage: "tabular", Reason: s.Reason})
	}

	// 3. Qdrant mirror
	if p.mirror != nil && p.index.Built() {
		n, err := p.mirrorIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("mirror: %w", err)
		}
		result.Mirrored = n
	}

	result.Duration = time.Since(start)
	p.logger.Info("Run complete",
		"tables", len(result.Tables),
		"chunks", result.Chunks,
		"mirrored", result.Mirrored,
		"skipped", len(result.Skipped),
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) mirrorIndex(ctx context.Context) (int, error) {
	if err := p.mirror.ClearCollection(ctx); err != nil {
		return 0, err
	}

	exported := p.index.Export()
	chunks := make([]*storage.Chunk, len(exported))
	for i, c := range exported {
		chunks[i] = &storage.Chunk{
			ID:          uuid.New().String(),
			ChunkIndex:  c.Position,
			Content:     c.Content,
			Title:       c.Metadata.Title,
			URL:         c.Metadata.URL,
			Description: c.Metadata.Description,
			Indices:     c.Indices,
			Values:      c.Values,
		}
	}
	if err := p.mirror.UpsertChunks(ctx, chunks); err != nil {
		return 0, err
	}
	p.logger.Debug("Mirrored index", "chunks", len(chunks))
	return len(chunks), nil
}
