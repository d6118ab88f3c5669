// Package tabular loads CSV, spreadsheet and JSON datasets into SQLite
// tables and records them in the subscriptions manifest.
package tabular

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

// Supplementary chunk tables have these columns, all TEXT.
var supplementColumns = []storage.Column{
	{Name: "context", Type: storage.AffinityText},
	{Name: "title", Type: storage.AffinityText},
	{Name: "url", Type: storage.AffinityText},
}

// Options control one ingestion run.
type Options struct {
	// Supplement is extra text context, usually the chunk index contents,
	// written as one table per source dataset.
	Supplement *vector.Result
	// IfExists applies to supplementary tables and the manifest. Data
	// tables are always replaced.
	IfExists storage.IfExists
}

// Skip records a dataset that was not ingested.
type Skip struct {
	Title  string
	URL    string
	Reason string
}

// Result summarises an ingestion run.
type Result struct {
	Store    *storage.SQLiteStore
	Tables   []string
	Manifest []storage.ManifestRow
	Skipped  []Skip
}

// Engine writes datasets into a SQLite store.
type Engine struct {
	store  *storage.SQLiteStore
	logger *slog.Logger
}

// NewEngine returns an engine writing to store. A nil logger uses
// slog.Default().
func NewEngine(store *storage.SQLiteStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		logger: logger.With("component", "tabular"),
	}
}

// Store returns the engine's SQLite store.
func (e *Engine) Store() *storage.SQLiteStore {
	return e.store
}

// Ingest loads every tabular dataset into its own table, named by the
// slugged title, and writes the manifest when anything was loaded. A
// dataset that cannot be fetched or parsed is skipped and reported in the
// result. Only failures of the store itself return an error.
func (e *Engine) Ingest(ctx context.Context, datasets []*dataset.Dataset, opts Options) (*Result, error) {
	result := &Result{Store: e.store}

	for _, d := range datasets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		table, dropped, err := e.load(ctx, d)
		if err != nil {
			e.logger.Warn("Skipping dataset", "title", d.Title(), "content_type", d.ContentType(), "error", err)
			result.Skipped = append(result.Skipped, Skip{Title: d.Title(), URL: d.URL(), Reason: err.Error()})
			continue
		}
		if dropped > 0 {
			e.logger.Warn("Dropped malformed rows", "title", d.Title(), "rows", dropped)
		}

		if err := e.store.ReplaceTable(ctx, table); err != nil {
			if fatal := e.storeFailure(ctx); fatal != nil {
				return result, fmt.Errorf("write %s: %w", table.Name, err)
			}
			e.logger.Warn("Skipping dataset", "title", d.Title(), "table", table.Name, "error", err)
			result.Skipped = append(result.Skipped, Skip{Title: d.Title(), URL: d.URL(), Reason: err.Error()})
			continue
		}
		result.Tables = append(result.Tables, table.Name)
		result.Manifest = append(result.Manifest, storage.ManifestRow{
			FileTitle:   d.Title(),
			URL:         d.URL(),
			TableName:   table.Name,
			Description: d.Description(),
		})
		e.logger.Info("Ingested dataset", "title", d.Title(), "table", table.Name, "rows", len(table.Rows))
	}

	if opts.Supplement != nil && opts.Supplement.Success && opts.Supplement.Len() > 0 {
		if err := e.supplement(ctx, opts.Supplement, opts.IfExists, result); err != nil {
			return result, err
		}
	}

	if len(result.Manifest) == 0 {
		e.logger.Info("Nothing ingested, manifest not written", "skipped", len(result.Skipped))
		return result, nil
	}
	if err := e.store.WriteManifest(ctx, result.Manifest, opts.IfExists); err != nil {
		return result, fmt.Errorf("write manifest: %w", err)
	}
	e.logger.Info("Ingestion complete", "tables", len(result.Tables), "skipped", len(result.Skipped))
	return result, nil
}

func (e *Engine) load(ctx context.Context, d *dataset.Dataset) (storage.Table, int, error) {
	format := d.Format()
	if !format.Tabular() {
		return storage.Table{}, 0, fmt.Errorf("%w: %s", ErrUnsupportedContentType, d.ContentType())
	}
	name, err := tableName(d.Title())
	if err != nil {
		return storage.Table{}, 0, err
	}
	b, err := d.Bytes(ctx)
	if err != nil {
		return storage.Table{}, 0, err
	}
	f, err := parse(format, b)
	if err != nil {
		return storage.Table{}, 0, fmt.Errorf("parse %s: %w", format, err)
	}
	table, err := buildTable(name, f)
	if err != nil {
		return storage.Table{}, 0, err
	}
	return table, f.dropped, nil
}

// storeFailure returns the store-level cause of a failed write: a done
// context or a database that no longer answers. Nil means the dataset was
// at fault.
func (e *Engine) storeFailure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.Ping(ctx)
}

// supplement writes the chunks of each source dataset as one table and
// adds one manifest row per table.
func (e *Engine) supplement(ctx context.Context, chunks *vector.Result, mode storage.IfExists, result *Result) error {
	var order []string
	tables := make(map[string]*storage.Table)
	rows := make(map[string]storage.ManifestRow)
	rejected := make(map[string]struct{})

	for i, text := range chunks.Chunks {
		meta := chunks.Metadata[i]
		name, err := tableName(meta.Title)
		if err != nil {
			if _, seen := rejected[meta.Title]; !seen {
				rejected[meta.Title] = struct{}{}
				e.logger.Warn("Skipping supplementary context", "title", meta.Title, "error", err)
				result.Skipped = append(result.Skipped, Skip{Title: meta.Title, URL: meta.URL, Reason: err.Error()})
			}
			continue
		}
		t, ok := tables[name]
		if !ok {
			t = &storage.Table{Name: name, Columns: supplementColumns}
			tables[name] = t
			order = append(order, name)
			rows[name] = storage.ManifestRow{
				FileTitle:   meta.Title,
				URL:         meta.URL,
				TableName:   name,
				Description: meta.Description,
			}
		}
		t.Rows = append(t.Rows, []any{text, meta.Title, meta.URL})
	}

	for _, name := range order {
		if err := e.store.WriteTable(ctx, *tables[name], mode); err != nil {
			return fmt.Errorf("write supplement %s: %w", name, err)
		}
		result.Tables = append(result.Tables, name)
		result.Manifest = append(result.Manifest, rows[name])
	}
	e.logger.Info("Wrote supplementary context", "tables", len(order), "chunks", chunks.Len())
	return nil
}
