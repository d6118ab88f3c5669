package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/llm"
	"github.com/Iotic-Labs/nyx-sdk/internal/nyx"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

const (
	defaultMaxResults = 20
	defaultK          = 5
)

// Searcher runs catalog searches. *nyx.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, opts nyx.SearchOptions) ([]*dataset.Dataset, error)
}

// lockedSearcher serialises catalog calls. A *nyx.Client refreshes its
// session and runs setup in place, so concurrent tool calls must not share
// it unguarded.
type lockedSearcher struct {
	mu      sync.Mutex
	catalog Searcher
}

func (s *lockedSearcher) Search(ctx context.Context, opts nyx.SearchOptions) ([]*dataset.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Search(ctx, opts)
}

// ChunkSearcher is the Qdrant mirror of the chunk index.
// *storage.QdrantMirror satisfies it.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, indices []uint32, values []float32, limit int, title string) ([]*storage.ScoredChunk, error)
	GetCollectionInfo(ctx context.Context) (*storage.CollectionInfo, error)
	Health(ctx context.Context) error
}

// Answerer answers questions over retrieved context. *llm.Answerer
// satisfies it.
type Answerer interface {
	Ask(ctx context.Context, question string, chunks vector.Result, manifest []storage.ManifestRow) (*llm.Answer, error)
}

// makeSearchHandler creates the search_datasets tool handler.
func makeSearchHandler(catalog Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchDatasetsInput,
) (*mcp.CallToolResult, SearchDatasetsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDatasetsInput) (
		*mcp.CallToolResult, SearchDatasetsOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}

		datasets, err := catalog.Search(ctx, nyx.SearchOptions{
			Text:         input.Text,
			Categories:   input.Categories,
			Genre:        input.Genre,
			Creator:      input.Creator,
			License:      input.License,
			ContentType:  input.ContentType,
			Subscription: nyx.SubscriptionState(input.Subscription),
			LocalOnly:    input.LocalOnly,
		})
		if err != nil {
			return nil, SearchDatasetsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(datasets) > maxResults {
			datasets = datasets[:maxResults]
		}
		results := make([]DatasetSummary, 0, len(datasets))
		for _, d := range datasets {
			categories := d.Categories()
			if categories == nil {
				categories = []string{} // Ensure non-nil for JSON marshaling
			}
			results = append(results, DatasetSummary{
				Name:        d.Name(),
				Title:       d.Title(),
				Description: d.Description(),
				Creator:     d.Creator(),
				ContentType: d.ContentType(),
				Size:        d.Size(),
				Categories:  categories,
				URL:         d.URL(),
			})
		}

		if len(results) == 0 {
			return nil, SearchDatasetsOutput{
				Results: []DatasetSummary{},
				Message: "No matching datasets found. Try broader search terms.",
			}, nil
		}
		return nil, SearchDatasetsOutput{Results: results}, nil
	}
}

// makeQueryHandler creates the query_chunks tool handler. With a mirror
// configured the search runs in Qdrant, otherwise against the in-memory
// index.
func makeQueryHandler(index *vector.Index, mirror ChunkSearcher) func(
	context.Context, *mcp.CallToolRequest, QueryChunksInput,
) (*mcp.CallToolResult, QueryChunksOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input QueryChunksInput) (
		*mcp.CallToolResult, QueryChunksOutput, error,
	) {
		k := input.K
		if k <= 0 {
			k = defaultK
		}
		if !index.Built() {
			return nil, QueryChunksOutput{Matches: []ChunkMatch{}, Message: vector.MessageNotBuilt}, nil
		}

		if mirror != nil {
			indices, values, _ := index.Vectorize(input.Query)
			hits, err := mirror.SearchChunks(ctx, indices, values, k, input.Title)
			if err != nil {
				return nil, QueryChunksOutput{}, fmt.Errorf("search failed: %w", err)
			}
			matches := make([]ChunkMatch, 0, len(hits))
			for _, h := range hits {
				matches = append(matches, ChunkMatch{
					Content:     h.Chunk.Content,
					Title:       h.Chunk.Title,
					URL:         h.Chunk.URL,
					Description: h.Chunk.Description,
					Similarity:  h.Score,
				})
			}
			return nil, QueryChunksOutput{Matches: matches}, nil
		}

		limit := k
		if input.Title != "" {
			limit = index.Len()
		}
		result := index.Query(input.Query, limit)
		matches := make([]ChunkMatch, 0, k)
		for i, c := range result.Chunks {
			m := result.Metadata[i]
			if input.Title != "" && m.Title != input.Title {
				continue
			}
			matches = append(matches, ChunkMatch{
				Content:     c,
				Title:       m.Title,
				URL:         m.URL,
				Description: m.Description,
				Similarity:  result.Similarities[i],
			})
			if len(matches) == k {
				break
			}
		}
		return nil, QueryChunksOutput{Matches: matches}, nil
	}
}

// makeListHandler creates the list_subscriptions tool handler.
func makeListHandler(store *storage.SQLiteStore) func(
	context.Context, *mcp.CallToolRequest, ListSubscriptionsInput,
) (*mcp.CallToolResult, ListSubscriptionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListSubscriptionsInput) (
		*mcp.CallToolResult, ListSubscriptionsOutput, error,
	) {
		rows, err := store.Manifest(ctx)
		if err != nil {
			return nil, ListSubscriptionsOutput{}, fmt.Errorf("failed to read manifest: %w", err)
		}

		subs := make([]Subscription, 0, len(rows))
		for _, r := range rows {
			subs = append(subs, Subscription{
				Title:       r.FileTitle,
				URL:         r.URL,
				Table:       r.TableName,
				Description: r.Description,
			})
		}
		return nil, ListSubscriptionsOutput{Subscriptions: subs, Count: len(subs)}, nil
	}
}

// makeSQLHandler creates the sql_query tool handler. Only read-only
// statements are accepted.
func makeSQLHandler(store *storage.SQLiteStore) func(
	context.Context, *mcp.CallToolRequest, SQLQueryInput,
) (*mcp.CallToolResult, SQLQueryOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SQLQueryInput) (
		*mcp.CallToolResult, SQLQueryOutput, error,
	) {
		rs, err := store.Query(ctx, input.Query)
		if err != nil {
			return nil, SQLQueryOutput{}, fmt.Errorf("query failed: %w", err)
		}
		rows := rs.Rows
		if rows == nil {
			rows = [][]any{}
		}
		return nil, SQLQueryOutput{Columns: rs.Columns, Rows: rows, RowCount: len(rows)}, nil
	}
}

// makeAskHandler creates the ask tool handler.
func makeAskHandler(index *vector.Index, store *storage.SQLiteStore, answerer Answerer) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		if strings.TrimSpace(input.Question) == "" {
			return nil, AskOutput{}, fmt.Errorf("question is required")
		}
		k := input.K
		if k <= 0 {
			k = defaultK
		}

		manifest, err := store.Manifest(ctx)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("failed to read manifest: %w", err)
		}
		answer, err := answerer.Ask(ctx, input.Question, index.Query(input.Question, k), manifest)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("ask failed: %w", err)
		}

		sources := make([]Source, 0, len(answer.Sources))
		for _, s := range answer.Sources {
			sources = append(sources, Source{Title: s.Title, URL: s.URL})
		}
		return nil, AskOutput{Answer: answer.Text, Sources: sources}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(index *vector.Index, store *storage.SQLiteStore, mirror ChunkSearcher) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		tables, err := store.Tables(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("sqlite_error: failed to list tables: %w", err)
		}
		manifest, err := store.Manifest(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("sqlite_error: failed to read manifest: %w", err)
		}
		if tables == nil {
			tables = []string{}
		}

		out := StatusOutput{
			Tables:     tables,
			Datasets:   len(manifest),
			Chunks:     index.Len(),
			IndexBuilt: index.Built(),
		}

		// A mirror failure is not an error for the tool.
		if mirror != nil {
			if info, err := mirror.GetCollectionInfo(ctx); err == nil {
				out.MirrorCount = &info.PointsCount
			}
		}
		return nil, out, nil
	}
}
