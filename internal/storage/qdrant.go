package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

const upsertBatchSize = 100

// Payload keys of a mirrored chunk.
const (
	fieldContent     = "content"
	fieldTitle       = "title"
	fieldURL         = "url"
	fieldDescription = "description"
	fieldPosition    = "chunk_index"
)

// QdrantConfig locates the Qdrant server.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// Collection defaults to CollectionName.
	Collection string
}

// QdrantMirror keeps a copy of the chunk index in Qdrant as sparse
// TF-IDF vectors.
type QdrantMirror struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewQdrantMirror connects to Qdrant and waits for it to answer a health
// check, retrying with backoff. ErrQdrantUnreachable is returned when it
// never does.
func NewQdrantMirror(ctx context.Context, cfg QdrantConfig, logger *slog.Logger) (*QdrantMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	collection := cfg.Collection
	if collection == "" {
		collection = CollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	m := &QdrantMirror{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "qdrant", "collection", collection),
	}
	if err := backoff.Retry(func() error {
		return m.Health(ctx)
	}, backoff.WithContext(newRetryBackOff(), ctx)); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s:%d: %v", ErrQdrantUnreachable, cfg.Host, cfg.Port, err)
	}
	return m, nil
}

// Initial interval 500ms, max interval 10s, max elapsed 30s.
func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Collection is the name of the mirrored collection.
func (m *QdrantMirror) Collection() string {
	return m.collection
}

// Health performs a single health check against Qdrant.
func (m *QdrantMirror) Health(ctx context.Context) error {
	reply, err := m.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if reply.GetTitle() == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection with one sparse vector named
// SparseVectorName and a keyword index on the title. Idempotent.
func (m *QdrantMirror) EnsureCollection(ctx context.Context) error {
	exists, err := m.client.CollectionExists(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: m.collection,
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			SparseVectorName: {},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = m.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: m.collection,
		FieldName:      fieldTitle,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", fieldTitle, err)
	}
	m.logger.Info("Created collection")
	return nil
}

// ClearCollection drops and recreates the collection. Vocabulary indices
// change with every index build, so old points are never reusable.
func (m *QdrantMirror) ClearCollection(ctx context.Context) error {
	exists, err := m.client.CollectionExists(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := m.client.DeleteCollection(ctx, m.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}
	return m.EnsureCollection(ctx)
}

// Close closes the Qdrant connection.
func (m *QdrantMirror) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// UpsertChunks stores chunks with their sparse vectors. Batches that fail
// are retried with backoff.
func (m *QdrantMirror) UpsertChunks(ctx context.Context, chunks []*Chunk) error {
	for i, c := range chunks {
		if len(c.Indices) != len(c.Values) {
			return fmt.Errorf("%w: chunk %d has %d indices and %d values",
				ErrSparseMismatch, i, len(c.Indices), len(c.Values))
		}
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, c := range chunks[start:end] {
			points = append(points, toPoint(c))
		}

		upsert := func() error {
			_, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: m.collection,
				Points:         points,
			})
			return err
		}
		if err := backoff.Retry(upsert, backoff.WithContext(newRetryBackOff(), ctx)); err != nil {
			return fmt.Errorf("failed to upsert chunks %d-%d: %w", start, end, err)
		}
		m.logger.Debug("Upserted batch", "from", start, "to", end)
	}
	return nil
}

func toPoint(c *Chunk) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: qdrant.NewIDUUID(c.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			SparseVectorName: qdrant.NewVectorSparse(c.Indices, c.Values),
		}),
		Payload: qdrant.NewValueMap(map[string]any{
			fieldPosition:    c.ChunkIndex,
			fieldContent:     c.Content,
			fieldTitle:       c.Title,
			fieldURL:         c.URL,
			fieldDescription: c.Description,
		}),
	}
}

// SearchChunks ranks stored chunks against a sparse query vector. A
// non-empty title restricts the search to one dataset. An empty query
// matches nothing.
func (m *QdrantMirror) SearchChunks(ctx context.Context, indices []uint32, values []float32, limit int, title string) ([]*ScoredChunk, error) {
	if len(indices) != len(values) {
		return nil, fmt.Errorf("%w: query has %d indices and %d values", ErrSparseMismatch, len(indices), len(values))
	}
	if limit <= 0 || len(indices) == 0 {
		return nil, nil
	}

	query := &qdrant.QueryPoints{
		CollectionName: m.collection,
		Query:          qdrant.NewQuerySparse(indices, values),
		Using:          qdrant.PtrOf(SparseVectorName),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if title != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldTitle, title)},
		}
	}

	points, err := m.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	scored := make([]*ScoredChunk, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		scored = append(scored, &ScoredChunk{
			Chunk: &Chunk{
				ID:          p.GetId().GetUuid(),
				ChunkIndex:  int(payload[fieldPosition].GetIntegerValue()),
				Content:     payload[fieldContent].GetStringValue(),
				Title:       payload[fieldTitle].GetStringValue(),
				URL:         payload[fieldURL].GetStringValue(),
				Description: payload[fieldDescription].GetStringValue(),
			},
			Score: float64(p.GetScore()),
		})
	}
	return scored, nil
}

// CollectionInfo holds collection statistics.
type CollectionInfo struct {
	PointsCount uint64
}

// GetCollectionInfo reports how many chunks the mirror holds.
func (m *QdrantMirror) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	info, err := m.client.GetCollectionInfo(ctx, m.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &CollectionInfo{PointsCount: info.GetPointsCount()}, nil
}
