//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStorage connects to a local Qdrant with an empty test
// collection. Skips test if Qdrant is not running.
func setupTestStorage(t *testing.T) *QdrantMirror {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	storage, err := NewQdrantMirror(ctx, QdrantConfig{Host: "localhost", Port: 6334, Collection: "nyx_chunks_test"}, nil)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = storage.ClearCollection(context.Background())
	require.NoError(t, err, "Failed to reset collection")

	return storage
}

func testChunk(index int, title string, indices []uint32, values []float32) *Chunk {
	return &Chunk{
		ID:          uuid.New().String(),
		ChunkIndex:  index,
		Content:     "chunk content",
		Title:       title,
		URL:         "https://host/" + title,
		Description: title + " description",
		Indices:     indices,
		Values:      values,
	}
}

func TestChunkSearchRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	ctx := context.Background()

	chunks := []*Chunk{
		testChunk(0, "notes", []uint32{0, 1}, []float32{0.8, 0.6}),
		testChunk(1, "notes", []uint32{2, 3}, []float32{0.6, 0.8}),
	}
	require.NoError(t, storage.UpsertChunks(ctx, chunks))

	results, err := storage.SearchChunks(ctx, []uint32{2, 3}, []float32{0.6, 0.8}, 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	top := results[0]
	assert.Equal(t, chunks[1].ID, top.Chunk.ID)
	assert.Equal(t, 1, top.Chunk.ChunkIndex)
	assert.Equal(t, "notes", top.Chunk.Title)
	assert.Equal(t, "https://host/notes", top.Chunk.URL)
	assert.Equal(t, "notes description", top.Chunk.Description)
	assert.GreaterOrEqual(t, top.Score, results[1].Score)
}

func TestSearchChunks_TitleFilter(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	ctx := context.Background()

	require.NoError(t, storage.UpsertChunks(ctx, []*Chunk{
		testChunk(0, "notes", []uint32{0}, []float32{1}),
		testChunk(1, "report", []uint32{0}, []float32{1}),
	}))

	results, err := storage.SearchChunks(ctx, []uint32{0}, []float32{1}, 10, "report")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "report", results[0].Chunk.Title)
}

func TestBatchChunkUpsert(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	ctx := context.Background()

	chunks := make([]*Chunk, 250)
	for i := range chunks {
		chunks[i] = testChunk(i, "bulk", []uint32{uint32(i)}, []float32{1})
	}
	require.NoError(t, storage.UpsertChunks(ctx, chunks))

	info, err := storage.GetCollectionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), info.PointsCount)
}

func TestSparseMismatch(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	err := storage.UpsertChunks(context.Background(), []*Chunk{
		testChunk(0, "bad", []uint32{0, 1}, []float32{1}),
	})
	assert.ErrorIs(t, err, ErrSparseMismatch)
}
