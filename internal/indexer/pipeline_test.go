package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/nyx"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
	"github.com/Iotic-Labs/nyx-sdk/internal/tabular"
	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

type fakeCatalog struct {
	subscribed []*dataset.Dataset
	own        []*dataset.Dataset
	err        error
}

func (c *fakeCatalog) MySubscriptions(context.Context, nyx.SearchOptions) ([]*dataset.Dataset, error) {
	return c.subscribed, c.err
}

func (c *fakeCatalog) MyData(context.Context, nyx.SearchOptions) ([]*dataset.Dataset, error) {
	return c.own, c.err
}

type fakeMirror struct {
	cleared int
	chunks  []*storage.Chunk
	err     error
}

func (m *fakeMirror) ClearCollection(context.Context) error {
	m.cleared++
	return nil
}

func (m *fakeMirror) UpsertChunks(_ context.Context, chunks []*storage.Chunk) error {
	m.chunks = append(m.chunks, chunks...)
	return m.err
}

func newPipeline(t *testing.T, catalog Catalog, mirror Mirror) *Pipeline {
	t.Helper()
	store, err := storage.OpenSQLite("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewPipeline(catalog, tabular.NewEngine(store, nil), vector.NewIndex(nil), mirror, nil)
}

func withContent(t *testing.T, name, title, contentType, content string) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(dataset.Fields{
		Name:        name,
		Title:       title,
		Description: title + " description",
		Org:         "acme",
		ContentType: contentType,
		DownloadURL: "https://host/" + title,
	})
	require.NoError(t, err)
	return d.WithContent([]byte(content))
}

func exampleDatasets(t *testing.T) []*dataset.Dataset {
	return []*dataset.Dataset{
		withContent(t, "sales", "Sales", "csv", "id,amt\n1,10\n2,20"),
		withContent(t, "notes", "Notes", "text", "alpha beta gamma delta"),
	}
}

func TestRun_ExampleScenario(t *testing.T) {
	mirror := &fakeMirror{}
	p := newPipeline(t, nil, mirror)
	ctx := context.Background()

	result, err := p.Run(ctx, exampleDatasets(t), RunOptions{ChunkSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalDatasets)
	assert.Equal(t, []string{"sales"}, result.Tables)
	assert.Equal(t, 2, result.Chunks)
	assert.Empty(t, result.Skipped)

	manifest, err := p.Store().Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []storage.ManifestRow{{
		FileTitle:   "Sales",
		URL:         "https://host/Sales",
		TableName:   "sales",
		Description: "Sales description",
	}}, manifest)

	all := p.Index().All()
	assert.Equal(t, []string{"alpha beta", "gamma delta"}, all.Chunks)
	assert.Equal(t, "Notes", all.Metadata[0].Title)

	assert.Equal(t, 1, mirror.cleared)
	assert.Equal(t, 2, result.Mirrored)
	require.Len(t, mirror.chunks, 2)
	assert.Equal(t, "gamma delta", mirror.chunks[1].Content)
	assert.Equal(t, 1, mirror.chunks[1].ChunkIndex)
	assert.NotEmpty(t, mirror.chunks[0].ID)
	assert.NotEqual(t, mirror.chunks[0].ID, mirror.chunks[1].ID)
}

func TestRun_Supplement(t *testing.T) {
	p := newPipeline(t, nil, nil)
	ctx := context.Background()

	result, err := p.Run(ctx, exampleDatasets(t), RunOptions{ChunkSize: 2, Supplement: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "notes"}, result.Tables)

	rs, err := p.Store().Query(ctx, "SELECT context FROM notes ORDER BY rowid")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"alpha beta"}, {"gamma delta"}}, rs.Rows)
}

func TestRun_MirrorFailure(t *testing.T) {
	p := newPipeline(t, nil, &fakeMirror{err: errors.New("qdrant down")})

	_, err := p.Run(context.Background(), exampleDatasets(t), RunOptions{ChunkSize: 2})
	assert.ErrorContains(t, err, "qdrant down")
}

func TestRun_ReportsSkips(t *testing.T) {
	p := newPipeline(t, nil, nil)
	datasets := []*dataset.Dataset{
		withContent(t, "bad", "Bad", "json", `{"a":`),
		withContent(t, "notes", "Notes", "text", "one two"),
	}

	result, err := p.Run(context.Background(), datasets, RunOptions{})
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, Skipped{Title: "Bad", Stage: "tabular", Reason: result.Skipped[0].Reason}, result.Skipped[0])
	assert.Empty(t, result.Tables)
}

func TestSubscribed(t *testing.T) {
	shared := withContent(t, "sales", "Sales", "csv", "")
	catalog := &fakeCatalog{
		subscribed: []*dataset.Dataset{shared},
		own:        []*dataset.Dataset{shared, withContent(t, "mine", "Mine", "text", "")},
	}
	p := newPipeline(t, catalog, nil)
	ctx := context.Background()

	datasets, err := p.Subscribed(ctx, false)
	require.NoError(t, err)
	assert.Len(t, datasets, 1)

	datasets, err = p.Subscribed(ctx, true)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, "Mine", datasets[1].Title())

	catalog.err = errors.New("unauthorized")
	_, err = p.Subscribed(ctx, false)
	assert.Error(t, err)
}

func TestSubscribed_NoCatalog(t *testing.T) {
	p := newPipeline(t, nil, nil)
	_, err := p.Subscribed(context.Background(), false)
	assert.ErrorIs(t, err, nyx.ErrInvalidRequest)
}
