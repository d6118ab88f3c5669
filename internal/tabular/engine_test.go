package tabular

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := storage.OpenSQLite("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, nil)
}

func withContent(t *testing.T, title, contentType, content string) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(dataset.Fields{
		Title:       title,
		Description: title + " description",
		Org:         "acme",
		ContentType: contentType,
		DownloadURL: "https://host/" + title,
	})
	require.NoError(t, err)
	return d.WithContent([]byte(content))
}

func count(t *testing.T, store *storage.SQLiteStore, table string) int64 {
	t.Helper()
	rs, err := store.Query(context.Background(), "SELECT COUNT(*) FROM "+table)
	require.NoError(t, err)
	return rs.Rows[0][0].(int64)
}

func TestIngest_ExampleScenario(t *testing.T) {
	e := newEngine(t)
	datasets := []*dataset.Dataset{
		withContent(t, "Sales", "csv", "id,amt\n1,10\n2,20"),
		withContent(t, "Notes", "text", "alpha beta gamma delta"),
	}

	result, err := e.Ingest(context.Background(), datasets, Options{})
	require.NoError(t, err)

	assert.Same(t, e.Store(), result.Store)
	assert.Equal(t, []string{"sales"}, result.Tables)
	assert.Equal(t, int64(2), count(t, result.Store, "sales"))

	want := []storage.ManifestRow{{
		FileTitle:   "Sales",
		URL:         "https://host/Sales",
		TableName:   "sales",
		Description: "Sales description",
	}}
	assert.Equal(t, want, result.Manifest)
	manifest, err := result.Store.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, manifest)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "Notes", result.Skipped[0].Title)
	assert.Contains(t, result.Skipped[0].Reason, ErrUnsupportedContentType.Error())

	rs, err := result.Store.Query(context.Background(), "SELECT id, amt FROM sales ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), int64(10)}, {int64(2), int64(20)}}, rs.Rows)
}

func TestIngest_ReplaceIsIdempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	datasets := []*dataset.Dataset{withContent(t, "Weather Data", "text/csv", "city,temp\nLeeds,11.5\nYork,9")}

	for range 2 {
		_, err := e.Ingest(ctx, datasets, Options{})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2), count(t, e.Store(), "weather_data"))
	assert.Equal(t, int64(1), count(t, e.Store(), storage.ManifestTable))
}

func TestIngest_PartialFailure(t *testing.T) {
	e := newEngine(t)
	unreachable, err := dataset.New(dataset.Fields{
		Title:       "Gone",
		Org:         "acme",
		ContentType: "csv",
		DownloadURL: "https://host/gone",
		Fetcher:     failingFetcher{},
	})
	require.NoError(t, err)

	datasets := []*dataset.Dataset{
		withContent(t, "First", "csv", "a,b\n1,2"),
		unreachable,
		withContent(t, "Broken", "application/json", `{"a":`),
		withContent(t, "Second", "json", `[{"a":1},{"a":2}]`),
	}

	result, err := e.Ingest(context.Background(), datasets, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, result.Tables)
	assert.Len(t, result.Manifest, 2)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "Gone", result.Skipped[0].Title)
	assert.Equal(t, "https://host/gone", result.Skipped[0].URL)
	assert.Equal(t, "Broken", result.Skipped[1].Title)

	tables, err := e.Store().Tables(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first", "second", storage.ManifestTable}, tables)
}

func TestIngest_ReservedTitlesAreSkipped(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	result, err := e.Ingest(ctx, []*dataset.Dataset{
		withContent(t, "sqlite stats", "csv", "a\n1"),
		withContent(t, "Nyx Subscriptions", "csv", "a\n1\n2\n3"),
		withContent(t, "Sales", "csv", "id,amt\n1,10"),
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"sales"}, result.Tables)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "sqlite stats", result.Skipped[0].Title)
	assert.Equal(t, "Nyx Subscriptions", result.Skipped[1].Title)

	manifest, err := e.Store().Manifest(ctx)
	require.NoError(t, err)
	require.Len(t, manifest, 1)
	assert.Equal(t, "sales", manifest[0].TableName)
	assert.Equal(t, int64(1), count(t, e.Store(), "sales"))
}

func TestIngest_ReservedSupplementTitleIsSkipped(t *testing.T) {
	e := newEngine(t)
	meta := vector.Metadata{Title: "nyx_subscriptions", URL: "https://host/n"}
	chunks := &vector.Result{
		Chunks:       []string{"one", "two"},
		Metadata:     []vector.Metadata{meta, meta},
		Similarities: []float64{0, 0},
		Success:      true,
	}

	result, err := e.Ingest(context.Background(), []*dataset.Dataset{withContent(t, "Sales", "csv", "id\n1")}, Options{Supplement: chunks})
	require.NoError(t, err)

	assert.Equal(t, []string{"sales"}, result.Tables)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, ErrReservedTableName.Error())
	assert.Equal(t, int64(1), count(t, e.Store(), storage.ManifestTable))
}

func TestIngest_NothingIngestedWritesNoManifest(t *testing.T) {
	e := newEngine(t)

	result, err := e.Ingest(context.Background(), []*dataset.Dataset{
		withContent(t, "Notes", "text/plain", "hello"),
	}, Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Manifest)

	tables, err := e.Store().Tables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func supplement() *vector.Result {
	meta := vector.Metadata{Title: "Field Notes", URL: "https://host/notes", Description: "notes"}
	return &vector.Result{
		Chunks:       []string{"alpha beta", "gamma delta"},
		Metadata:     []vector.Metadata{meta, meta},
		Similarities: []float64{0, 0},
		Success:      true,
	}
}

func TestIngest_Supplement(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	result, err := e.Ingest(ctx, []*dataset.Dataset{withContent(t, "Sales", "csv", "id\n1")}, Options{Supplement: supplement()})
	require.NoError(t, err)

	assert.Equal(t, []string{"sales", "field_notes"}, result.Tables)
	require.Len(t, result.Manifest, 2)
	assert.Equal(t, storage.ManifestRow{
		FileTitle:   "Field Notes",
		URL:         "https://host/notes",
		TableName:   "field_notes",
		Description: "notes",
	}, result.Manifest[1])

	rs, err := e.Store().Query(ctx, "SELECT context, title, url FROM field_notes ORDER BY rowid")
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"alpha beta", "Field Notes", "https://host/notes"},
		{"gamma delta", "Field Notes", "https://host/notes"},
	}, rs.Rows)
}

func TestIngest_UnbuiltSupplementIsIgnored(t *testing.T) {
	e := newEngine(t)

	result, err := e.Ingest(context.Background(), nil, Options{
		Supplement: &vector.Result{Message: vector.MessageNotBuilt},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Tables)
}

func TestIngest_IfExists(t *testing.T) {
	ctx := context.Background()
	datasets := func() []*dataset.Dataset {
		return []*dataset.Dataset{withContent(t, "Sales", "csv", "id\n1")}
	}

	t.Run("append", func(t *testing.T) {
		e := newEngine(t)
		for range 2 {
			_, err := e.Ingest(ctx, datasets(), Options{Supplement: supplement(), IfExists: storage.Append})
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1), count(t, e.Store(), "sales"))
		assert.Equal(t, int64(4), count(t, e.Store(), "field_notes"))
		assert.Equal(t, int64(4), count(t, e.Store(), storage.ManifestTable))
	})

	t.Run("fail", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.Ingest(ctx, datasets(), Options{Supplement: supplement(), IfExists: storage.Fail})
		require.NoError(t, err)

		_, err = e.Ingest(ctx, datasets(), Options{Supplement: supplement(), IfExists: storage.Fail})
		assert.ErrorIs(t, err, storage.ErrTableExists)
	})
}

func TestIngest_ClosedStoreFails(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Store().Close())

	_, err := e.Ingest(context.Background(), []*dataset.Dataset{withContent(t, "Sales", "csv", "id\n1")}, Options{})
	assert.Error(t, err)
}
