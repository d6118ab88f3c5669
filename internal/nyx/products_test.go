package nyx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
)

func weatherRecord() dataset.Record {
	return dataset.Record{
		Name:        "weather",
		Title:       "Weather",
		Description: "Daily readings",
		AccessURL:   "https://host/access/weather",
		ContentType: "text/csv",
		Creator:     "acme/bob",
		Size:        42,
	}
}

func TestSearch_QueryParameters(t *testing.T) {
	portal := newFakePortal(t)
	var got *url.URL
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		got = r.URL
		writeJSON(w, []dataset.Record{weatherRecord()})
	}
	c := portal.client()

	results, err := c.Search(context.Background(), SearchOptions{
		Categories:  []string{"climate", "uk"},
		ContentType: "text/csv",
		LocalOnly:   true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, apiBasePath+endpointProducts, got.Path)
	q := got.Query()
	assert.Equal(t, "all", q.Get("include"))
	assert.Equal(t, "local", q.Get("scope"))
	assert.Equal(t, "10", q.Get("timeout"))
	assert.Equal(t, []string{"climate", "uk"}, q["category[]"])
	assert.Equal(t, "text/csv", q.Get("contentType"))
	assert.False(t, q.Has("text"))

	d := results[0]
	assert.Equal(t, "weather", d.Name())
	assert.Equal(t, "csv", d.ContentType())
	assert.Equal(t, int64(42), d.Size())
	assert.Equal(t, "https://host/access/weather?buyer_org=acme%2Falice", d.URL())
}

func TestSearch_TextUsesTextEndpoint(t *testing.T) {
	portal := newFakePortal(t)
	var got *url.URL
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		got = r.URL
		writeJSON(w, []dataset.Record{})
	}
	c := portal.client()

	_, err := c.Search(context.Background(), SearchOptions{Text: "rain fall"})
	require.NoError(t, err)
	assert.Equal(t, apiBasePath+endpointSearchText, got.Path)
	assert.Equal(t, "rain fall", got.Query().Get("text"))
	assert.Equal(t, "3", got.Query().Get("timeout"))
	assert.Equal(t, "global", got.Query().Get("scope"))
}

func TestMySubscriptions_ForcesSubscribedGlobal(t *testing.T) {
	portal := newFakePortal(t)
	var got url.Values
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		writeJSON(w, []dataset.Record{})
	}
	c := portal.client()

	_, err := c.MySubscriptions(context.Background(), SearchOptions{Text: "ignored", LocalOnly: true, Genre: "ai"})
	require.NoError(t, err)
	assert.Equal(t, "subscribed", got.Get("include"))
	assert.Equal(t, "global", got.Get("scope"))
	assert.Equal(t, "ai", got.Get("genre"))
	assert.False(t, got.Has("text"))
}

func TestMyData_FiltersByOwnOrg(t *testing.T) {
	portal := newFakePortal(t)
	var got url.Values
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		writeJSON(w, []dataset.Record{})
	}
	c := portal.client()

	_, err := c.MyData(context.Background(), SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "acme/alice", got.Get("creator"))
	assert.Equal(t, "local", got.Get("scope"))
	assert.Equal(t, "all", got.Get("include"))
}

func TestSearch_InvalidRecordFails(t *testing.T) {
	portal := newFakePortal(t)
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []dataset.Record{{Name: "broken"}})
	}
	c := portal.client()

	_, err := c.Search(context.Background(), SearchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrMissingField)
}

func validRequest() ProductRequest {
	return ProductRequest{
		Name:        "weather",
		Title:       "Weather",
		Description: "Daily readings",
		Genre:       "climate",
		Categories:  []string{"environment"},
		ContentType: "text/csv",
		DownloadURL: "https://example.com/weather.csv",
	}
}

func TestProductRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ProductRequest)
	}{
		{"missing title", func(r *ProductRequest) { r.Title = "" }},
		{"missing genre", func(r *ProductRequest) { r.Genre = "" }},
		{"no categories", func(r *ProductRequest) { r.Categories = nil }},
		{"no content source", func(r *ProductRequest) { r.DownloadURL = "" }},
		{"url and file", func(r *ProductRequest) { r.File = strings.NewReader("a,b") }},
		{"access and circles", func(r *ProductRequest) {
			r.Access = AccessAll
			r.Circles = []Circle{{Name: "friends", DID: "did:x"}}
		}},
		{"unknown access", func(r *ProductRequest) { r.Access = "some" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.modify(&r)
			assert.ErrorIs(t, r.Validate(), ErrInvalidRequest)
		})
	}

	assert.NoError(t, validRequest().Validate())
}

func TestCreate_InvalidRequestMakesNoCall(t *testing.T) {
	portal := newFakePortal(t)
	c := portal.client()

	r := validRequest()
	r.Categories = nil
	_, err := c.Create(context.Background(), r)
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, portal.requests())
}

// capturedProduct is the decoded multipart body of a create or update call.
type capturedProduct struct {
	method   string
	path     string
	metadata map[string]any
	file     []byte
	filename string
}

func captureProduct(t *testing.T, portal *fakePortal) *capturedProduct {
	got := &capturedProduct{}
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue("productMetadata")), &got.metadata))
		if f, header, err := r.FormFile("productData"); err == nil {
			got.file, _ = io.ReadAll(f)
			got.filename = header.Filename
			f.Close()
		}
		writeJSON(w, weatherRecord())
	}
	return got
}

func TestCreate_DownloadURL(t *testing.T) {
	portal := newFakePortal(t)
	got := captureProduct(t, portal)
	c := portal.client()

	r := validRequest()
	r.Preview = "a,b\n1,2"
	d, err := c.Create(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "weather", d.Name())

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, apiBasePath+endpointProducts, got.path)
	assert.Nil(t, got.file)

	m := got.metadata
	assert.Equal(t, "en", m["lang"])
	assert.Equal(t, "published", m["status"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("a,b\n1,2")), m["preview"])
	assert.Equal(t, "https://example.com/weather.csv", m["downloadURL"])
	assert.Equal(t, float64(0), m["size"])
	assert.Equal(t, []any{accessAllowNone}, m["accessControl"])
	assert.Equal(t, []any{}, m["customMetadata"])
	assert.NotContains(t, m, "price")
	assert.NotContains(t, m, "circles")
}

func TestCreate_FileUpload(t *testing.T) {
	portal := newFakePortal(t)
	got := captureProduct(t, portal)
	c := portal.client()

	r := validRequest()
	r.DownloadURL = ""
	r.Size = 99
	r.File = strings.NewReader("a,b\n1,2\n")
	r.Access = AccessAll
	_, err := c.Create(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, "a,b\n1,2\n", string(got.file))
	assert.Equal(t, "weather", got.filename)
	assert.NotContains(t, got.metadata, "size")
	assert.NotContains(t, got.metadata, "downloadURL")
	assert.Equal(t, []any{accessAllowAll}, got.metadata["accessControl"])
}

func TestUpdate_CirclesReplaceAccessControl(t *testing.T) {
	portal := newFakePortal(t)
	got := captureProduct(t, portal)
	c := portal.client()

	r := validRequest()
	r.Circles = []Circle{{Name: "friends", DID: "did:iotics:friends"}}
	_, err := c.Update(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, apiBasePath+"products/weather", got.path)
	assert.Equal(t, []any{"did:iotics:friends"}, got.metadata["circles"])
	assert.NotContains(t, got.metadata, "accessControl")
}

func TestDeleteByName(t *testing.T) {
	portal := newFakePortal(t)
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	c := portal.client()

	require.NoError(t, c.DeleteByName(context.Background(), "weather"))
	reqs := portal.requests()
	assert.Equal(t, "DELETE products/weather", reqs[len(reqs)-1])
}

func TestSubscribe(t *testing.T) {
	portal := newFakePortal(t)
	var body map[string]string
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, map[string]string{})
	}
	c := portal.client()

	d, err := dataset.FromRecord(weatherRecord(), "acme/alice", nil)
	require.NoError(t, err)
	require.NoError(t, c.Subscribe(context.Background(), d))
	assert.Equal(t, map[string]string{"product_name": "weather", "seller_org": "acme/bob"}, body)
}

func TestUnsubscribe_DoubleEncodesCreator(t *testing.T) {
	portal := newFakePortal(t)
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	c := portal.client()

	require.NoError(t, c.UnsubscribeByName(context.Background(), "weather", "acme/bob smith"))
	reqs := portal.requests()
	assert.Equal(t, "DELETE purchases/transactions/acme%252Fbob%2Bsmith/weather", reqs[len(reqs)-1])
}
