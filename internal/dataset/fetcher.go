package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContentFetcher downloads the raw bytes behind a dataset URL.
type ContentFetcher interface {
	// Fetch returns ErrUnsupportedURL for URLs it does not handle.
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// DefaultFetcher is used by datasets built without an explicit fetcher.
var DefaultFetcher ContentFetcher = NewHTTPFetcher(nil)

// HTTPFetcher downloads http and https URLs with a plain GET.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or a client with a
// one minute timeout when nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Chain tries each fetcher in order, moving on only when one reports
// ErrUnsupportedURL.
type Chain []ContentFetcher

func (c Chain) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	for _, f := range c {
		if f == nil {
			continue
		}
		b, err := f.Fetch(ctx, rawURL)
		if errors.Is(err, ErrUnsupportedURL) {
			continue
		}
		return b, err
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
}
