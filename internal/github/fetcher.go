// Package github downloads dataset content hosted in GitHub repositories
// through the contents API.
package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
)

// Location identifies one file in a repository at a ref.
type Location struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
}

func (l Location) String() string {
	return fmt.Sprintf("%s/%s@%s:%s", l.Owner, l.Repo, l.Ref, l.Path)
}

// ParseURL recognises github.com blob or raw links and
// raw.githubusercontent.com links. The ref is taken to be a single path
// segment. Query strings are ignored.
func ParseURL(rawURL string) (Location, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return Location{}, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch strings.ToLower(u.Host) {
	case "github.com", "www.github.com":
		// owner/repo/blob/ref/path...
		if len(parts) < 5 || (parts[2] != "blob" && parts[2] != "raw") {
			return Location{}, false
		}
		return Location{Owner: parts[0], Repo: parts[1], Ref: parts[3], Path: strings.Join(parts[4:], "/")}, true
	case "raw.githubusercontent.com":
		// owner/repo/ref/path...
		if len(parts) < 4 {
			return Location{}, false
		}
		return Location{Owner: parts[0], Repo: parts[1], Ref: parts[2], Path: strings.Join(parts[3:], "/")}, true
	}
	return Location{}, false
}

// Fetcher is a dataset.ContentFetcher for files in GitHub repositories.
// Other URLs are reported as dataset.ErrUnsupportedURL.
type Fetcher struct {
	client *Client
	logger *slog.Logger
}

// NewFetcher creates a fetcher using client. A nil logger uses
// slog.Default().
func NewFetcher(client *Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger.With("component", "github")}
}

// Fetch downloads the file behind rawURL. DownloadContents is used so
// files above the contents API's inline size limit work too.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	loc, ok := ParseURL(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnsupportedURL, rawURL)
	}
	f.logger.Debug("Downloading file", "location", loc.String())

	body, _, err := f.client.Repositories.DownloadContents(ctx, loc.Owner, loc.Repo, loc.Path,
		&github.RepositoryContentGetOptions{Ref: loc.Ref})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", loc, err)
	}
	defer body.Close()

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", loc, err)
	}
	return b, nil
}
