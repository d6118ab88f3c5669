// Package dataset models a single dataset published on the Nyx marketplace.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultCreator     = "unknown"
	defaultName        = "unknown"
	DefaultDescription = "unknown description"
	defaultContentType = "unknown"
)

// Fields are the inputs for New. Title, Org and one of AccessURL or
// DownloadURL are required.
type Fields struct {
	Name         string
	Title        string
	Description  string
	Org          string // buyer organization, appended to brokered access URLs
	Creator      string
	ContentType  string
	Size         int64
	AccessURL    string
	DownloadURL  string
	Categories   []string
	Genre        string
	Properties   []Property
	ConnectionID string

	// Fetcher downloads content. Nil means DefaultFetcher.
	Fetcher ContentFetcher
}

// Dataset is the metadata of one remote dataset plus a lazily filled
// content cache. Apart from the cache it never changes after construction.
type Dataset struct {
	name         string
	title        string
	description  string
	org          string
	creator      string
	contentType  string
	size         int64
	accessURL    string
	downloadURL  string
	categories   []string
	genre        string
	properties   []Property
	connectionID string

	fetcher ContentFetcher
	content []byte
	fetched bool
}

// New validates f and builds a Dataset.
func New(f Fields) (*Dataset, error) {
	var missing []string
	if f.Title == "" {
		missing = append(missing, "title")
	}
	if f.Org == "" {
		missing = append(missing, "org")
	}
	if f.AccessURL == "" && f.DownloadURL == "" {
		missing = append(missing, "access_url or download_url")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidDataset, ErrMissingField, strings.Join(missing, ", "))
	}

	d := &Dataset{
		name:         orDefault(f.Name, defaultName),
		title:        f.Title,
		description:  orDefault(f.Description, DefaultDescription),
		org:          f.Org,
		creator:      orDefault(f.Creator, defaultCreator),
		contentType:  orDefault(f.ContentType, defaultContentType),
		size:         f.Size,
		accessURL:    f.AccessURL,
		downloadURL:  f.DownloadURL,
		categories:   append([]string(nil), f.Categories...),
		genre:        f.Genre,
		properties:   append([]Property(nil), f.Properties...),
		connectionID: f.ConnectionID,
		fetcher:      f.Fetcher,
	}
	if d.size < 0 {
		d.size = 0
	}
	if d.fetcher == nil {
		d.fetcher = DefaultFetcher
	}
	return d, nil
}

// MustNew is New for statically known fields. It panics on invalid input.
func MustNew(f Fields) *Dataset {
	d, err := New(f)
	if err != nil {
		panic(err)
	}
	return d
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (d *Dataset) Name() string { return d.name }
func (d *Dataset) Title() string { return d.title }
func (d *Dataset) Description() string { return d.description }
func (d *Dataset) Org() string { return d.org }
func (d *Dataset) Creator() string { return d.creator }
func (d *Dataset) RawContentType() string { return d.contentType }
func (d *Dataset) Size() int64 { return d.size }
func (d *Dataset) AccessURL() string { return d.accessURL }
func (d *Dataset) DownloadURL() string { return d.downloadURL }
func (d *Dataset) Categories() []string { return append([]string(nil), d.categories...) }
func (d *Dataset) Genre() string { return d.genre }
func (d *Dataset) Properties() []Property { return append([]Property(nil), d.properties...) }
func (d *Dataset) ConnectionID() string { return d.connectionID }
func (d *Dataset) ContentType() string { return NormalizeContentType(d.contentType) }
func (d *Dataset) String() string { return fmt.Sprintf("Dataset(%s, %s, %s)", d.title, d.URL(), d.ContentType()) }
func (d *Dataset) Fetcher() ContentFetcher { return d.fetcher }

// NormalizeContentType strips everything up to the last "/", so both
// "text/csv" and "http://www.iana.org/assignments/media-types/text/csv"
// become "csv". Trailing slashes are ignored.
func NormalizeContentType(ct string) string {
	ct = strings.TrimRight(strings.TrimSpace(ct), "/")
	if i := strings.LastIndex(ct, "/"); i >= 0 {
		return ct[i+1:]
	}
	return ct
}

// URL is the brokered access URL for the buyer organization. Without an
// access URL it falls back to the download URL unchanged.
func (d *Dataset) URL() string {
	if d.accessURL == "" {
		return d.downloadURL
	}
	u, err := url.Parse(d.accessURL)
	if err != nil {
		return d.accessURL + "?buyer_org=" + url.QueryEscape(d.org)
	}
	q := u.Query()
	q.Set("buyer_org", d.org)
	u.RawQuery = q.Encode()
	return u.String()
}

// Bytes returns the dataset content, downloading it on first use.
func (d *Dataset) Bytes(ctx context.Context) ([]byte, error) {
	if d.fetched {
		return d.content, nil
	}
	b, err := d.fetcher.Fetch(ctx, d.URL())
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", d.title, err)
	}
	d.content = b
	d.fetched = true
	return b, nil
}

// Text is Bytes decoded as text.
func (d *Dataset) Text(ctx context.Context) (string, error) {
	b, err := d.Bytes(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Refresh drops the cached content so the next read downloads it again.
func (d *Dataset) Refresh() {
	d.content = nil
	d.fetched = false
}

// WithContent seeds the content cache and returns d.
func (d *Dataset) WithContent(b []byte) *Dataset {
	d.content = b
	d.fetched = true
	return d
}

// Record is a dataset object as returned by the portal API.
type Record struct {
	Name           string     `json:"name"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	AccessURL      string     `json:"accessURL"`
	DownloadURL    string     `json:"downloadURL"`
	ContentType    string     `json:"contentType"`
	MediaType      string     `json:"mediaType"`
	Creator        string     `json:"creator"`
	Categories     []string   `json:"categories"`
	Genre          string     `json:"genre"`
	Size           Size       `json:"size"`
	CustomMetadata []Property `json:"customMetadata"`
	ConnectionID   string     `json:"connectionId"`
}

// FromRecord builds a Dataset from an API record on behalf of org.
func FromRecord(r Record, org string, fetcher ContentFetcher) (*Dataset, error) {
	ct := r.ContentType
	if ct == "" {
		ct = r.MediaType
	}
	return New(Fields{
		Name:         r.Name,
		Title:        r.Title,
		Description:  r.Description,
		Org:          org,
		Creator:      r.Creator,
		ContentType:  ct,
		Size:         int64(r.Size),
		AccessURL:    r.AccessURL,
		DownloadURL:  r.DownloadURL,
		Categories:   r.Categories,
		Genre:        r.Genre,
		Properties:   r.CustomMetadata,
		ConnectionID: r.ConnectionID,
		Fetcher:      fetcher,
	})
}

// Size is a byte count that the API sends either as a number or a string.
// Anything unparseable decodes to 0.
type Size int64

func (s *Size) UnmarshalJSON(b []byte) error {
	*s = 0
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		*s = Size(v)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*s = Size(n)
		}
	}
	return nil
}
