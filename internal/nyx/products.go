package nyx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
)

const (
	endpointProducts   = "products"
	endpointSearchText = "meta/search/text"

	accessAllowAll  = "http://data.iotics.com/public#allowAll"
	accessAllowNone = "http://data.iotics.com/public#allowNone"
)

// SubscriptionState filters results by whether the caller has subscribed.
type SubscriptionState string

const (
	SubscriptionAll           SubscriptionState = "all"
	SubscriptionSubscribed    SubscriptionState = "subscribed"
	SubscriptionNotSubscribed SubscriptionState = "not-subscribed"
)

// SearchOptions filters a product search. Subscription and LocalOnly are
// independent: every combination is sent to the portal as given.
type SearchOptions struct {
	Text         string
	Categories   []string
	Genre        string
	Creator      string
	License      string
	ContentType  string
	Subscription SubscriptionState
	LocalOnly    bool
	// Timeout is the portal-side federation timeout in seconds. Zero uses
	// 3 for text search and 10 for listing.
	Timeout int
}

func (o SearchOptions) query() url.Values {
	q := url.Values{}
	sub := o.Subscription
	if sub == "" {
		sub = SubscriptionAll
	}
	q.Set("include", string(sub))
	if o.LocalOnly {
		q.Set("scope", "local")
	} else {
		q.Set("scope", "global")
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10
		if o.Text != "" {
			timeout = 3
		}
	}
	q.Set("timeout", strconv.Itoa(timeout))
	if o.Text != "" {
		q.Set("text", o.Text)
	}
	for _, c := range o.Categories {
		q.Add("category[]", c)
	}
	if o.Genre != "" {
		q.Set("genre", o.Genre)
	}
	if o.Creator != "" {
		q.Set("creator", o.Creator)
	}
	if o.License != "" {
		q.Set("license", o.License)
	}
	if o.ContentType != "" {
		q.Set("contentType", o.ContentType)
	}
	return q
}

// Search lists products matching opts. Free text goes to the text search
// endpoint; without it the product listing is used.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]*dataset.Dataset, error) {
	endpoint := endpointProducts
	if opts.Text != "" {
		endpoint = endpointSearchText
	}
	var records []dataset.Record
	if err := c.call(ctx, newRequest(http.MethodGet, endpoint).withQuery(opts.query()), &records); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return c.datasets(records)
}

// MySubscriptions lists datasets the caller has subscribed to. Text,
// Subscription and LocalOnly in filters are ignored.
func (c *Client) MySubscriptions(ctx context.Context, filters SearchOptions) ([]*dataset.Dataset, error) {
	filters.Text = ""
	filters.Subscription = SubscriptionSubscribed
	filters.LocalOnly = false
	return c.Search(ctx, filters)
}

// MyData lists datasets published by the caller's organization.
func (c *Client) MyData(ctx context.Context, filters SearchOptions) ([]*dataset.Dataset, error) {
	if err := c.ensureSetup(ctx); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	filters.Text = ""
	filters.Creator = c.Org
	filters.Subscription = SubscriptionAll
	filters.LocalOnly = true
	return c.Search(ctx, filters)
}

// DataByName returns one of the caller's own datasets.
func (c *Client) DataByName(ctx context.Context, name string) (*dataset.Dataset, error) {
	var rec dataset.Record
	if err := c.call(ctx, newRequest(http.MethodGet, productPath(name)), &rec); err != nil {
		return nil, fmt.Errorf("get product %s: %w", name, err)
	}
	return dataset.FromRecord(rec, c.Org, c.fetcher)
}

func (c *Client) datasets(records []dataset.Record) ([]*dataset.Dataset, error) {
	out := make([]*dataset.Dataset, 0, len(records))
	for _, rec := range records {
		d, err := dataset.FromRecord(rec, c.Org, c.fetcher)
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", rec.Name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func productPath(name string) string {
	return endpointProducts + "/" + url.PathEscape(name)
}

// AccessControl is the blanket sharing policy of a published dataset.
type AccessControl string

const (
	AccessUnset AccessControl = ""
	AccessAll   AccessControl = "all"
	AccessNone  AccessControl = "none"
)

// ProductRequest describes a dataset to publish or update.
type ProductRequest struct {
	Name        string
	Title       string
	Description string
	Genre       string
	Categories  []string
	ContentType string

	Lang    string // default "en"
	Status  string // default "published"
	Preview string
	Size    int64
	Price   int64 // cents, omitted when zero
	License string

	// Exactly one of DownloadURL and File must be set.
	DownloadURL string
	File        io.Reader

	// Access and Circles are mutually exclusive. With neither set the
	// dataset is shared with nobody.
	Access  AccessControl
	Circles []Circle

	Properties   []dataset.Property
	ConnectionID string
}

// Validate checks the request without touching the network.
func (r ProductRequest) Validate() error {
	switch {
	case r.Name == "", r.Title == "", r.Description == "", r.Genre == "", r.ContentType == "":
		return fmt.Errorf("%w: name, title, description, genre and content type are required", ErrInvalidRequest)
	case len(r.Categories) == 0:
		return fmt.Errorf("%w: at least one category is required", ErrInvalidRequest)
	case r.DownloadURL == "" && r.File == nil:
		return fmt.Errorf("%w: either a download URL or a file must be supplied", ErrInvalidRequest)
	case r.DownloadURL != "" && r.File != nil:
		return fmt.Errorf("%w: download URL and file are mutually exclusive", ErrInvalidRequest)
	case r.Access != AccessUnset && len(r.Circles) > 0:
		return fmt.Errorf("%w: access control and circles are mutually exclusive", ErrInvalidRequest)
	case r.Access != AccessUnset && r.Access != AccessAll && r.Access != AccessNone:
		return fmt.Errorf("%w: unknown access control %q", ErrInvalidRequest, r.Access)
	}
	return nil
}

type productMetadata struct {
	Name           string             `json:"name"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Genre          string             `json:"genre"`
	Categories     []string           `json:"categories"`
	Lang           string             `json:"lang"`
	Status         string             `json:"status"`
	Preview        string             `json:"preview"`
	ContentType    string             `json:"contentType"`
	CustomMetadata []dataset.Property `json:"customMetadata"`
	Price          int64              `json:"price,omitempty"`
	DownloadURL    string             `json:"downloadURL,omitempty"`
	Size           *int64             `json:"size,omitempty"`
	LicenseURL     string             `json:"licenseURL,omitempty"`
	AccessControl  []string           `json:"accessControl,omitempty"`
	ConnectionID   string             `json:"connectionId,omitempty"`
	Circles        []string           `json:"circles,omitempty"`
}

func (r ProductRequest) metadata() productMetadata {
	m := productMetadata{
		Name:           r.Name,
		Title:          r.Title,
		Description:    r.Description,
		Genre:          r.Genre,
		Categories:     r.Categories,
		Lang:           r.Lang,
		Status:         r.Status,
		Preview:        base64.StdEncoding.EncodeToString([]byte(r.Preview)),
		ContentType:    r.ContentType,
		CustomMetadata: r.Properties,
		Price:          r.Price,
		LicenseURL:     r.License,
		ConnectionID:   r.ConnectionID,
	}
	if m.Lang == "" {
		m.Lang = "en"
	}
	if m.Status == "" {
		m.Status = "published"
	}
	if m.CustomMetadata == nil {
		m.CustomMetadata = []dataset.Property{}
	}
	if r.DownloadURL != "" {
		size := max(r.Size, 0)
		m.DownloadURL = r.DownloadURL
		m.Size = &size
	}
	switch {
	case r.Access == AccessAll:
		m.AccessControl = []string{accessAllowAll}
	case r.Access == AccessNone, len(r.Circles) == 0:
		m.AccessControl = []string{accessAllowNone}
	}
	for _, circle := range r.Circles {
		m.Circles = append(m.Circles, circle.DID)
	}
	return m
}

func (r ProductRequest) encode(method, endpoint string) (*request, error) {
	meta, err := json.Marshal(r.metadata())
	if err != nil {
		return nil, fmt.Errorf("encode product metadata: %w", err)
	}
	var file *filePart
	if r.File != nil {
		file = &filePart{field: "productData", filename: r.Name, contentType: r.ContentType, data: r.File}
	}
	return newRequest(method, endpoint).withMultipart(map[string]string{"productMetadata": string(meta)}, file)
}

// Create publishes a new dataset.
func (c *Client) Create(ctx context.Context, r ProductRequest) (*dataset.Dataset, error) {
	return c.publish(ctx, r, http.MethodPost, endpointProducts)
}

// Update replaces the metadata (and optionally the content) of a dataset.
func (c *Client) Update(ctx context.Context, r ProductRequest) (*dataset.Dataset, error) {
	return c.publish(ctx, r, http.MethodPatch, productPath(r.Name))
}

func (c *Client) publish(ctx context.Context, r ProductRequest, method, endpoint string) (*dataset.Dataset, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	req, err := r.encode(method, endpoint)
	if err != nil {
		return nil, err
	}
	var rec dataset.Record
	if err := c.call(ctx, req, &rec); err != nil {
		return nil, fmt.Errorf("publish %s: %w", r.Name, err)
	}
	return dataset.FromRecord(rec, c.Org, c.fetcher)
}

// Delete removes d from the portal.
func (c *Client) Delete(ctx context.Context, d *dataset.Dataset) error {
	return c.DeleteByName(ctx, d.Name())
}

// DeleteByName removes the caller's dataset with the given name.
func (c *Client) DeleteByName(ctx context.Context, name string) error {
	if err := c.call(ctx, newRequest(http.MethodDelete, productPath(name)), nil); err != nil {
		return fmt.Errorf("delete product %s: %w", name, err)
	}
	return nil
}
