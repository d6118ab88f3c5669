package nyx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	endpointCategories   = "meta/categories"
	endpointGenres       = "meta/genres"
	endpointCreators     = "meta/creators"
	endpointContentTypes = "meta/contentTypes"
	endpointLicenses     = "meta/licenseURLs"
	endpointSPARQL       = "meta/sparql/"
	endpointCircles      = "circles"
	endpointOrgs         = "organizations"
	endpointConnections  = "connections"
)

// RemoteHost is an organization on the federated network.
type RemoteHost struct {
	DID  string `json:"did"`
	Name string `json:"name"`
}

// Circle groups remote organizations for access control.
type Circle struct {
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	DID           string       `json:"did,omitempty"`
	Organizations []RemoteHost `json:"organizations"`
}

// Connection is a third-party data integration configured on the portal.
type Connection struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	JSONBlob    map[string]any `json:"json_blob"`
	Description string         `json:"description"`
	AllowUpload bool           `json:"allow_upload"`
}

// SPARQL result formats accepted by the portal.
const (
	SPARQLJSON  = "application/sparql-results+json"
	SPARQLXML   = "application/sparql-results+xml"
	SPARQLCSV   = "text/csv"
	RDFNTriples = "application/n-triples"
	RDFTurtle   = "text/turtle"
	RDFXML      = "application/rdf+xml"
)

func (c *Client) facet(ctx context.Context, endpoint string) ([]string, error) {
	var out []string
	if err := c.call(ctx, newRequest(http.MethodGet, endpoint), &out); err != nil {
		return nil, fmt.Errorf("list %s: %w", endpoint, err)
	}
	return out, nil
}

// Categories lists every category known to the network.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	return c.facet(ctx, endpointCategories)
}

func (c *Client) Genres(ctx context.Context) ([]string, error) {
	return c.facet(ctx, endpointGenres)
}

func (c *Client) Creators(ctx context.Context) ([]string, error) {
	return c.facet(ctx, endpointCreators)
}

func (c *Client) ContentTypes(ctx context.Context) ([]string, error) {
	return c.facet(ctx, endpointContentTypes)
}

func (c *Client) Licenses(ctx context.Context) ([]string, error) {
	return c.facet(ctx, endpointLicenses)
}

// SPARQL runs a raw SPARQL 1.1 query and returns the response body in
// resultType. This endpoint is experimental on the portal side.
func (c *Client) SPARQL(ctx context.Context, query, resultType string, localOnly bool) (string, error) {
	if resultType == "" {
		resultType = SPARQLJSON
	}
	scope := "global"
	if localOnly {
		scope = "local"
	}
	req := newRequest(http.MethodPost, endpointSPARQL+scope).
		withRaw([]byte(query), "application/sparql-query", resultType)

	var out string
	if err := c.call(ctx, req, &out); err != nil {
		return "", fmt.Errorf("sparql: %w", err)
	}
	return out, nil
}

// Organizations lists every organization on the network.
func (c *Client) Organizations(ctx context.Context) ([]RemoteHost, error) {
	var out []RemoteHost
	if err := c.call(ctx, newRequest(http.MethodGet, endpointOrgs), &out); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return out, nil
}

func (c *Client) Circles(ctx context.Context) ([]Circle, error) {
	var out []Circle
	if err := c.call(ctx, newRequest(http.MethodGet, endpointCircles), &out); err != nil {
		return nil, fmt.Errorf("list circles: %w", err)
	}
	return out, nil
}

func (c *Client) CircleByName(ctx context.Context, name string) (*Circle, error) {
	var out Circle
	if err := c.call(ctx, newRequest(http.MethodGet, circlePath(name)), &out); err != nil {
		return nil, fmt.Errorf("get circle %s: %w", name, err)
	}
	return &out, nil
}

// CreateCircle creates circle and returns it with the DID assigned by the portal.
func (c *Client) CreateCircle(ctx context.Context, circle Circle) (*Circle, error) {
	circle.DID = ""
	if circle.Organizations == nil {
		circle.Organizations = []RemoteHost{}
	}
	req, err := newRequest(http.MethodPost, endpointCircles).withJSON(circle)
	if err != nil {
		return nil, err
	}
	var resp struct {
		DID string `json:"did"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("create circle %s: %w", circle.Name, err)
	}
	circle.DID = resp.DID
	return &circle, nil
}

// UpdateCircle replaces the circle with the same name.
func (c *Client) UpdateCircle(ctx context.Context, circle Circle) error {
	if circle.Organizations == nil {
		circle.Organizations = []RemoteHost{}
	}
	req, err := newRequest(http.MethodPut, circlePath(circle.Name)).withJSON(circle)
	if err != nil {
		return err
	}
	if err := c.call(ctx, req, nil); err != nil {
		return fmt.Errorf("update circle %s: %w", circle.Name, err)
	}
	return nil
}

func (c *Client) DeleteCircleByName(ctx context.Context, name string) error {
	if err := c.call(ctx, newRequest(http.MethodDelete, circlePath(name)), nil); err != nil {
		return fmt.Errorf("delete circle %s: %w", name, err)
	}
	return nil
}

func circlePath(name string) string {
	return endpointCircles + "/" + url.PathEscape(name)
}

// Connections lists data integrations. A nil allowUpload lists all of them.
func (c *Client) Connections(ctx context.Context, allowUpload *bool) ([]Connection, error) {
	req := newRequest(http.MethodGet, endpointConnections)
	if allowUpload != nil {
		req.withQuery(url.Values{"allow_upload": {strconv.FormatBool(*allowUpload)}})
	}
	var out []Connection
	if err := c.call(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return out, nil
}
