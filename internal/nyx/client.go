// Package nyx is a client for the Nyx data marketplace portal API.
//
// A Client is not safe for concurrent use: the session token and setup
// state are mutated in place without locking.
package nyx

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Iotic-Labs/nyx-sdk/internal/auth"
	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
)

// Version is sent to the portal in the sdk-version header.
const Version = "0.2.0"

const (
	apiBasePath = "/api/portal/"

	endpointLogin          = "auth/login"
	endpointUsersMe        = "users/me"
	endpointQAPIConnection = "auth/qapi-connection"
)

// DefaultURL is the community instance used when no URL is configured.
const DefaultURL = "https://nyx-community-1.dev.iotics.space"

// Config holds the portal location and credentials.
type Config struct {
	URL      string
	Email    string
	Password string
	// Token overrides login entirely. A client built with it skips setup,
	// so Org must be given alongside it for datasets to carry a buyer org.
	Token string
	Org   string
	// Timeout applies to every HTTP round trip. Zero means 30 seconds.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate checks.
	InsecureSkipVerify bool
}

// Client talks to one Nyx portal on behalf of one user.
type Client struct {
	// Org is the caller's organization, used as buyer_org on access URLs.
	// In community mode it is "<org_name>/<user name>".
	Org string
	// Name is the user's display name from users/me.
	Name          string
	CommunityMode bool

	baseURL    string
	httpClient *http.Client
	session    *auth.Session
	limiter    *rate.Limiter
	fetcher    dataset.ContentFetcher
	logger     *slog.Logger
	setup      bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for portal calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRateLimit throttles portal calls to r requests per second.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		if r > 0 {
			c.limiter = rate.NewLimiter(r, max(burst, 1))
		}
	}
}

// WithProvider replaces the password login with another credential provider.
func WithProvider(p auth.Provider) Option {
	return func(c *Client) { c.session = auth.NewSession(p) }
}

// WithFetcher sets the content fetcher attached to returned datasets.
func WithFetcher(f dataset.ContentFetcher) Option {
	return func(c *Client) { c.fetcher = f }
}

// NewClient builds a client. No network call is made until first use.
func NewClient(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &Client{
		baseURL:    base + apiBasePath,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		logger:     slog.Default(),
	}
	c.session = auth.NewSession(&passwordLogin{client: c, email: cfg.Email, password: cfg.Password})

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "nyx")

	if cfg.Token != "" {
		c.session = auth.NewSessionWithToken(auth.StaticProvider{AccessToken: cfg.Token}, cfg.Token)
		c.Org = cfg.Org
		c.setup = true
	}
	return c
}

// Session exposes the credential session.
func (c *Client) Session() *auth.Session {
	return c.session
}

// Setup runs the first-use initialisation explicitly. Calls made through
// the client run it on demand.
func (c *Client) Setup(ctx context.Context) error {
	return c.ensureSetup(ctx)
}

// ensureSetup logs in and loads the user and organization on first use.
// The setup flag is only set once every step has succeeded, so a failed
// setup is attempted again by the next call.
func (c *Client) ensureSetup(ctx context.Context) error {
	if c.setup {
		return nil
	}
	if err := c.session.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var me struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, newRequest(http.MethodGet, endpointUsersMe), &me); err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	var host struct {
		OrgName       string `json:"org_name"`
		CommunityMode bool   `json:"community_mode"`
	}
	if err := c.do(ctx, newRequest(http.MethodGet, endpointQAPIConnection), &host); err != nil {
		return fmt.Errorf("get host info: %w", err)
	}

	c.Name = me.Name
	c.CommunityMode = host.CommunityMode
	if host.CommunityMode {
		c.Org = host.OrgName + "/" + me.Name
	} else {
		c.Org = host.OrgName
	}
	c.setup = true
	c.logger.Debug("Client setup complete", "name", c.Name, "org", c.Org, "community_mode", c.CommunityMode)
	return nil
}

// passwordLogin is the default credential provider: it posts the
// configured email and password to auth/login. Refreshing logs in again.
type passwordLogin struct {
	client   *Client
	email    string
	password string
}

func (p *passwordLogin) Token(ctx context.Context) (*oauth2.Token, error) {
	if p.email == "" || p.password == "" {
		return nil, auth.ErrNoCredentials
	}
	req, err := newRequest(http.MethodPost, endpointLogin).withJSON(map[string]string{
		"email":    p.email,
		"password": p.password,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := p.client.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
	}, nil
}

func (p *passwordLogin) Refresh(ctx context.Context, _ *oauth2.Token) (*oauth2.Token, error) {
	return p.Token(ctx)
}
