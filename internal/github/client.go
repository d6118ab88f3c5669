package github

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// Options configure the API client.
type Options struct {
	// Token authenticates requests for the higher rate limits.
	Token string
	// APIURL replaces https://api.github.com/, for GitHub Enterprise.
	APIURL string
	// Transport is wrapped by the rate limiter. Nil uses the default.
	Transport http.RoundTripper
}

// Client wraps the GitHub API client with rate limiting support
type Client struct {
	*github.Client
}

// NewClient creates a client that waits out primary and secondary rate
// limits instead of failing.
func NewClient(opts Options) (*Client, error) {
	limited, err := github_ratelimit.NewRateLimitWaiterClient(opts.Transport)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	gh := github.NewClient(limited)
	if opts.Token != "" {
		gh = gh.WithAuthToken(opts.Token)
	}
	if opts.APIURL != "" {
		base, err := url.Parse(strings.TrimRight(opts.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("api url: %w", err)
		}
		gh.BaseURL = base
	}
	return &Client{Client: gh}, nil
}
