// Package auth holds the bearer credentials used to talk to a Nyx portal.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

var (
	ErrNoCredentials      = errors.New("no credentials available")
	ErrRefreshUnsupported = errors.New("credential provider cannot refresh")
)

// Provider produces bearer tokens. The portal password login and a static
// override token both satisfy it.
type Provider interface {
	// Token returns a token for a session that has none.
	Token(ctx context.Context) (*oauth2.Token, error)
	// Refresh returns a replacement for a token the server rejected.
	Refresh(ctx context.Context, rejected *oauth2.Token) (*oauth2.Token, error)
}

// Session holds the current token. Expiry is never tracked locally: a token
// is considered stale only after the server answers 401.
//
// A Session is not safe for concurrent use.
type Session struct {
	provider Provider
	token    *oauth2.Token
}

// NewSession returns an empty session backed by provider.
func NewSession(provider Provider) *Session {
	return &Session{provider: provider}
}

// NewSessionWithToken returns a session seeded with an override access token.
func NewSessionWithToken(provider Provider, accessToken string) *Session {
	s := NewSession(provider)
	if accessToken != "" {
		s.token = &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	}
	return s
}

// Token returns the current token, or nil before login.
func (s *Session) Token() *oauth2.Token {
	return s.token
}

// HasToken reports whether an access token is held.
func (s *Session) HasToken() bool {
	return s.token != nil && s.token.AccessToken != ""
}

// Login obtains a token from the provider unless one is already held.
func (s *Session) Login(ctx context.Context) error {
	if s.HasToken() {
		return nil
	}
	if s.provider == nil {
		return ErrNoCredentials
	}
	tok, err := s.provider.Token(ctx)
	if err != nil {
		return err
	}
	s.token = tok
	return nil
}

// ForceRefresh asks the provider to replace the held token. The held token
// is swapped only when the provider returns a new one.
func (s *Session) ForceRefresh(ctx context.Context) error {
	if s.provider == nil {
		return ErrNoCredentials
	}
	tok, err := s.provider.Refresh(ctx, s.token)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	s.token = tok
	return nil
}

// Authorize sets the Authorization header on req when a token is held.
func (s *Session) Authorize(req *http.Request) {
	if s.HasToken() {
		s.token.SetAuthHeader(req)
	}
}

// StaticProvider serves a fixed token and cannot refresh it.
type StaticProvider struct {
	AccessToken string
}

func (p StaticProvider) Token(context.Context) (*oauth2.Token, error) {
	if p.AccessToken == "" {
		return nil, ErrNoCredentials
	}
	return &oauth2.Token{AccessToken: p.AccessToken, TokenType: "Bearer"}, nil
}

func (p StaticProvider) Refresh(context.Context, *oauth2.Token) (*oauth2.Token, error) {
	return nil, ErrRefreshUnsupported
}
