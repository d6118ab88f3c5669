package nyx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iotic-Labs/nyx-sdk/internal/auth"
)

// fakePortal serves the setup endpoints itself and hands every other
// request to handle.
type fakePortal struct {
	server    *httptest.Server
	community bool
	handle    http.HandlerFunc

	mu         sync.Mutex
	logins     int
	setupFails int
	seen       []string
	authHeader []string
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	p := &fakePortal{community: true}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), apiBasePath)

	p.mu.Lock()
	p.seen = append(p.seen, r.Method+" "+path)
	p.authHeader = append(p.authHeader, r.Header.Get("Authorization"))
	p.mu.Unlock()

	switch path {
	case endpointLogin:
		p.mu.Lock()
		p.logins++
		n := p.logins
		p.mu.Unlock()
		writeJSON(w, map[string]string{"access_token": fmt.Sprintf("tok-%d", n), "refresh_token": "r"})
	case endpointUsersMe:
		writeJSON(w, map[string]string{"name": "alice"})
	case endpointQAPIConnection:
		p.mu.Lock()
		fail := p.setupFails > 0
		if fail {
			p.setupFails--
		}
		p.mu.Unlock()
		if fail {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"org_name": "acme", "community_mode": p.community})
	default:
		if p.handle == nil {
			http.NotFound(w, r)
			return
		}
		p.handle(w, r)
	}
}

func (p *fakePortal) loginCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

func (p *fakePortal) requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func (p *fakePortal) client(opts ...Option) *Client {
	return NewClient(Config{URL: p.server.URL, Email: "alice@example.com", Password: "secret"}, opts...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSetup_CommunityModeOrg(t *testing.T) {
	portal := newFakePortal(t)
	c := portal.client()

	require.NoError(t, c.Setup(context.Background()))
	assert.Equal(t, "alice", c.Name)
	assert.Equal(t, "acme/alice", c.Org)
	assert.True(t, c.CommunityMode)
	assert.Equal(t, 1, portal.loginCount())

	// A second setup is a no-op.
	require.NoError(t, c.Setup(context.Background()))
	assert.Equal(t, 1, portal.loginCount())
}

func TestSetup_EnterpriseOrg(t *testing.T) {
	portal := newFakePortal(t)
	portal.community = false
	c := portal.client()

	require.NoError(t, c.Setup(context.Background()))
	assert.Equal(t, "acme", c.Org)
	assert.False(t, c.CommunityMode)
}

func TestSetup_FailureIsRetriedOnNextCall(t *testing.T) {
	portal := newFakePortal(t)
	portal.setupFails = 1
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []string{"weather"})
	}
	c := portal.client()

	_, err := c.Categories(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.Empty(t, c.Org)

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"weather"}, cats)
	assert.Equal(t, "acme/alice", c.Org)
}

func TestCall_RetriesOnceAfter401(t *testing.T) {
	portal := newFakePortal(t)
	calls := 0
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		writeJSON(w, []string{"finance"})
	}
	c := portal.client()

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, cats)
	assert.Equal(t, 2, calls)
	// One login during setup plus exactly one re-authentication.
	assert.Equal(t, 2, portal.loginCount())
	assert.Equal(t, "tok-2", c.Session().Token().AccessToken)
}

func TestCall_Double401Fails(t *testing.T) {
	portal := newFakePortal(t)
	calls := 0
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusUnauthorized)
	}
	c := portal.client()

	_, err := c.Categories(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, portal.loginCount())
}

func TestCall_OtherErrorsAreNotRetried(t *testing.T) {
	portal := newFakePortal(t)
	calls := 0
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"detail":"bad category"}`, http.StatusBadRequest)
	}
	c := portal.client()

	_, err := c.Categories(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "bad category")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, portal.loginCount())
}

func TestCall_NetworkErrorIsNotHTTPError(t *testing.T) {
	portal := newFakePortal(t)
	url := portal.server.URL
	portal.server.Close()

	c := NewClient(Config{URL: url, Token: "abc", Org: "acme"})
	_, err := c.Categories(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestOverrideToken_SkipsSetup(t *testing.T) {
	portal := newFakePortal(t)
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []string{})
	}
	c := NewClient(Config{URL: portal.server.URL, Token: "abc", Org: "acme"})

	_, err := c.Genres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GET meta/genres"}, portal.requests())
	assert.Equal(t, []string{"Bearer abc"}, portal.authHeader)
	assert.Equal(t, 0, portal.loginCount())
}

func TestOverrideToken_401CannotRefresh(t *testing.T) {
	portal := newFakePortal(t)
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "revoked", http.StatusUnauthorized)
	}
	c := NewClient(Config{URL: portal.server.URL, Token: "abc", Org: "acme"})

	_, err := c.Genres(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrRefreshUnsupported)
	assert.Len(t, portal.requests(), 1)

	_, err = c.Genres(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"Bearer abc", "Bearer abc"}, portal.authHeader)
	assert.True(t, c.Session().HasToken())
}

func TestCall_BaseHeaders(t *testing.T) {
	portal := newFakePortal(t)
	var got http.Header
	portal.handle = func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, []string{})
	}
	c := NewClient(Config{URL: portal.server.URL, Token: "abc", Org: "acme"})

	_, err := c.Licenses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nyx-sdk", got.Get("X-Requested-With"))
	assert.Equal(t, "nyx-sdk", got.Get("X-Client-Type"))
	assert.Equal(t, Version, got.Get("sdk-version"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestLogin_MissingCredentials(t *testing.T) {
	portal := newFakePortal(t)
	c := NewClient(Config{URL: portal.server.URL})

	err := c.Setup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrNoCredentials)
	assert.Empty(t, portal.requests())
}

func TestWithAuthRetry(t *testing.T) {
	unauthorized := &HTTPError{StatusCode: http.StatusUnauthorized}

	tests := []struct {
		name       string
		results    []error
		reauthErr  error
		wantCalls  int
		wantReauth int
		wantErr    bool
	}{
		{name: "success", results: []error{nil}, wantCalls: 1},
		{name: "401 then success", results: []error{unauthorized, nil}, wantCalls: 2, wantReauth: 1},
		{name: "401 twice", results: []error{unauthorized, unauthorized}, wantCalls: 2, wantReauth: 1, wantErr: true},
		{name: "other error", results: []error{io.ErrUnexpectedEOF}, wantCalls: 1, wantErr: true},
		{name: "reauth fails", results: []error{unauthorized}, reauthErr: errors.New("down"), wantCalls: 1, wantReauth: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, reauths := 0, 0
			err := withAuthRetry(context.Background(), maxAuthRetries,
				func() error {
					err := tt.results[calls]
					calls++
					return err
				},
				func() error {
					reauths++
					return tt.reauthErr
				},
			)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantReauth, reauths)
		})
	}
}
