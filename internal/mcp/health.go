package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

const healthTimeout = 3 * time.Second

// HealthResponse is the body of /health. Mirror is empty when no mirror
// is configured.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Mirror    string `json:"mirror,omitempty"`
	Chunks    int    `json:"chunks"`
	Timestamp string `json:"timestamp"`
}

// Pinger is satisfied by *storage.SQLiteStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecks are what /health reports on. Store is required.
type HealthChecks struct {
	Store  Pinger
	Index  *vector.Index
	Mirror ChunkSearcher
}

// NewHealthHandler answers 503 when the SQLite store is unreachable. A
// failing mirror only degrades the status, since queries fall back to the
// in-memory index.
func NewHealthHandler(checks HealthChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := HealthResponse{
			Status:    "healthy",
			Store:     "connected",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if checks.Index != nil {
			resp.Chunks = checks.Index.Len()
		}
		if checks.Mirror != nil {
			resp.Mirror = "connected"
			if err := checks.Mirror.Health(ctx); err != nil {
				resp.Status, resp.Mirror = "degraded", "disconnected"
			}
		}

		code := http.StatusOK
		if err := checks.Store.Ping(ctx); err != nil {
			resp.Status, resp.Store = "unhealthy", "disconnected"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
