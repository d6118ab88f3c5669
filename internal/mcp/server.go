package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Iotic-Labs/nyx-sdk/internal/nyx"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	health HealthChecks
	logger *slog.Logger
}

// Config holds server dependencies. Mirror and Answerer are optional; the
// ask tool is only registered with an Answerer.
type Config struct {
	Catalog  Searcher
	Index    *vector.Index
	Store    *storage.SQLiteStore
	Mirror   ChunkSearcher
	Answerer Answerer
	Logger   *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	impl := &mcp.Implementation{
		Name:    "nyx-mcp-server",
		Version: "v" + nyx.Version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_datasets",
		Description: "Search the Nyx marketplace for datasets by text and metadata filters. Returns dataset metadata, not content.",
	}, makeSearchHandler(&lockedSearcher{catalog: cfg.Catalog}))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_chunks",
		Description: "Find the passages of subscribed text datasets most similar to a query.",
	}, makeQueryHandler(cfg.Index, cfg.Mirror))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_subscriptions",
		Description: "List the subscribed datasets loaded into the SQLite store, with the table each one was loaded into.",
	}, makeListHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sql_query",
		Description: "Run a read-only SQLite query over the loaded tables. The nyx_subscriptions table maps tables to their source datasets.",
	}, makeSQLHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the loaded tables, dataset count and chunk index size.",
	}, makeStatusHandler(cfg.Index, cfg.Store, cfg.Mirror))

	if cfg.Answerer != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from subscribed data with a language model, citing the datasets used.",
		}, makeAskHandler(cfg.Index, cfg.Store, cfg.Answerer))
	}

	return &Server{
		server: server,
		health: HealthChecks{Store: cfg.Store, Index: cfg.Index, Mirror: cfg.Mirror},
		logger: logger.With("component", "mcp"),
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Serving MCP over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
