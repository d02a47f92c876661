// Package mcp exposes the event ledger as Model Context Protocol tools so
// operators can inspect traces and run contract checks from an MCP client.
package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bholliman55/securewatch-n8n/internal/ledger"
	"github.com/bholliman55/securewatch-n8n/internal/replay"
)

// Config holds MCP server configuration.
type Config struct {
	// Replay configures the replay engine used by the replay tool.
	Replay replay.Config

	// AllowDispatch permits the replay tool to actually POST to the
	// entrypoint. When false (the default) the tool is dry-run only.
	AllowDispatch bool

	// VerifyTimeout bounds a single verifier run. Zero means 30s.
	VerifyTimeout time.Duration
}

// Server wraps the MCP SDK server around the ledger read capability.
type Server struct {
	mcpServer *mcpsdk.Server
	store     ledger.Reader
	engine    *replay.Engine
	cfg       Config
}

// New creates an MCP server backed by the given ledger store.
func New(store ledger.Reader, cfg Config) *Server {
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 30 * time.Second
	}

	s := &Server{
		store:  store,
		engine: replay.New(store, cfg.Replay),
		cfg:    cfg,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "securewatch",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all securewatch tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "securewatch_timeline",
		Description: "Fetch the ordered event timeline for a trace ID.",
	}, s.handleTimeline)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "securewatch_errors",
		Description: "List error events recorded within a recent time window (default 15m).",
	}, s.handleErrors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "securewatch_verify",
		Description: "Run the logging contract checks against a trace and report pass/fail per check.",
	}, s.handleVerify)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "securewatch_replay",
		Description: "Reconstruct the replay request for a trace. Dry-run unless dispatch is explicitly enabled on the server.",
	}, s.handleReplay)
}
