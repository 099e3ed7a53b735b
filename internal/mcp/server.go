// Package mcp exposes operator tooling over the Model Context Protocol so
// AI agents can inspect conversations, provider health, and usage, and drive
// sandbox turns.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/gateway"
	"github.com/ziadkadry99/shoptalk/internal/llm"
	"github.com/ziadkadry99/shoptalk/internal/usage"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server over the same stores the ops HTTP routes read.
type Server struct {
	conversations *conversation.Store
	health        *llm.HealthTracker
	usage         *usage.Store
	turns         gateway.TurnHandler
	mcp           *server.MCPServer
}

// NewServer creates an MCP server with the given dependencies.
func NewServer(conversations *conversation.Store, health *llm.HealthTracker, usageStore *usage.Store, turns gateway.TurnHandler) *Server {
	s := &Server{
		conversations: conversations,
		health:        health,
		usage:         usageStore,
		turns:         turns,
	}

	s.mcp = server.NewMCPServer(
		"shoptalk",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(conversationStateTool, s.handleConversationState)
	s.mcp.AddTool(providerHealthTool, s.handleProviderHealth)
	s.mcp.AddTool(usageSummaryTool, s.handleUsageSummary)
	s.mcp.AddTool(resetProviderHealthTool, s.handleResetProviderHealth)
	s.mcp.AddTool(sandboxTurnTool, s.handleSandboxTurn)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
