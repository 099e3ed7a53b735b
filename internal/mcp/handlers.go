package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/gateway"
)

// handleConversationState renders one conversation row for inspection.
func (s *Server) handleConversationState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: conversation_id"), nil
	}

	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no conversation with id %q", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("loading conversation: %v", err)), nil
	}

	return mcp.NewToolResultText(formatConversation(conv)), nil
}

// handleProviderHealth renders the health tracker snapshot.
func (s *Server) handleProviderHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statuses := s.health.Snapshot()
	if len(statuses) == 0 {
		return mcp.NewToolResultText("No provider attempts recorded yet; all providers are considered healthy."), nil
	}

	var sb strings.Builder
	for _, st := range statuses {
		state := "healthy"
		if !st.Healthy {
			state = "UNHEALTHY"
		}
		fmt.Fprintf(&sb, "%s: %s (%d ok, %d failed in window)\n",
			st.Ref.Key(), state, st.Successes, st.Failures)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleUsageSummary aggregates usage per tenant over a recent window.
func (s *Server) handleUsageSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID := request.GetString("tenant_id", "")
	hours := request.GetInt("hours", 24)
	if hours <= 0 {
		hours = 24
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	summaries, err := s.usage.ByTenant(ctx, tenantID, since)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("usage query failed: %v", err)), nil
	}
	if len(summaries) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No usage recorded in the last %dh.", hours)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage over the last %dh:\n", hours)
	for _, sum := range summaries {
		fmt.Fprintf(&sb, "%s: %d calls, %d in / %d out tokens, $%.4f\n",
			sum.TenantID, sum.Calls, sum.InputTokens, sum.OutputTokens, sum.CostUSD)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleResetProviderHealth clears the health tracker.
func (s *Server) handleResetProviderHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.health.Reset()
	return mcp.NewToolResultText("Provider health cleared; all pairs are healthy again."), nil
}

// handleSandboxTurn drives one full engine turn against a scratch
// conversation.
func (s *Server) handleSandboxTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := request.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tenant_id"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	conversationID := request.GetString("conversation_id", "")
	if conversationID == "" {
		conversationID = "sandbox-" + uuid.NewString()
	}

	out, err := s.turns.HandleTurn(ctx, gateway.InboundMessage{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		TenantID:       tenantID,
		CustomerID:     "sandbox",
		Text:           text,
		ReceivedAt:     time.Now().UTC(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("turn failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "conversation_id: %s\n", conversationID)
	if out.Empty() {
		sb.WriteString("(no automated reply; the conversation is awaiting a human)\n")
	} else {
		fmt.Fprintf(&sb, "reply: %s\n", out.Text)
	}
	for _, opt := range out.InteractiveOptions {
		fmt.Fprintf(&sb, "option: %s [%s]\n", opt.Label, opt.Payload)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatConversation renders a conversation row as readable text.
func formatConversation(c *conversation.Conversation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "conversation %s (tenant %s, customer %s)\n", c.ID, c.TenantID, c.CustomerID)
	fmt.Fprintf(&sb, "state: %s\n", c.State)
	if c.Flow != "" {
		fmt.Fprintf(&sb, "flow: %s, step: %s\n", c.Flow, c.Step)
	}
	if c.AwaitingSlot != "" {
		fmt.Fprintf(&sb, "awaiting slot: %s\n", c.AwaitingSlot)
	}
	if len(c.Menu) > 0 {
		sb.WriteString("menu:\n")
		for i, opt := range c.Menu {
			fmt.Fprintf(&sb, "  %d. %s [%s]\n", i+1, opt.Label, opt.Payload)
		}
	}
	if len(c.Metadata) > 0 {
		fmt.Fprintf(&sb, "metadata: %v\n", c.Metadata)
	}
	fmt.Fprintf(&sb, "low-confidence turns: %d\n", c.LowConfidence)
	fmt.Fprintf(&sb, "active: %t, last activity: %s\n", c.Active, c.LastActivity.UTC().Format(time.RFC3339))
	return sb.String()
}
