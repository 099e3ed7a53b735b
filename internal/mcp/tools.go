package mcp

import "github.com/mark3labs/mcp-go/mcp"

// conversationStateTool defines the conversation_state MCP tool.
var conversationStateTool = mcp.NewTool("conversation_state",
	mcp.WithDescription("Inspect the current state of a conversation: state machine position, active flow and step, pending slot, menu, and low-confidence counter."),
	mcp.WithString("conversation_id",
		mcp.Required(),
		mcp.Description("Conversation id to inspect"),
	),
)

// providerHealthTool defines the provider_health MCP tool.
var providerHealthTool = mcp.NewTool("provider_health",
	mcp.WithDescription("Get the rolling-window health of every tracked provider/model pair."),
)

// usageSummaryTool defines the usage_summary MCP tool.
var usageSummaryTool = mcp.NewTool("usage_summary",
	mcp.WithDescription("Aggregate LLM usage and cost per tenant over a recent window."),
	mcp.WithString("tenant_id",
		mcp.Description("Limit the summary to one tenant (default: all tenants)"),
	),
	mcp.WithNumber("hours",
		mcp.Description("Window size in hours (default 24)"),
	),
)

// resetProviderHealthTool defines the reset_provider_health MCP tool.
var resetProviderHealthTool = mcp.NewTool("reset_provider_health",
	mcp.WithDescription("Clear all recorded provider health samples, returning every provider/model pair to healthy."),
)

// sandboxTurnTool defines the sandbox_turn MCP tool.
var sandboxTurnTool = mcp.NewTool("sandbox_turn",
	mcp.WithDescription("Run one full engine turn against a scratch conversation and return the bot's reply. Reuse the returned conversation id to continue the conversation."),
	mcp.WithString("tenant_id",
		mcp.Required(),
		mcp.Description("Tenant whose bot should handle the turn"),
	),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Customer message text"),
	),
	mcp.WithString("conversation_id",
		mcp.Description("Existing sandbox conversation to continue (default: start a new one)"),
	),
)
