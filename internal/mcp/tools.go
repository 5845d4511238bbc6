package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/tablecast/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// listener_stats — Listener, poller and category counts
	s.AddTool(
		mcp.NewTool("listener_stats",
			mcp.WithDescription("Show listener, poller and callback counts, and how many listeners are subscribed to each event category."),
		),
		handlers.ListenerStats(deps.Hub),
	)

	// listener_audit — Listener lifecycle history
	s.AddTool(
		mcp.NewTool("listener_audit",
			mcp.WithDescription("List recorded listener lifecycle changes (added, activated, removed), newest first."),
			mcp.WithString("action",
				mcp.Description("Filter by lifecycle action"),
				mcp.Enum("added", "activated", "removed"),
			),
			mcp.WithBoolean("all_runs",
				mcp.Description("Include rows from previous daemon runs"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of rows to return (default: 50)"),
			),
			mcp.WithString("since",
				mcp.Description("RFC 3339 datetime, only rows after this time"),
			),
		),
		handlers.ListenerAudit(deps.Hub),
	)

	// publish_log — Broadcast a message on the log channel
	s.AddTool(
		mcp.NewTool("publish_log",
			mcp.WithDescription("Publish a message on the network table log channel. Every log listener whose level range covers the level receives it."),
			mcp.WithString("message",
				mcp.Required(),
				mcp.Description("The log message"),
			),
			mcp.WithString("level",
				mcp.Description("Severity (default: info)"),
				mcp.Enum("critical", "error", "warning", "info", "debug"),
			),
			mcp.WithString("filename",
				mcp.Description("Source file to attribute the message to"),
			),
			mcp.WithNumber("line",
				mcp.Description("Source line to attribute the message to"),
			),
		),
		handlers.PublishLog(deps.Hub),
	)

	// recent_logs — Archived log messages
	s.AddTool(
		mcp.NewTool("recent_logs",
			mcp.WithDescription("List archived log-channel messages, newest first. Only levels at or above listener.archive_level are archived."),
			mcp.WithString("level",
				mcp.Description("Minimum severity"),
				mcp.Enum("critical", "error", "warning", "info", "debug"),
			),
			mcp.WithBoolean("all_runs",
				mcp.Description("Include messages from previous daemon runs"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of messages to return (default: 50)"),
			),
		),
		handlers.RecentLogs(deps.Hub),
	)
}
