package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/store"
)

// LogSource lists archived log messages.
type LogSource interface {
	RunID() string
	Logs(f store.LogRecordFilter) ([]store.LogRecord, error)
}

// RecentLogs returns a handler that lists archived log messages, newest
// first.
func RecentLogs(src LogSource) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		filter := store.LogRecordFilter{
			RunID: src.RunID(),
			Limit: 50,
		}

		if all, ok := args["all_runs"].(bool); ok && all {
			filter.RunID = ""
		}
		if name, ok := args["level"].(string); ok && name != "" {
			level, ok := event.ParseLevel(name)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unknown level %q", name)), nil
			}
			filter.MinLevel = level
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}

		records, err := src.Logs(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read log archive: %s", err)), nil
		}
		if len(records) == 0 {
			return mcp.NewToolResultText("No archived log messages."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Log messages (%d found)\n\n", len(records))
		for _, r := range records {
			fmt.Fprintf(&sb, "%s [%s] ", r.CreatedAt.Format(time.RFC3339), event.LevelName(r.Level))
			if r.Filename != "" {
				fmt.Fprintf(&sb, "%s:%d ", r.Filename, r.Line)
			}
			sb.WriteString(r.Message)
			if filter.RunID == "" {
				fmt.Fprintf(&sb, " run=%s", r.RunID)
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
