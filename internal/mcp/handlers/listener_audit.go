package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
	"github.com/btouchard/tablecast/internal/store"
)

// AuditSource lists listener lifecycle rows.
type AuditSource interface {
	RunID() string
	Audit(f store.ListenerEventFilter) ([]store.ListenerEvent, error)
}

// ListenerAudit returns a handler that lists recorded listener lifecycle
// changes, newest first.
func ListenerAudit(src AuditSource) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		filter := store.ListenerEventFilter{
			RunID: src.RunID(),
			Limit: 50,
		}

		if all, ok := args["all_runs"].(bool); ok && all {
			filter.RunID = ""
		}
		if action, ok := args["action"].(string); ok {
			filter.Action = action
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}
		if since, ok := args["since"].(string); ok && since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid since: %s", err)), nil
			}
			filter.Since = t
		}

		events, err := src.Audit(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read audit trail: %s", err)), nil
		}
		if len(events) == 0 {
			return mcp.NewToolResultText("No listener events recorded."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Listener events (%d found)\n\n", len(events))
		for _, e := range events {
			fmt.Fprintf(&sb, "%s %s %s listener=%s",
				e.CreatedAt.Format(time.RFC3339), e.Action, e.Kind, handle.Handle(e.Listener))
			if e.Poller != 0 {
				fmt.Fprintf(&sb, " poller=%s", handle.Handle(e.Poller))
			}
			if e.Mask != 0 {
				fmt.Fprintf(&sb, " mask=%s", event.Kind(e.Mask))
			}
			if filter.RunID == "" {
				fmt.Fprintf(&sb, " run=%s", e.RunID)
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
