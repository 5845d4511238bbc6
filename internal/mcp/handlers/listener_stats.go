package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/tablecast/internal/service"
)

// StatsSource reports listener statistics.
type StatsSource interface {
	Stats() service.Stats
}

// ListenerStats returns a handler that summarizes the listener storage.
func ListenerStats(src StatsSource) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st := src.Stats()

		var sb strings.Builder
		fmt.Fprintf(&sb, "Listener storage (run %s)\n\n", st.RunID)
		fmt.Fprintf(&sb, "Listeners: %d | Pollers: %d | Callbacks: %d\n\n", st.Listeners, st.Pollers, st.Callbacks)

		sb.WriteString("Category | Indexed | Subscribers\n")
		for _, name := range sortedKeys(st.Categories, st.Subscribers) {
			fmt.Fprintf(&sb, "%s | %d | %d\n", name, st.Categories[name], st.Subscribers[name])
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func sortedKeys(ms ...map[string]int) []string {
	var keys []string
	for _, m := range ms {
		for k := range m {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}
