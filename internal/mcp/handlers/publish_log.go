package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/tablecast/internal/event"
)

const maxLogMessageSize = 4096

// LogPublisher publishes a message on the network table log channel.
type LogPublisher interface {
	Log(level uint, filename string, line uint, message string)
}

// PublishLog returns a handler that broadcasts a log message to every log
// listener.
func PublishLog(p LogPublisher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		message, _ := args["message"].(string)
		if message == "" {
			return mcp.NewToolResultError("message is required"), nil
		}
		if len(message) > maxLogMessageSize {
			return mcp.NewToolResultError(fmt.Sprintf("message too large: %d bytes (max %d)", len(message), maxLogMessageSize)), nil
		}

		levelName := "info"
		if l, ok := args["level"].(string); ok && l != "" {
			levelName = l
		}
		level, ok := event.ParseLevel(levelName)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown level %q", levelName)), nil
		}

		filename, _ := args["filename"].(string)
		var line uint
		if n, ok := args["line"].(float64); ok && n > 0 {
			line = uint(n)
		}

		p.Log(level, filename, line, message)

		return mcp.NewToolResultText(fmt.Sprintf("Published %s log message.", levelName)), nil
	}
}
