package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
)

// MCPSender abstracts the mcp-go server notification methods.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier pushes listener events to MCP clients as
// notifications/message. Value changes are debounced per topic; every
// other event is sent immediately.
type MCPNotifier struct {
	sender   MCPSender
	debounce time.Duration
	clock    clock.Clock

	mu       sync.Mutex
	lastSent map[handle.Handle]time.Time // topic → last value notification time
}

// MCPOption configures an MCPNotifier.
type MCPOption func(*MCPNotifier)

// WithClock sets the clock used for value debouncing.
func WithClock(c clock.Clock) MCPOption {
	return func(n *MCPNotifier) {
		if c != nil {
			n.clock = c
		}
	}
}

// NewMCPNotifier creates an MCPNotifier with the given debounce interval
// for value events.
func NewMCPNotifier(sender MCPSender, debounce time.Duration, opts ...MCPOption) *MCPNotifier {
	if debounce <= 0 {
		debounce = time.Second
	}
	n := &MCPNotifier{
		sender:   sender,
		debounce: debounce,
		clock:    clock.WallClock,
		lastSent: make(map[handle.Handle]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends an MCP notification for the given event.
func (n *MCPNotifier) Notify(e event.Event) {
	switch {
	case e.LogMessage() != nil:
		n.sendLog(e)
	case e.ConnectionInfo() != nil:
		ci := e.ConnectionInfo()
		n.send("info", map[string]any{
			"type":      e.Flags.String(),
			"remote_id": ci.RemoteID,
			"remote_ip": ci.RemoteIP,
			"port":      ci.RemotePort,
			"protocol":  ci.ProtocolVersion,
		})
	case e.TopicInfo() != nil:
		ti := e.TopicInfo()
		if e.Is(event.Unpublish) {
			n.clearDebounce(ti.Topic)
		}
		n.send("info", map[string]any{
			"type":  e.Flags.String(),
			"topic": ti.Name,
			"kind":  ti.TypeString,
		})
	case e.ValueData() != nil:
		n.sendValue(e)
	default:
		slog.Debug("mcp notifier: unsupported event", "flags", e.Flags.String())
	}
}

func (n *MCPNotifier) sendLog(e event.Event) {
	lm := e.LogMessage()
	n.send(event.LevelName(lm.Level), map[string]any{
		"type":    "log",
		"file":    lm.Filename,
		"line":    lm.Line,
		"message": lm.Message,
	})
}

// sendValue sends a value change unless one was sent for the same topic
// within the debounce interval.
func (n *MCPNotifier) sendValue(e event.Event) {
	vd := e.ValueData()

	now := n.clock.Now()
	n.mu.Lock()
	last, ok := n.lastSent[vd.Topic]
	if ok && now.Sub(last) < n.debounce {
		n.mu.Unlock()
		return
	}
	n.lastSent[vd.Topic] = now
	n.mu.Unlock()

	n.send("debug", map[string]any{
		"type":  e.Flags.String(),
		"topic": vd.Topic.String(),
		"value": vd.Value.Data,
		"time":  vd.Value.Time,
	})
}

func (n *MCPNotifier) send(level string, data map[string]any) {
	n.sender.SendNotificationToAllClients("notifications/message", map[string]any{
		"level":  level,
		"logger": "tablecast",
		"data":   data,
	})
}

// clearDebounce forgets an unpublished topic.
func (n *MCPNotifier) clearDebounce(topic handle.Handle) {
	n.mu.Lock()
	delete(n.lastSent, topic)
	n.mu.Unlock()
}
