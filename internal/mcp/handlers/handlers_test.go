package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
	"github.com/btouchard/tablecast/internal/listener"
	"github.com/btouchard/tablecast/internal/service"
	"github.com/btouchard/tablecast/internal/store"
)

func makeReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	return result.Content[0].(mcp.TextContent).Text
}

func newTestHub(t *testing.T) *service.Hub {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	s := listener.New(0)
	t.Cleanup(func() {
		_ = s.Close()
		_ = st.Close()
	})
	return service.NewHub(s, st)
}

// --- ListenerStats ---

func TestListenerStats_ReportsCountsPerCategory(t *testing.T) {
	t.Parallel()
	h := newTestHub(t)
	p := h.CreatePoller()
	h.Activate(h.AddPollerListener(p), event.Topic, nil)
	h.Activate(h.AddPollerListener(p), event.Topic|event.ValueAll, nil)

	result, err := ListenerStats(h)(context.Background(), makeReq(nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, h.RunID())
	assert.Contains(t, text, "Listeners: 2 | Pollers: 1 | Callbacks: 0")
	assert.Contains(t, text, "topic | 2 | 2")
	assert.Contains(t, text, "value | 1 | 1")
	assert.Contains(t, text, "connection | 0 | 0")
}

// --- ListenerAudit ---

func TestListenerAudit_ListsCurrentRun(t *testing.T) {
	t.Parallel()
	h := newTestHub(t)
	l := h.AddPollerListener(h.CreatePoller())
	h.Activate(l, event.Publish, nil)
	h.RemoveListener(l)

	result, err := ListenerAudit(h)(context.Background(), makeReq(map[string]any{}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Listener events (3 found)")
	assert.Contains(t, text, "removed poller listener="+l.String())
	assert.Contains(t, text, "mask=publish")
	assert.NotContains(t, text, "run=")
}

func TestListenerAudit_FiltersByActionAndLimit(t *testing.T) {
	t.Parallel()
	h := newTestHub(t)
	p := h.CreatePoller()
	h.AddPollerListener(p)
	h.AddPollerListener(p)

	result, err := ListenerAudit(h)(context.Background(), makeReq(map[string]any{
		"action": "added",
		"limit":  float64(1),
	}))
	require.NoError(t, err)

	assert.Contains(t, resultText(t, result), "Listener events (1 found)")
}

func TestListenerAudit_WhenEmpty_SaysSo(t *testing.T) {
	t.Parallel()
	h := newTestHub(t)

	result, err := ListenerAudit(h)(context.Background(), makeReq(map[string]any{"all_runs": true}))
	require.NoError(t, err)

	assert.Contains(t, resultText(t, result), "No listener events recorded.")
}

func TestListenerAudit_WhenSinceInvalid_ReturnsError(t *testing.T) {
	t.Parallel()
	h := newTestHub(t)

	result, err := ListenerAudit(h)(context.Background(), makeReq(map[string]any{"since": "yesterday"}))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid since")
}

type failingAudit struct{}

func (failingAudit) RunID() string { return "run" }
func (failingAudit) Audit(store.ListenerEventFilter) ([]store.ListenerEvent, error) {
	return nil, errors.New("database is locked")
}

func TestListenerAudit_WhenStoreFails_ReturnsError(t *testing.T) {
	t.Parallel()

	result, err := ListenerAudit(failingAudit{})(context.Background(), makeReq(nil))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "database is locked")
}

type staticAudit struct{ events []store.ListenerEvent }

func (s staticAudit) RunID() string { return "current" }
func (s staticAudit) Audit(f store.ListenerEventFilter) ([]store.ListenerEvent, error) {
	return s.events, nil
}

func TestListenerAudit_AllRunsShowsRunID(t *testing.T) {
	t.Parallel()
	src := staticAudit{events: []store.ListenerEvent{{
		RunID:     "previous",
		Listener:  uint32(handle.New(handle.KindListener, 0, 3)),
		Kind:      store.KindCallback,
		Action:    store.ActionAdded,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}}

	result, err := ListenerAudit(src)(context.Background(), makeReq(map[string]any{"all_runs": true}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "2026-01-02T03:04:05Z added callback")
	assert.Contains(t, text, "run=previous")
	assert.NotContains(t, text, "poller=")
}

// --- PublishLog ---

type logCall struct {
	level   uint
	file    string
	line    uint
	message string
}

type fakePublisher struct{ calls []logCall }

func (f *fakePublisher) Log(level uint, filename string, line uint, message string) {
	f.calls = append(f.calls, logCall{level, filename, line, message})
}

func TestPublishLog_PublishesWithLevel(t *testing.T) {
	t.Parallel()
	p := &fakePublisher{}

	result, err := PublishLog(p)(context.Background(), makeReq(map[string]any{
		"message":  "brownout detected",
		"level":    "warning",
		"filename": "power.go",
		"line":     float64(88),
	}))
	require.NoError(t, err)

	assert.False(t, result.IsError)
	require.Len(t, p.calls, 1)
	assert.Equal(t, logCall{event.LevelWarning, "power.go", 88, "brownout detected"}, p.calls[0])
}

func TestPublishLog_DefaultsToInfo(t *testing.T) {
	t.Parallel()
	p := &fakePublisher{}

	_, err := PublishLog(p)(context.Background(), makeReq(map[string]any{"message": "hello"}))
	require.NoError(t, err)

	require.Len(t, p.calls, 1)
	assert.Equal(t, event.LevelInfo, p.calls[0].level)
}

func TestPublishLog_RejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing message", map[string]any{}, "message is required"},
		{"unknown level", map[string]any{"message": "x", "level": "loud"}, "unknown level"},
		{"too large", map[string]any{"message": string(make([]byte, maxLogMessageSize+1))}, "message too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &fakePublisher{}

			result, err := PublishLog(p)(context.Background(), makeReq(tt.args))
			require.NoError(t, err)

			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
			assert.Empty(t, p.calls)
		})
	}
}

func TestPublishLog_ReachesLogListeners(t *testing.T) {
	t.Parallel()
	h := newTestHub(t)
	p := h.CreatePoller()
	l := h.AddPollerListener(p)
	h.Activate(l, event.LevelMask(event.LevelWarning, event.LevelCritical), nil)

	_, err := PublishLog(h)(context.Background(), makeReq(map[string]any{"message": "quiet", "level": "info"}))
	require.NoError(t, err)
	_, err = PublishLog(h)(context.Background(), makeReq(map[string]any{"message": "loud", "level": "error"}))
	require.NoError(t, err)

	events := h.Storage().ReadListenerQueue(p)
	require.Len(t, events, 1)
	assert.Equal(t, "loud", events[0].LogMessage().Message)
}

// --- RecentLogs ---

func TestRecentLogs_ListsArchivedMessages(t *testing.T) {
	t.Parallel()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	s := listener.New(0)
	t.Cleanup(func() {
		_ = s.Close()
		_ = st.Close()
	})
	h := service.NewHub(s, st)
	require.NoError(t, st.AddLogRecord(&store.LogRecord{RunID: h.RunID(), Level: event.LevelWarning, Filename: "arm.go", Line: 12, Message: "slipping"}))
	require.NoError(t, st.AddLogRecord(&store.LogRecord{RunID: h.RunID(), Level: event.LevelInfo, Message: "routine"}))
	require.NoError(t, st.AddLogRecord(&store.LogRecord{RunID: "previous", Level: event.LevelError, Message: "old"}))

	result, err := RecentLogs(h)(context.Background(), makeReq(map[string]any{"level": "warning"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Log messages (1 found)")
	assert.Contains(t, text, "[warning] arm.go:12 slipping")
	assert.NotContains(t, text, "routine")
	assert.NotContains(t, text, "run=")

	result, err = RecentLogs(h)(context.Background(), makeReq(map[string]any{"all_runs": true}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "Log messages (3 found)")
	assert.Contains(t, text, "old run=previous")
}

func TestRecentLogs_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	result, err := RecentLogs(newTestHub(t))(context.Background(), makeReq(map[string]any{"level": "loud"}))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown level")
}

func TestRecentLogs_WhenEmpty_SaysSo(t *testing.T) {
	t.Parallel()

	result, err := RecentLogs(newTestHub(t))(context.Background(), makeReq(nil))
	require.NoError(t, err)

	assert.Contains(t, resultText(t, result), "No archived log messages.")
}
