package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFlag_MapsNamedLevels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelCriticalFlag, LevelFlag(LevelCritical))
	assert.Equal(t, LevelErrorFlag, LevelFlag(LevelError))
	assert.Equal(t, LevelInfoFlag, LevelFlag(LevelInfo))
	assert.Equal(t, LevelDebug4Flag, LevelFlag(LevelDebug4))
}

func TestLevelFlag_RoundsDownBetweenLevels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelWarningFlag, LevelFlag(35))
	assert.Equal(t, LevelCriticalFlag, LevelFlag(99))
	assert.Equal(t, LevelDebug4Flag, LevelFlag(0))
}

func TestLevelMask_CoversInclusiveRange(t *testing.T) {
	t.Parallel()

	mask := LevelMask(LevelWarning, LevelCritical)

	assert.Equal(t, LevelWarningFlag|LevelErrorFlag|LevelCriticalFlag, mask)
	assert.Equal(t, LogLevels, LevelMask(0, 100))
	assert.Equal(t, None, LevelMask(LevelError, LevelWarning))
}

func TestLogLevels_StayOutsideCategoryBits(t *testing.T) {
	t.Parallel()

	categories := Connection | Topic | ValueAll | LogMessage | TimeSync | Immediate
	assert.False(t, LogLevels.Has(categories))
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", None.String())
	assert.Equal(t, "connected|disconnected", Connection.String())
	assert.Equal(t, "publish", Publish.String())
	assert.Equal(t, "log|log_levels", (LogMessage | LevelInfoFlag).String())
}

func TestEvent_PayloadAccessors(t *testing.T) {
	t.Parallel()

	e := Event{Flags: Publish, Data: &TopicInfo{Name: "/speed"}}

	assert.NotNil(t, e.TopicInfo())
	assert.Equal(t, "/speed", e.TopicInfo().Name)
	assert.Nil(t, e.ConnectionInfo())
	assert.Nil(t, e.ValueData())
	assert.Nil(t, e.LogMessage())
	assert.True(t, e.Is(Topic))
	assert.False(t, e.Is(ValueAll))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want uint
		ok   bool
	}{
		{"critical", LevelCritical, true},
		{"warning", LevelWarning, true},
		{"debug", LevelDebug, true},
		{"warn", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestLevelName_RoundsDown(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "critical", LevelName(LevelCritical))
	assert.Equal(t, "error", LevelName(45))
	assert.Equal(t, "info", LevelName(LevelInfo))
	assert.Equal(t, "debug", LevelName(LevelDebug3))
}

func TestEvent_LogRecordPayload(t *testing.T) {
	t.Parallel()

	rec := &LogRecord{Level: LevelError, Filename: "drive.go", Line: 12, Message: "stalled"}
	e := Event{Flags: LogMessage | LevelErrorFlag, Data: rec}

	require.NotNil(t, e.LogMessage())
	assert.Equal(t, "stalled", e.LogMessage().Message)
	assert.Nil(t, e.TopicInfo())

	c := rec.Clone().(*LogRecord)
	c.Message = "changed"
	assert.Equal(t, "stalled", e.LogMessage().Message)
}
