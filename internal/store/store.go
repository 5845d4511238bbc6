package store

import (
	"time"
)

// Store is the persistence interface for the listener audit trail and the
// log archive. Defined at the consumer side per Go conventions.
type Store interface {
	AddListenerEvent(e *ListenerEvent) error
	ListListenerEvents(f ListenerEventFilter) ([]ListenerEvent, error)

	// Log archive
	AddLogRecord(r *LogRecord) error
	ListLogRecords(f LogRecordFilter) ([]LogRecord, error)

	// Maintenance
	Cleanup(retention time.Duration) error
	Close() error
}

// Listener kinds.
const (
	KindCallback = "callback"
	KindPoller   = "poller"
)

// Lifecycle actions.
const (
	ActionAdded     = "added"
	ActionActivated = "activated"
	ActionRemoved   = "removed"
)

// ListenerEvent is one lifecycle transition of a listener.
type ListenerEvent struct {
	ID        int64
	RunID     string
	Listener  uint32
	Poller    uint32
	Mask      uint32
	Kind      string
	Action    string
	CreatedAt time.Time
}

// ListenerEventFilter specifies criteria for listing listener events.
type ListenerEventFilter struct {
	RunID    string
	Listener uint32
	Action   string
	Limit    int
	Since    time.Time
}

// LogRecord is an archived log-message event.
type LogRecord struct {
	ID        int64
	RunID     string
	Level     uint
	Filename  string
	Line      uint
	Message   string
	CreatedAt time.Time
}

// LogRecordFilter specifies criteria for listing archived log records.
type LogRecordFilter struct {
	RunID    string
	MinLevel uint
	Limit    int
	Since    time.Time
}
