package event

import "github.com/btouchard/tablecast/internal/handle"

// Event is a single delivery to a listener. The listener handle tells a
// poller shared by several listeners who the event belongs to.
type Event struct {
	Listener handle.Handle
	Flags    Kind
	Data     Data
}

// Data is the payload of an Event: one of *ConnectionInfo, *TopicInfo,
// *ValueEventData or *LogRecord.
type Data interface {
	// Clone returns a shallow copy, so each queued event owns its payload.
	Clone() Data
	eventData()
}

// ConnectionInfo describes a remote peer.
type ConnectionInfo struct {
	RemoteID        string
	RemoteIP        string
	RemotePort      uint
	LastUpdate      int64
	ProtocolVersion uint
}

// TopicInfo describes a published topic.
type TopicInfo struct {
	Topic      handle.Handle
	Name       string
	Type       ValueType
	TypeString string
	Properties string
}

// ValueEventData carries a topic value change.
type ValueEventData struct {
	Topic    handle.Handle
	Subentry handle.Handle
	Value    Value
}

// LogRecord is a log record routed through the listener system.
type LogRecord struct {
	Level    uint
	Filename string
	Line     uint
	Message  string
}

func (*ConnectionInfo) eventData() {}
func (*TopicInfo) eventData()      {}
func (*ValueEventData) eventData() {}
func (*LogRecord) eventData()      {}

func (ci *ConnectionInfo) Clone() Data { c := *ci; return &c }
func (ti *TopicInfo) Clone() Data      { c := *ti; return &c }
func (vd *ValueEventData) Clone() Data { c := *vd; return &c }
func (lm *LogRecord) Clone() Data      { c := *lm; return &c }

// ConnectionInfo returns the connection payload, or nil.
func (e *Event) ConnectionInfo() *ConnectionInfo {
	ci, _ := e.Data.(*ConnectionInfo)
	return ci
}

// TopicInfo returns the topic payload, or nil.
func (e *Event) TopicInfo() *TopicInfo {
	ti, _ := e.Data.(*TopicInfo)
	return ti
}

// ValueData returns the value payload, or nil.
func (e *Event) ValueData() *ValueEventData {
	vd, _ := e.Data.(*ValueEventData)
	return vd
}

// LogMessage returns the log payload, or nil.
func (e *Event) LogMessage() *LogRecord {
	lm, _ := e.Data.(*LogRecord)
	return lm
}

// Is reports whether the event flags share any bit with kind.
func (e *Event) Is(kind Kind) bool { return e.Flags.Has(kind) }
