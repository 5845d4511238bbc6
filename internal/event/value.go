package event

// ValueType is the wire type of a topic value.
type ValueType uint

const (
	TypeUnassigned ValueType = iota
	TypeBoolean
	TypeInteger
	TypeFloat
	TypeDouble
	TypeString
	TypeRaw
	TypeBooleanArray
	TypeIntegerArray
	TypeFloatArray
	TypeDoubleArray
	TypeStringArray
)

// Value is a timestamped topic value. Time and ServerTime are in
// microseconds.
type Value struct {
	Type       ValueType
	Data       any
	Time       int64
	ServerTime int64
}

// IsValid reports whether the value has been assigned.
func (v Value) IsValid() bool { return v.Type != TypeUnassigned }
