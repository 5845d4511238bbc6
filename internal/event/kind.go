package event

import "strings"

// Kind is a bitmask of event categories, used both as a listener's
// interest mask and as the flags carried by a delivered event.
type Kind uint32

const (
	None         Kind = 0
	Immediate    Kind = 0x01
	Connected    Kind = 0x02
	Disconnected Kind = 0x04
	Connection   Kind = Connected | Disconnected
	Publish      Kind = 0x08
	Unpublish    Kind = 0x10
	Properties   Kind = 0x20
	Topic        Kind = Publish | Unpublish | Properties
	ValueRemote  Kind = 0x40
	ValueLocal   Kind = 0x80
	ValueAll     Kind = ValueRemote | ValueLocal
	LogMessage   Kind = 0x100
	TimeSync     Kind = 0x200
)

// Log severity levels, highest first.
const (
	LevelCritical uint = 50
	LevelError    uint = 40
	LevelWarning  uint = 30
	LevelInfo     uint = 20
	LevelDebug    uint = 10
	LevelDebug1   uint = 9
	LevelDebug2   uint = 8
	LevelDebug3   uint = 7
	LevelDebug4   uint = 6
)

// Per-level log bits. A listener may subscribe to a subset of levels
// through these bits alone, without LogMessage; it still belongs to the
// log category.
const (
	LevelCriticalFlag Kind = 1 << (16 + iota)
	LevelErrorFlag
	LevelWarningFlag
	LevelInfoFlag
	LevelDebugFlag
	LevelDebug1Flag
	LevelDebug2Flag
	LevelDebug3Flag
	LevelDebug4Flag

	LogLevels Kind = 0x1ff0000
)

var levelFlags = []struct {
	level uint
	flag  Kind
}{
	{LevelCritical, LevelCriticalFlag},
	{LevelError, LevelErrorFlag},
	{LevelWarning, LevelWarningFlag},
	{LevelInfo, LevelInfoFlag},
	{LevelDebug, LevelDebugFlag},
	{LevelDebug1, LevelDebug1Flag},
	{LevelDebug2, LevelDebug2Flag},
	{LevelDebug3, LevelDebug3Flag},
	{LevelDebug4, LevelDebug4Flag},
}

// LevelFlag returns the level bit for a log level. Levels between two
// named levels round down.
func LevelFlag(level uint) Kind {
	for _, lf := range levelFlags {
		if level >= lf.level {
			return lf.flag
		}
	}
	return LevelDebug4Flag
}

// LevelMask returns the level bits for every named level in [min, max].
func LevelMask(min, max uint) Kind {
	var mask Kind
	for _, lf := range levelFlags {
		if min <= lf.level && max >= lf.level {
			mask |= lf.flag
		}
	}
	return mask
}

var levelNames = []struct {
	name  string
	level uint
}{
	{"critical", LevelCritical},
	{"error", LevelError},
	{"warning", LevelWarning},
	{"info", LevelInfo},
	{"debug", LevelDebug},
}

// ParseLevel returns the log level for one of critical, error, warning,
// info or debug.
func ParseLevel(name string) (uint, bool) {
	for _, ln := range levelNames {
		if ln.name == name {
			return ln.level, true
		}
	}
	return 0, false
}

// LevelName names a log level, rounding down to the nearest named level.
func LevelName(level uint) string {
	for _, ln := range levelNames {
		if level >= ln.level {
			return ln.name
		}
	}
	return "debug"
}

// Has reports whether k shares any bit with other.
func (k Kind) Has(other Kind) bool { return k&other != 0 }

var kindNames = []struct {
	kind Kind
	name string
}{
	{Immediate, "immediate"},
	{Connected, "connected"},
	{Disconnected, "disconnected"},
	{Publish, "publish"},
	{Unpublish, "unpublish"},
	{Properties, "properties"},
	{ValueRemote, "value_remote"},
	{ValueLocal, "value_local"},
	{LogMessage, "log"},
	{TimeSync, "timesync"},
}

func (k Kind) String() string {
	if k == None {
		return "none"
	}
	var parts []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			parts = append(parts, kn.name)
		}
	}
	if k&LogLevels != 0 {
		parts = append(parts, "log_levels")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}
