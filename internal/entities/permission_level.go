package entities

import "fmt"

// PermissionLevel is the ordered decision type gating whole actions.
// The ordering is significant: a level satisfies every requirement at or
// below it (NONE < READONLY < READWRITE < ALL).
type PermissionLevel int

const (
	LevelNone PermissionLevel = iota
	LevelReadOnly
	LevelReadWrite
	LevelAll
)

// ParsePermissionLevel converts the textual form used in policy documents
// into a PermissionLevel. Unknown names are a configuration defect.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch s {
	case "NONE":
		return LevelNone, nil
	case "READONLY":
		return LevelReadOnly, nil
	case "READWRITE":
		return LevelReadWrite, nil
	case "ALL":
		return LevelAll, nil
	default:
		return LevelNone, fmt.Errorf("unknown permission level: %q", s)
	}
}

func (l PermissionLevel) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelReadOnly:
		return "READONLY"
	case LevelReadWrite:
		return "READWRITE"
	case LevelAll:
		return "ALL"
	default:
		return fmt.Sprintf("PermissionLevel(%d)", int(l))
	}
}

// AtLeast reports whether l meets or exceeds the required level.
func (l PermissionLevel) AtLeast(required PermissionLevel) bool {
	return l >= required
}
