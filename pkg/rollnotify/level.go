// level.go defines item severity levels and the minimum-level filter.

package rollnotify

import (
	"fmt"
	"strings"
)

// Level is the severity of an item.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

var levelRanks = map[Level]int{
	LevelDebug:    0,
	LevelInfo:     1,
	LevelWarning:  2,
	LevelError:    3,
	LevelCritical: 4,
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	_, ok := levelRanks[l]
	return ok
}

// ParseLevel converts a string into a Level. "warn" is accepted as an alias
// for warning.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l == "warn" {
		l = LevelWarning
	}
	if !l.Valid() {
		return "", &Error{Op: "parse level", Kind: KindValidation, Err: fmt.Errorf("unknown level %q", s)}
	}
	return l, nil
}

// levelGteMinimum reports whether an item at level passes the minimum filter.
// Unknown levels on either side never block delivery.
func levelGteMinimum(level, minimum Level) bool {
	lr, ok := levelRanks[level]
	if !ok {
		return true
	}
	mr, ok := levelRanks[minimum]
	if !ok {
		return true
	}
	return lr >= mr
}
