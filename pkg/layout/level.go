package layout

import (
	"fmt"
	"strings"
)

// Level is the severity of a layout engine diagnostic.
type Level int

const (
	// LevelVerbose is trace output.
	LevelVerbose Level = iota
	// LevelDebug is debug output.
	LevelDebug
	// LevelInfo is informational output.
	LevelInfo
	// LevelWarn flags suspicious input the engine recovered from.
	LevelWarn
	// LevelError is the highest severity: the input is invalid.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "verbose"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "trace":
		return LevelVerbose, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("layout: unknown level %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so levels can be read from config.
func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
