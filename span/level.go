package span

import (
	"encoding"
	"fmt"
	"strings"
)

// Level describes verbosity of a span.
type Level int8

const (
	LevelTrace Level = iota - 2
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelValueMap = map[Level]string{
	LevelTrace: "trace",
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

func (l Level) String() string {
	v, ok := levelValueMap[l]
	if !ok {
		return fmt.Sprintf("level-invalid(%d)", l)
	}

	return v
}

// Valid checks if this is one of the known levels.
func (l Level) Valid() bool {
	_, ok := levelValueMap[l]
	return ok
}

var (
	_ encoding.TextMarshaler   = Level(0)
	_ encoding.TextUnmarshaler = (*Level)(nil)
)

// MarshalText for configs and event dumps.
func (l Level) MarshalText() ([]byte, error) {
	v, ok := levelValueMap[l]
	if !ok {
		return nil, fmt.Errorf("cannot marshal invalid Level(%d)", l)
	}

	return []byte(v), nil
}

// UnmarshalText for setting values with configs, CLI, etc. Names are case-insensitive.
func (l *Level) UnmarshalText(rawtext []byte) error {
	v, err := ParseLevel(string(rawtext))
	if err != nil {
		return err
	}

	*l = v
	return nil
}

// ParseLevel parses level name, "warning" is accepted as an alias of warn.
func ParseLevel(text string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(text))
	if name == "warning" {
		return LevelWarn, nil
	}

	for k, v := range levelValueMap {
		if v == name {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown level %q", text)
}
