package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so TOML can carry values like "30s".
type Duration time.Duration

// String returns the string representation of Duration
func (d Duration) String() string {
	return time.Duration(d).String()
}

// AsDuration converts a config.Duration to a time.Duration
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration the way UnmarshalText reads it.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
