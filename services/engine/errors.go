package engine

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid strategy configuration. It is always
// raised before any simulation starts.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

func configErrf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a strategy validation failure.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// TranslationError reports a condition expression that references a column
// absent from the window schema. It aborts the leg that owns the condition.
type TranslationError struct {
	Name string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("condition references unknown column %q", e.Name)
}

// ErrExitUnresolved means no row of a post-entry window satisfied any exit
// reason, day-end included. Day-end should always eventually fire, so this
// signals a configuration or data defect and is fatal for the leg.
var ErrExitUnresolved = errors.New("no exit reason resolved in post-entry window")
