package core

import (
	"errors"
	"fmt"
)

var (
	// ErrProfileNotFound is returned when a profile name resolves to nothing
	// in the registry (neither cache, external store nor disk).
	ErrProfileNotFound = errors.New("profile not found")

	// ErrSessionNotFound is returned when session metadata is requested for
	// an id the store has never seen (or whose entry has expired).
	ErrSessionNotFound = errors.New("session not found")
)

// ConfigError reports an invalid agent or model configuration, such as an
// unknown agent kind or an unsupported model provider. It is fatal to the
// construction attempt it occurred in but retried on the session's next
// message.
type ConfigError struct {
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}
