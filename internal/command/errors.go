package command

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCommand means the command name has no registry entry.
var ErrUnsupportedCommand = errors.New("unsupported command")

// ValidationError reports an operator-correctable problem with the
// submitted command fields.
type ValidationError struct {
	Command string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid field %q: %s", e.Command, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

func invalidField(command, field, reason string) *ValidationError {
	return &ValidationError{Command: command, Field: field, Reason: reason}
}

// TransportError means the broker rejected or never received the
// publish. No command record exists when this is returned.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError means a store write failed after the broker
// accepted the publish. The device may already have the command, so
// callers must surface this as a warning rather than a plain failure.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence after publish: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
