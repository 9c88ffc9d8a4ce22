package types

import (
	"errors"
	"fmt"
)

// ============================================================================
// Error kinds
// ============================================================================

// Every user-facing failure of the model wraps one of these, so callers can
// branch with errors.Is.
var (
	ErrInvalidFormat           = errors.New("invalid format")
	ErrDuplicateEntity         = errors.New("duplicate entity")
	ErrEntityNotFound          = errors.New("entity not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrMachineDisabled         = errors.New("machine disabled")
	ErrInvalidDuration         = errors.New("invalid duration")
	ErrCorruptedData           = errors.New("corrupted data")
	ErrDanglingReference       = errors.New("dangling reference")
	ErrEntityInUse             = errors.New("entity in use")
	ErrAuthentication          = errors.New("authentication failed")
)

// ModelError carries an error kind and a human readable message.
type ModelError struct {
	Kind error
	Msg  string
}

func (e *ModelError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ModelError) Unwrap() error { return e.Kind }

// Errorf builds a ModelError of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &ModelError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// InvariantViolation is panicked when the model detects that one of its own
// operations broke an invariant. It is a bug, never a user error.
type InvariantViolation struct {
	Msg string
}

func (v InvariantViolation) Error() string {
	return "internal invariant violation: " + v.Msg
}
