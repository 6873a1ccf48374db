// Package invariant defines the fatal error class of the engine.
//
// Routing and partition invariants are programming or configuration errors,
// never operational conditions: a message for an entity nobody owns cannot be
// retried into existence. Violations are logged with their diagnostic fields
// and then panic with an *Error. Nothing in the engine recovers them.
package invariant

import (
	"errors"
	"fmt"
	"log/slog"
)

// Code categorizes invariant violations.
type Code string

const (
	// ErrCodeUnknownDestination indicates a message addressed to an id absent
	// from the partitioner of its queue (dead, unknown, or wrong entity kind).
	ErrCodeUnknownDestination Code = "UNKNOWN_DESTINATION"

	// ErrCodeLeftoverMessages indicates messages remained after every entity
	// of a phase took its contiguous sub-range.
	ErrCodeLeftoverMessages Code = "LEFTOVER_MESSAGES"

	// ErrCodeNonPositiveVisit indicates a visit with End <= Start.
	ErrCodeNonPositiveVisit Code = "NON_POSITIVE_VISIT"

	// ErrCodeUnsortedEntities indicates an entity list that is not strictly
	// ascending by id (duplicate or out-of-order ids).
	ErrCodeUnsortedEntities Code = "UNSORTED_ENTITIES"

	// ErrCodeQueueMisuse indicates a queue consumed while a previous drain
	// handle is still outstanding.
	ErrCodeQueueMisuse Code = "QUEUE_MISUSE"
)

// Error describes one invariant violation.
type Error struct {
	// Code identifies the violation category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Kind names the entity kind or message type involved ("agent", "visit", ...).
	Kind string

	// ID is the offending entity id, when there is one.
	ID int64
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (kind=%s, id=%d)", e.Code, e.Message, e.Kind, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Fail logs the violation at error level and panics with it.
func Fail(code Code, kind string, id int64, format string, args ...any) {
	err := &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Kind:    kind,
		ID:      id,
	}
	slog.Error("invariant violated",
		"code", string(err.Code),
		"kind", err.Kind,
		"id", err.ID,
		"message", err.Message,
	)
	panic(err)
}

// Is reports whether err is an invariant violation with the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

// Capture runs fn and returns the invariant violation it panicked with, or
// nil if it returned normally. Any other panic is re-raised.
// Intended for tests.
func Capture(fn func()) (err *Error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ie, ok := r.(*Error)
		if !ok {
			panic(r)
		}
		err = ie
	}()
	fn()
	return nil
}
