package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a write collides with existing state,
	// e.g. a second review for the same booking.
	ErrConflict = errors.New("conflict")
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(msgs, "; "))
}

// NotFoundError names the missing entity. errors.Is(err, ErrNotFound) holds.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientInventoryError is a permanent rejection. Requested and
// Available are for logs only; Error() does not expose them.
type InsufficientInventoryError struct {
	Unit      UnitRef
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	if e.Unit.Kind == KindTripType {
		return "not enough tickets available"
	}
	return "this number of rooms is not available"
}

// TransientLockError means the inventory lock could not be taken in time.
// Nothing was written; the caller may retry.
type TransientLockError struct {
	Unit UnitRef
	Err  error
}

func (e *TransientLockError) Error() string {
	return fmt.Sprintf("lock %s %d: %v", e.Unit.Kind, e.Unit.ID, e.Err)
}

func (e *TransientLockError) Unwrap() error { return e.Err }

// PersistenceError wraps an unexpected storage failure. The transaction it
// happened in has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsTransient reports whether err is safe to retry as-is.
func IsTransient(err error) bool {
	var tl *TransientLockError
	return errors.As(err, &tl)
}
