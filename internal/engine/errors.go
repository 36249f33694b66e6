package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/flagsweep/internal/ir"
)

// RuntimeError represents a failure detected while sweeping.
//
// Runtime errors include:
//   - Apply failed: an owner's ApplyRenderFlags returned an error
//   - Journal failed: the sweep record could not be written
//   - Invalid order: the scheduler was configured with a bad priority order
//
// The error wraps the underlying cause, so errors.Is/As see through it.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Priority is the sweep that failed (zero if not sweep-related).
	Priority ir.Priority

	// OwnerID identifies the owner being flushed.
	OwnerID string

	// Tick is the scheduler tick the failure happened in.
	Tick int64

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeApplyFailed indicates an owner failed to apply its flags.
	ErrCodeApplyFailed RuntimeErrorCode = "APPLY_FAILED"

	// ErrCodeJournalFailed indicates the sweep journal rejected a record.
	ErrCodeJournalFailed RuntimeErrorCode = "JOURNAL_FAILED"

	// ErrCodeInvalidOrder indicates a priority order that is not a
	// permutation of every declared priority.
	ErrCodeInvalidOrder RuntimeErrorCode = "INVALID_ORDER"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.OwnerID != "" {
		msg = fmt.Sprintf("%s (priority=%s, owner=%s, tick=%d)", msg, e.Priority, e.OwnerID, e.Tick)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsApplyError reports whether err is an owner apply failure.
// Uses errors.As to handle wrapped errors.
func IsApplyError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeApplyFailed
	}
	return false
}

// IsJournalError reports whether err is a journal write failure.
func IsJournalError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeJournalFailed
	}
	return false
}

func applyError(p ir.Priority, ownerID string, tick int64, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeApplyFailed,
		Message:  "apply render flags",
		Priority: p,
		OwnerID:  ownerID,
		Tick:     tick,
		Err:      err,
	}
}

func journalError(p ir.Priority, ownerID string, tick int64, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeJournalFailed,
		Message:  "write sweep record",
		Priority: p,
		OwnerID:  ownerID,
		Tick:     tick,
		Err:      err,
	}
}
