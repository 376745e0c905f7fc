package occ

import (
	"errors"
	"fmt"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

// TxError represents a failed transaction operation.
//
// Transaction errors include:
//   - Conflict: a concurrent commit invalidated one of the transaction's reads
//   - Illegal state: the transaction is already committed, aborted, or its
//     store was shut down
//   - Store access: the FactStore failed underneath a read or commit
//
// TxError includes structured fields for diagnostics. Recovery from a
// conflict (retrying with a fresh transaction) is the caller's job.
type TxError struct {
	// Code identifies the error category.
	Code TxErrorCode

	// Message is a human-readable description.
	Message string

	// TxID identifies the affected transaction.
	TxID string

	// Generation is the commit that caused a conflict.
	Generation int64

	// Statement is the added or removed statement that caused a conflict.
	Statement *ir.Statement

	// Pattern is the logged read that the statement invalidated.
	Pattern pattern.GraphPattern

	// Err is the underlying cause (store access errors).
	Err error
}

// TxErrorCode categorizes transaction errors.
type TxErrorCode string

const (
	// ErrCodeConflict indicates commit-time validation failed.
	ErrCodeConflict TxErrorCode = "CONFLICT"

	// ErrCodeIllegalState indicates an operation on a finished transaction.
	ErrCodeIllegalState TxErrorCode = "ILLEGAL_STATE"

	// ErrCodeStoreAccess indicates the FactStore returned an error.
	ErrCodeStoreAccess TxErrorCode = "STORE_ACCESS"
)

// Error implements the error interface.
func (e *TxError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.TxID != "" {
		msg = fmt.Sprintf("%s (tx=%s)", msg, e.TxID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying store error.
func (e *TxError) Unwrap() error {
	return e.Err
}

// IsConflict returns true if the error is a commit conflict.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsIllegalState returns true if the error is an illegal state error.
func IsIllegalState(err error) bool {
	return hasCode(err, ErrCodeIllegalState)
}

// IsStoreAccess returns true if the error wraps a FactStore failure.
func IsStoreAccess(err error) bool {
	return hasCode(err, ErrCodeStoreAccess)
}

func hasCode(err error, code TxErrorCode) bool {
	var te *TxError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// NewConflictError creates a TxError for a failed validation.
func NewConflictError(txID string, c *Conflict) *TxError {
	st := c.Statement
	verb := "added"
	if c.Removed {
		verb = "removed"
	}
	return &TxError{
		Code:       ErrCodeConflict,
		Message:    fmt.Sprintf("statement %s %s at generation %d invalidates read %s", st, verb, c.Generation, pattern.Format(c.Read)),
		TxID:       txID,
		Generation: c.Generation,
		Statement:  &st,
		Pattern:    c.Read,
	}
}

// NewIllegalStateError creates a TxError for an operation in the wrong state.
func NewIllegalStateError(txID, op string, state State) *TxError {
	return &TxError{
		Code:    ErrCodeIllegalState,
		Message: fmt.Sprintf("cannot %s: transaction is %s", op, state),
		TxID:    txID,
	}
}

// NewStoreAccessError wraps a FactStore failure.
func NewStoreAccessError(txID, op string, err error) *TxError {
	return &TxError{
		Code:    ErrCodeStoreAccess,
		Message: op + " failed",
		TxID:    txID,
		Err:     err,
	}
}
