package backend

import (
	"errors"
	"fmt"
)

// Error represents a failure in plan construction or backend execution.
//
// Failure categories:
//   - Invalid coefficient: caller supplied a negative or non-finite coef;
//     detected before any backend work
//   - Type mismatch: measure column is not numeric; surfaced from the
//     backend's aggregation attempt, not pre-checked here
//   - Execution failure: connectivity, syntax rejection, permission, or
//     quota errors from the underlying store, carried unmodified in Err
//
// Error carries the engine and offending statement so failures are
// diagnosable without retry or fallback logic in this layer.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Engine identifies the backend that produced the failure.
	Engine string

	// Stmt is the offending expression or statement, when known.
	Stmt string

	// Err is the underlying backend error, propagated verbatim.
	Err error
}

// ErrorCode categorizes backend errors.
type ErrorCode string

const (
	// ErrCodeInvalidCoef indicates a negative or non-finite IQR coefficient.
	ErrCodeInvalidCoef ErrorCode = "INVALID_COEF"

	// ErrCodeTypeMismatch indicates the measure column is not numeric.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeBadPlan indicates the backend cannot express a plan operation.
	// This is how the Generic fallback for an unsupported engine surfaces.
	ErrCodeBadPlan ErrorCode = "BAD_PLAN"

	// ErrCodeExecFailed indicates the underlying store rejected or failed
	// the execution request.
	ErrCodeExecFailed ErrorCode = "EXEC_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Engine != "" {
		msg += fmt.Sprintf(" (engine=%s)", e.Engine)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying backend error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInvalidCoef reports whether err is an invalid-coefficient error.
// Uses errors.As to handle wrapped errors.
func IsInvalidCoef(err error) bool {
	return hasCode(err, ErrCodeInvalidCoef)
}

// IsTypeMismatch reports whether err is a measure type mismatch.
func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

// IsExecFailed reports whether err is a backend execution failure.
func IsExecFailed(err error) bool {
	return hasCode(err, ErrCodeExecFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// NewInvalidCoefError creates an Error for a rejected IQR coefficient.
func NewInvalidCoefError(coef float64) *Error {
	return &Error{
		Code:    ErrCodeInvalidCoef,
		Message: fmt.Sprintf("coefficient must be a non-negative finite number, got %v", coef),
	}
}

// NewExecError wraps a backend execution failure with diagnostic context.
// The underlying error is carried verbatim; no retry, no suppression.
func NewExecError(engine, stmt string, err error) *Error {
	return &Error{
		Code:    ErrCodeExecFailed,
		Message: "backend execution failed",
		Engine:  engine,
		Stmt:    stmt,
		Err:     err,
	}
}
