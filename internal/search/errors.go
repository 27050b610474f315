package search

import (
	"errors"
	"fmt"
)

// SearchError represents an abnormal termination of a witness search.
//
// Exhausting the iteration budget is NOT an error - it is a normal result
// with Found == false. SearchError is reserved for terminations the caller
// must distinguish from exhaustion, chiefly cancellation during a scheduled
// yield between chunks.
type SearchError struct {
	// Code identifies the error category.
	Code SearchErrorCode

	// Message is a human-readable description.
	Message string

	// ExpressionID identifies the expression under search.
	ExpressionID string

	// Iteration is the iteration count reached when the search stopped.
	Iteration int

	// Cause is the underlying error, typically a context error.
	Cause error
}

// SearchErrorCode categorizes search errors.
type SearchErrorCode string

const (
	// ErrCodeCancelled indicates the search was aborted while yielding
	// between chunks.
	ErrCodeCancelled SearchErrorCode = "SEARCH_CANCELLED"
)

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.ExpressionID != "" {
		return fmt.Sprintf("%s: %s (expression=%s, iteration=%d)", e.Code, e.Message, e.ExpressionID, e.Iteration)
	}
	return fmt.Sprintf("%s: %s (iteration=%d)", e.Code, e.Message, e.Iteration)
}

// Unwrap exposes the underlying cause for errors.Is chains.
func (e *SearchError) Unwrap() error { return e.Cause }

// IsCancelled returns true if the error is a search cancellation.
// Uses errors.As to handle wrapped errors.
func IsCancelled(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code == ErrCodeCancelled
	}
	return false
}

func newCancelledError(expressionID string, iteration int, cause error) *SearchError {
	return &SearchError{
		Code:         ErrCodeCancelled,
		Message:      "search aborted during scheduled yield",
		ExpressionID: expressionID,
		Iteration:    iteration,
		Cause:        cause,
	}
}
