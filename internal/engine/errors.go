package engine

import (
	"errors"
	"fmt"
)

// Error represents a coordinator operation that was refused.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// IDs lists the documents involved, if any.
	IDs []string
}

// ErrorCode categorizes coordinator errors.
type ErrorCode string

const (
	// ErrCodeNotCached indicates an operation named a document that is not
	// in the cache.
	ErrCodeNotCached ErrorCode = "NOT_CACHED"

	// ErrCodeBusy indicates the operation cannot run while a resolution is
	// pending.
	ErrCodeBusy ErrorCode = "BUSY"

	// ErrCodeNothingToResolve indicates a resolve request selected no
	// documents.
	ErrCodeNothingToResolve ErrorCode = "NOTHING_TO_RESOLVE"
)

func (e *Error) Error() string {
	if len(e.IDs) > 0 {
		return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.IDs)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotCached returns true if err reports documents missing from the cache.
// Uses errors.As to handle wrapped errors.
func IsNotCached(err error) bool {
	return hasCode(err, ErrCodeNotCached)
}

// IsBusy returns true if err was caused by a pending resolution.
func IsBusy(err error) bool {
	return hasCode(err, ErrCodeBusy)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func newNotCachedError(ids []string) *Error {
	return &Error{Code: ErrCodeNotCached, Message: "documents are not cached", IDs: ids}
}

func newBusyError(op string) *Error {
	return &Error{Code: ErrCodeBusy, Message: op + " is not allowed while a resolve is pending"}
}
