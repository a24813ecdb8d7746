package registry

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned by Lookup for an empty title.
var ErrEmptyQuery = errors.New("lookup: no query")

// FetchError reports why a document could not be fetched.
type FetchError struct {
	// Code identifies the error category.
	Code FetchErrorCode

	// ID is the normalised id that was requested.
	ID string

	// Err is the underlying cause, if any.
	Err error
}

// FetchErrorCode categorizes fetch errors.
type FetchErrorCode string

const (
	// ErrCodeNotFound indicates the registry has no such document.
	ErrCodeNotFound FetchErrorCode = "NOT_FOUND"

	// ErrCodeParse indicates the stored document is malformed.
	ErrCodeParse FetchErrorCode = "PARSE_ERROR"

	// ErrCodeInvalidID indicates the id cannot name a document.
	ErrCodeInvalidID FetchErrorCode = "INVALID_ID"

	// ErrCodeRead indicates the document exists but could not be read.
	ErrCodeRead FetchErrorCode = "READ_ERROR"
)

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.ID)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsNotFound returns true if err is a not-found fetch error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsParseError returns true if err is a parse fetch error.
func IsParseError(err error) bool {
	return hasCode(err, ErrCodeParse)
}

// IsInvalidID returns true if err is an invalid-id fetch error.
func IsInvalidID(err error) bool {
	return hasCode(err, ErrCodeInvalidID)
}

// IsReadError returns true if err is a read fetch error.
func IsReadError(err error) bool {
	return hasCode(err, ErrCodeRead)
}

func hasCode(err error, code FetchErrorCode) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
