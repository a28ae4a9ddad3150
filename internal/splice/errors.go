package splice

import (
	"errors"
	"fmt"

	"github.com/roach88/splice/internal/ir"
)

// ErrorCode categorizes splice failures.
type ErrorCode string

const (
	// ErrCodeShortAnswers: the answer vector does not reach every column
	// the layout addresses. Nothing was written.
	ErrCodeShortAnswers ErrorCode = "SHORT_ANSWERS"

	// ErrCodeLock: the lock service failed (not a timeout; timeouts retry).
	ErrCodeLock ErrorCode = "LOCK_FAILED"

	// ErrCodeStorage: a sheet read or write failed mid-splice.
	ErrCodeStorage ErrorCode = "STORAGE_FAILED"

	// ErrCodeRelease: the lock could not be released.
	ErrCodeRelease ErrorCode = "RELEASE_FAILED"
)

// Error is a failed splice invocation.
type Error struct {
	Code     ErrorCode
	Token    string
	Identity ir.Identity
	Sheet    string // empty when no sheet is involved
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("%s: %v (token=%s, identity=%s, sheet=%s)", e.Code, e.Err, e.Token, e.Identity.Short(), e.Sheet)
	}
	return fmt.Sprintf("%s: %v (token=%s, identity=%s)", e.Code, e.Err, e.Token, e.Identity.Short())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is a storage failure.
// Uses errors.As to handle wrapped errors.
func IsStorageError(err error) bool {
	return hasCode(err, ErrCodeStorage)
}

// IsReleaseError reports whether err includes a lock release failure.
func IsReleaseError(err error) bool {
	return hasCode(err, ErrCodeRelease)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) && se.Code == code {
		return true
	}
	// errors.Join results carry several errors; errors.As stops at the first.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if hasCode(e, code) {
				return true
			}
		}
	}
	return false
}
