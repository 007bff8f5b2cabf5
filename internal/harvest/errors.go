package harvest

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeTransient  ErrorCode = "TRANSIENT"
	ErrCodePermanent  ErrorCode = "PERMANENT"
	ErrCodeExtraction ErrorCode = "EXTRACTION"
	ErrCodeProgrammer ErrorCode = "PROGRAMMER"
	ErrCodeCanceled   ErrorCode = "CANCELED"
)

// Error wraps errors with a code so callers can branch with errors.Is
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches a target *Error with the same code. A target without a
// message matches every error of that code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// NewError creates a new Error
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
	}
}

// ErrProgrammer matches every misuse of the collector API
var ErrProgrammer = &Error{Code: ErrCodeProgrammer}

// Collector misuse. All of these match ErrProgrammer.
var (
	ErrSubmitAfterClose = &Error{Code: ErrCodeProgrammer, Message: "submit after close"}
	ErrAlreadyClosed    = &Error{Code: ErrCodeProgrammer, Message: "collector already closed"}
	ErrDrainInProgress  = &Error{Code: ErrCodeProgrammer, Message: "drain already in progress"}
	ErrUnknownKey       = &Error{Code: ErrCodeProgrammer, Message: "result for a key that was never submitted"}
	ErrDuplicateResult  = &Error{Code: ErrCodeProgrammer, Message: "result recorded twice"}
)

// ErrDrainInterrupted is returned with partial results when Drain's context ends
var ErrDrainInterrupted = &Error{Code: ErrCodeCanceled, Message: "drain interrupted"}

// programmerError attaches detail to one of the misuse sentinels while
// keeping errors.Is matching on both the sentinel and ErrProgrammer
func programmerError(sentinel *Error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}

// IsProgrammerError reports whether err signals collector misuse
func IsProgrammerError(err error) bool {
	return errors.Is(err, ErrProgrammer)
}
