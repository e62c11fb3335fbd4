// Package errs classifies import failures so callers can tell a refused
// import from a user abort, a structural problem, or a database failure.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of an import error.
type Kind int

const (
	// KindInput - unreadable or malformed class description
	KindInput Kind = iota
	// KindPrecondition - the program is missing or has not been analyzed
	KindPrecondition
	// KindIdentity - the description belongs to a different binary and the caller declined
	KindIdentity
	// KindStructural - the inheritance graph cannot be ordered
	KindStructural
	// KindDatabase - a program database read or write failed
	KindDatabase
	// KindCancelled - the caller cancelled the import
	KindCancelled
	// KindInternal - unexpected internal state
	KindInternal
)

// String returns the upper-case label used in logs.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "INPUT"
	case KindPrecondition:
		return "PRECONDITION"
	case KindIdentity:
		return "IDENTITY"
	case KindStructural:
		return "STRUCTURAL"
	case KindDatabase:
		return "DATABASE"
	case KindCancelled:
		return "CANCELLED"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error represents a classified error with context
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, errs.Cancelled(""))
// works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s\n", e.Kind, e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	return sb.String()
}

// New creates a new error with the given kind and message
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a kind and message
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// Convenience constructors for common error kinds

// Inputf creates an input error with formatting
func Inputf(format string, args ...interface{}) *Error {
	return New(KindInput, fmt.Sprintf(format, args...))
}

// Input wraps a parse or read error
func Input(err error, message string) *Error {
	return Wrap(err, KindInput, message)
}

// Precondition creates a precondition error
func Precondition(message string) *Error {
	return New(KindPrecondition, message)
}

// Identity creates an identity error
func Identity(message string) *Error {
	return New(KindIdentity, message)
}

// Structural wraps a graph construction error
func Structural(err error, message string) *Error {
	return Wrap(err, KindStructural, message)
}

// Database wraps a database error
func Database(err error, message string) *Error {
	return Wrap(err, KindDatabase, message)
}

// Databasef wraps a database error with formatting
func Databasef(err error, format string, args ...interface{}) *Error {
	return Wrap(err, KindDatabase, fmt.Sprintf(format, args...))
}

// Cancelled creates a cancellation error
func Cancelled(cause error) *Error {
	if cause == nil {
		return New(KindCancelled, "import cancelled")
	}
	return Wrap(cause, KindCancelled, "import cancelled")
}

// Internalf creates an internal error with formatting
func Internalf(format string, args ...interface{}) *Error {
	return New(KindInternal, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
