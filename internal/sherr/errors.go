// Package sherr provides standardized error handling for shoal.
// All errors carry stable, machine-readable codes, structured context,
// and proper wrapping so callers can branch on error category without
// string matching.
package sherr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number} where category maps to the error taxonomy.
type Code string

// Error codes organized by category.
const (
	// Definition errors (E1xxx) - a changeset or schema declaration is malformed.
	// Caught at registration; aborts the entire run before any store mutation.
	ErrDefinition       Code = "E1001" // Changeset or schema declaration is malformed
	ErrDuplicateVersion Code = "E1002" // Two changesets share a version token
	ErrMissingDown      Code = "E1003" // Changeset lacks a backward transformation
	ErrDanglingIndex    Code = "E1004" // Index references a field that does not exist

	// Resolution errors (E2xxx) - a reference cannot be located.
	// Aborts only the enclosing changeset.
	ErrNotFound  Code = "E2001" // Referenced collection or field does not exist
	ErrStaleName Code = "E2002" // Name lookup missed because of an intervening rename

	// Constraint errors (E3xxx) - a compiled field or index violates an invariant.
	ErrConstraint    Code = "E3001" // Generic constraint violation
	ErrNarrowing     Code = "E3002" // Narrowing change that could orphan existing data
	ErrInvalidType   Code = "E3003" // Unknown or forbidden field type
	ErrInvalidOption Code = "E3004" // Type-specific option is invalid

	// Conflict errors (E4xxx) - ordering/versioning discipline violated.
	// Fatal to the whole run.
	ErrConflict   Code = "E4001" // Version token collision in the ledger
	ErrOutOfOrder Code = "E4002" // Out-of-order application attempt

	// Store errors (E5xxx) - the persisted store failed.
	ErrStoreTx Code = "E5001" // Transaction begin/commit/rollback failed
	ErrStoreIO Code = "E5002" // Read or write against the store failed
	ErrLedger  Code = "E5003" // Ledger read or write failed
)

// Error is the standard error type for shoal.
type Error struct {
	code    Code
	message string
	context map[string]any
	cause   error
}

// Error returns the formatted error string.
// Format:
//
//	[E2001] referenced collection not found
//	  name: groups
//	  changeset: 1660000600
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.code, e.message)

	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s: %v", k, e.context[k])
		}
	}

	if e.cause != nil {
		fmt.Fprintf(&b, "\n  cause: %v", e.cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Unwrap compatibility.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.code == te.code
	}
	return false
}

// GetCode returns the error code.
func (e *Error) GetCode() Code {
	return e.code
}

// GetMessage returns the human-readable message.
func (e *Error) GetMessage() string {
	return e.message
}

// GetContext returns the structured context map.
func (e *Error) GetContext() map[string]any {
	return e.context
}

// With adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

// WithCollection adds collection context to the error.
func (e *Error) WithCollection(name string) *Error {
	return e.With("collection", name)
}

// WithField adds field context to the error.
func (e *Error) WithField(name string) *Error {
	return e.With("field", name)
}

// WithVersion adds the changeset version token to the error.
func (e *Error) WithVersion(version int64) *Error {
	return e.With("changeset", version)
}

// WithHelp adds a help suggestion (displayed as "help: ...").
func (e *Error) WithHelp(help string) *Error {
	helps, _ := e.context["helps"].([]string)
	helps = append(helps, help)
	return e.With("helps", helps)
}

// Helps returns all help suggestions attached to this error.
func (e *Error) Helps() []string {
	helps, _ := e.context["helps"].([]string)
	return helps
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{code: code, message: msg, context: make(map[string]any)}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(code Code, err error, msg string) *Error {
	if err == nil {
		return New(code, msg)
	}
	return &Error{code: code, message: msg, context: make(map[string]any), cause: err}
}

// Wrapf creates a new Error that wraps an existing error with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// GetErrorCode extracts the error code from an error chain.
// Returns empty string if no code is found.
func GetErrorCode(err error) Code {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.code
	}
	return ""
}

// Is checks if an error has the specified code.
func Is(err error, code Code) bool {
	return GetErrorCode(err) == code
}

// Category returns the taxonomy category for a code:
// "definition", "resolution", "constraint", "conflict", or "store".
func Category(code Code) string {
	if len(code) < 2 {
		return "unknown"
	}
	switch code[1] {
	case '1':
		return "definition"
	case '2':
		return "resolution"
	case '3':
		return "constraint"
	case '4':
		return "conflict"
	case '5':
		return "store"
	default:
		return "unknown"
	}
}
