package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to test an error against a kind.
var (
	// ErrInvalidIdentifier is returned when a schema, table, column or
	// function name fails identifier validation.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrMalformedQuery is returned when the query string cannot be parsed.
	ErrMalformedQuery = errors.New("malformed query")

	// ErrSchemaMismatch is returned when a payload does not fit the statement.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrMissingFilter is returned when an update or delete has no filters.
	ErrMissingFilter = errors.New("missing filter")

	// ErrUnknownResource is returned when the catalog has no such resource.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrBackend is returned for errors reported by the database.
	ErrBackend = errors.New("backend error")

	// ErrTransactionAborted is returned when a transaction cannot complete.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrTimeout is returned when an operation exceeds its deadline or is canceled.
	ErrTimeout = errors.New("timeout")

	// ErrUnsupported is returned when the dialect lacks a required feature.
	ErrUnsupported = errors.New("unsupported")
)

// Kind names used on the wire.
const (
	KindInvalidIdentifier  = "InvalidIdentifier"
	KindMalformedQuery     = "MalformedQuery"
	KindSchemaMismatch     = "SchemaMismatch"
	KindMissingFilter      = "MissingFilter"
	KindUnknownResource    = "UnknownResource"
	KindBackendError       = "BackendError"
	KindTransactionAborted = "TransactionAborted"
	KindTimeout            = "Timeout"
	KindUnsupported        = "Unsupported"
)

var kindNames = map[error]string{
	ErrInvalidIdentifier:  KindInvalidIdentifier,
	ErrMalformedQuery:     KindMalformedQuery,
	ErrSchemaMismatch:     KindSchemaMismatch,
	ErrMissingFilter:      KindMissingFilter,
	ErrUnknownResource:    KindUnknownResource,
	ErrBackend:            KindBackendError,
	ErrTransactionAborted: KindTransactionAborted,
	ErrTimeout:            KindTimeout,
	ErrUnsupported:        KindUnsupported,
}

// Category groups backend error codes across dialects.
type Category int

const (
	// CategoryNone is an unclassified backend error.
	CategoryNone Category = iota
	// CategoryIntegrity is a constraint violation (SQLSTATE class 23).
	CategoryIntegrity
	// CategoryUndefined is a missing table, schema or function.
	CategoryUndefined
	// CategoryInvalidData is a bad value or unknown column.
	CategoryInvalidData
	// CategoryPermission is an insufficient privilege error.
	CategoryPermission
)

// Error is a classified gateway error.
type Error struct {
	// Kind is one of the Err* sentinels.
	Kind error
	// Message is safe to show to clients. It never contains SQL text.
	Message string
	// Code is the backend's native error code, if any (SQLSTATE, MySQL
	// error number, SQLite extended code).
	Code string
	// Category is the dialect-neutral class of a backend error.
	Category Category
	// Connection marks backend errors caused by transport failures.
	Connection bool
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// KindName returns the wire name of the error kind.
func (e *Error) KindName() string {
	if name, ok := kindNames[e.Kind]; ok {
		return name
	}
	return KindBackendError
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind.
func Wrap(kind error, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewBackendError creates a BackendError that preserves the native code.
func NewBackendError(code, message string, cause error) *Error {
	return &Error{Kind: ErrBackend, Code: code, Message: message, Cause: cause}
}

// WithCategory sets the category and returns e.
func (e *Error) WithCategory(c Category) *Error {
	e.Category = c
	return e
}

// AsError extracts a classified error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidIdentifier) ||
		errors.Is(err, ErrMalformedQuery) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrMissingFilter) ||
		errors.Is(err, ErrUnknownResource)
}
