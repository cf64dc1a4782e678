// Package errors defines the typed failure taxonomy shared by the storage
// adapters. Lookups that find nothing return nil entities, not errors; the
// types here cover everything else a store can surface.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an adapter failure.
type ErrorType string

const (
	// ErrorTypeValidation marks malformed caller input, detected before any
	// network call (for example an entity with no extractable id).
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeNotConfigured marks operations invoked against a capability the
	// store was constructed without (for example OAuth operations with no OAuth
	// table). Distinct from not-found.
	ErrorTypeNotConfigured ErrorType = "NOT_CONFIGURED"

	// ErrorTypeConflict marks a violated write precondition: creating a key
	// that already exists, or updating/deleting one that does not.
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeDatabase marks an underlying DynamoDB call failure, propagated
	// unclassified beyond the conditional-check case.
	ErrorTypeDatabase ErrorType = "DATABASE"

	// ErrorTypeInternal marks adapter-side failures such as an item that does
	// not decode into the target entity type.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// StoreError is the error type returned by every store operation.
type StoreError struct {
	Type    ErrorType
	Message string
	// Key holds the offending partition-key value for conflict errors.
	Key   string
	Cause error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// WithCause attaches an underlying error.
func (e *StoreError) WithCause(err error) *StoreError {
	e.Cause = err
	return e
}

// NewValidationError creates a malformed-input error.
func NewValidationError(message string) *StoreError {
	return &StoreError{Type: ErrorTypeValidation, Message: message}
}

// NewValidationErrorf creates a malformed-input error with a formatted message.
func NewValidationErrorf(format string, args ...any) *StoreError {
	return NewValidationError(fmt.Sprintf(format, args...))
}

// NewNotConfiguredError creates a missing-capability error.
func NewNotConfiguredError(capability string) *StoreError {
	return &StoreError{
		Type:    ErrorTypeNotConfigured,
		Message: fmt.Sprintf("%s is not configured for this store", capability),
	}
}

// NewConflictError creates a precondition-violation error carrying the
// offending key.
func NewConflictError(message, key string) *StoreError {
	return &StoreError{Type: ErrorTypeConflict, Message: message, Key: key}
}

// NewDatabaseError wraps a failed DynamoDB operation.
func NewDatabaseError(operation string, err error) *StoreError {
	return &StoreError{
		Type:    ErrorTypeDatabase,
		Message: fmt.Sprintf("dynamodb operation %q failed", operation),
		Cause:   err,
	}
}

// NewInternalError creates an adapter-internal error.
func NewInternalError(message string, err error) *StoreError {
	return &StoreError{Type: ErrorTypeInternal, Message: message, Cause: err}
}

// AsStoreError extracts a StoreError from an error chain, or nil.
func AsStoreError(err error) *StoreError {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr
	}
	return nil
}

// IsType reports whether err carries the given error type.
func IsType(err error, errType ErrorType) bool {
	storeErr := AsStoreError(err)
	return storeErr != nil && storeErr.Type == errType
}

// IsValidation reports whether err is a malformed-input error.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsNotConfigured reports whether err is a missing-capability error.
func IsNotConfigured(err error) bool { return IsType(err, ErrorTypeNotConfigured) }

// IsConflict reports whether err is a precondition-violation error.
func IsConflict(err error) bool { return IsType(err, ErrorTypeConflict) }

// IsDatabase reports whether err is an underlying service failure.
func IsDatabase(err error) bool { return IsType(err, ErrorTypeDatabase) }
