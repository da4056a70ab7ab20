package service

import (
	"errors"
	"fmt"

	"github.com/calsync-io/calsync-api/internal/store"
)

// Common service errors. Service methods return these sentinels for expected
// conditions; callers check them with errors.Is and the API layer maps them
// to HTTP status codes.
var (
	// ErrEventNotFound indicates the requested event does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrEventNotFound = errors.New("event not found")

	// ErrNotOwned indicates a resource is owned by a different user than the
	// one making the request. API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrProviderNotConnected indicates the user has no stored provider
	// credential, so no provider operation can be performed for them.
	ErrProviderNotConnected = errors.New("no provider connected for user")

	// ErrInvalidCursor indicates a pagination cursor that could not be
	// decoded. API layer should map this to HTTP 400 Bad Request.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// ServiceError wraps unexpected errors from a service operation with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "create_event")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// newServiceError wraps err with operation context, passing known sentinels
// through unwrapped so callers can still match them.
func newServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrNotOwned) ||
		errors.Is(err, ErrProviderNotConnected) ||
		errors.Is(err, ErrInvalidCursor) {
		return err
	}

	// Map store-level sentinels to their service-level equivalents.
	if errors.Is(err, store.ErrEventNotFound) {
		return ErrEventNotFound
	}
	if errors.Is(err, store.ErrCredentialNotFound) {
		return ErrProviderNotConnected
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
