// Package errors provides standardized error types and helpers for the Cedar Pulpit codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrExpired indicates a cache entry aged past its TTL
	ErrExpired = errors.New("expired")
	// ErrQuotaExceeded indicates durable storage ran out of space
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrSyncInProgress indicates a sync pass is already running
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrUnauthorized indicates insufficient permissions
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsupported indicates an unsupported operation or translation
	ErrUnsupported = errors.New("unsupported")
)

// ProviderError represents a failed chapter fetch from a content provider.
// It carries the attempted coordinates for diagnostics regardless of the
// underlying failure mode (network, HTTP status, unparseable body).
type ProviderError struct {
	Source      string // Provider name (e.g., "primary", "secondary")
	Book        string // Book requested
	Chapter     int    // Chapter requested
	Translation string // Translation code requested
	Err         error  // Underlying error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: failed to fetch %s %d (%s): %v",
		e.Source, e.Book, e.Chapter, e.Translation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// QuotaError represents a durable storage write that failed for lack of space.
// Callers use this to distinguish quota exhaustion from other write failures.
type QuotaError struct {
	Key string // Storage key being written
	Err error  // Underlying error, if any
}

func (e *QuotaError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage quota exceeded writing %s", e.Key)
	}
	return "storage quota exceeded"
}

func (e *QuotaError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrQuotaExceeded
}

// SyncError represents a per-record failure during a sync pass.
// One bad record never aborts the pass; it is counted and retried next time.
type SyncError struct {
	LocalID   string // Local sermon ID
	Operation string // Operation that failed (e.g., "upload", "download")
	Err       error  // Underlying error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed for %s: %v", e.Operation, e.LocalID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "sermon", "chapter")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}
