// Package errors provides custom error types for the modelscout system.
// These errors enable better error handling, programmatic error checking,
// and improved debugging throughout the application.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Join aliases the standard library errors.Join so callers accumulating
// per-item failures don't need a second errors import.
var Join = errors.Join

// Common sentinel errors for the modelscout system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")

	// ErrProviderNotFound indicates that no client is registered for a provider
	ErrProviderNotFound = errors.New("provider not found")

	// ErrScanActive indicates a scan is already running for the provider
	ErrScanActive = errors.New("scan already active for provider")

	// ErrUpdateActive indicates an incremental update is already running
	ErrUpdateActive = errors.New("update already in progress")

	// ErrSessionNotFound indicates the session is not in the active set
	ErrSessionNotFound = errors.New("session not found")

	// ErrCheckpointNotFound indicates the checkpoint could not be loaded
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrSnapshotNotFound indicates no rollback baseline exists
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidTransition indicates an illegal session state change
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrStopped indicates an operation was stopped by explicit request
	ErrStopped = errors.New("stopped by request")

	// ErrErrorBudgetExceeded indicates accumulated fetch errors crossed the
	// abort threshold for a scan
	ErrErrorBudgetExceeded = errors.New("error budget exceeded")

	// ErrRateLimited indicates the API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrNoModels indicates an operation produced or found zero models
	ErrNoModels = errors.New("no models")
)

// FetchError represents a network or API failure while fetching a batch
// from a provider. Fetch errors are retried with backoff up to a budget
// before becoming fatal.
type FetchError struct {
	Provider   string
	Endpoint   string
	Offset     int64
	Attempt    int
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch error from %s (status %d, attempt %d): %s", e.Provider, e.StatusCode, e.Attempt, e.Message)
	}
	return fmt.Sprintf("fetch error from %s (attempt %d): %s", e.Provider, e.Attempt, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	return false
}

// NewFetchError creates a new FetchError
func NewFetchError(provider, endpoint string, statusCode int, err error) *FetchError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &FetchError{
		Provider:   provider,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// TimeoutError represents a unit of parallel work exceeding its deadline.
// Timed-out work is recorded as failed, never silently retried.
type TimeoutError struct {
	Operation string
	Batch     int
	Elapsed   time.Duration
	Limit     time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("operation %s (batch %d) timed out after %s (limit %s)", e.Operation, e.Batch, e.Elapsed, e.Limit)
	}
	return fmt.Sprintf("operation %s timed out after %s", e.Operation, e.Elapsed)
}

// Is implements errors.Is support
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation string, batch int, elapsed, limit time.Duration) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Batch:     batch,
		Elapsed:   elapsed,
		Limit:     limit,
	}
}

// ValidationError represents a normalization or update-result sanity check
// failure. Depending on severity it surfaces as a warning or aborts the
// specific operation.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// PersistenceError represents a checkpoint, snapshot, or delta write failure.
// Persistence is best-effort: the error is logged and the in-memory
// operation continues.
type PersistenceError struct {
	Operation string // "checkpoint", "snapshot", "delta", "progress", "result"
	Path      string
	Err       error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("persistence error during %s of %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("persistence error during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError
func NewPersistenceError(operation, path string, err error) *PersistenceError {
	return &PersistenceError{Operation: operation, Path: path, Err: err}
}

// RollbackError represents a failure restoring provider state from a
// snapshot. It is logged alongside the original failure, which still
// propagates to the caller.
type RollbackError struct {
	Provider   string
	SnapshotID string
	Err        error
}

// Error implements the error interface
func (e *RollbackError) Error() string {
	if e.SnapshotID != "" {
		return fmt.Sprintf("rollback of %s from snapshot %s failed: %v", e.Provider, e.SnapshotID, e.Err)
	}
	return fmt.Sprintf("rollback of %s failed: %v", e.Provider, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// NewRollbackError creates a new RollbackError
func NewRollbackError(provider, snapshotID string, err error) *RollbackError {
	return &RollbackError{Provider: provider, SnapshotID: snapshotID, Err: err}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// AuthenticationError represents an authentication/authorization error
type AuthenticationError struct {
	Provider string
	Method   string // "api_key", "bearer", "query"
	Message  string
	Err      error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.Provider, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAPIKeyRequired
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(provider, method, message string, err error) *AuthenticationError {
	return &AuthenticationError{
		Provider: provider,
		Method:   method,
		Message:  message,
		Err:      err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsFetch checks if an error is a fetch error
func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsPersistence checks if an error is a persistence error
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsStopped checks if an error is an explicit stop
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}

// Helper wrapping functions for common patterns

// WrapFetch wraps an error as a FetchError
func WrapFetch(provider, endpoint string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return NewFetchError(provider, endpoint, statusCode, err)
}

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapPersist wraps an error as a PersistenceError
func WrapPersist(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewPersistenceError(operation, path, err)
}
