// Package errors defines the typed error taxonomy shared by every triggerd
// component. Callers classify failures with IsType / GetType instead of
// matching on message text.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConfig marks malformed definitions (bad operator, bad operand)
	ErrTypeConfig ErrorType = "config"
	// ErrTypeTypeMismatch marks a resolved value of the wrong type for an operator
	ErrTypeTypeMismatch ErrorType = "type_mismatch"
	// ErrTypeNotFound represents unknown ids
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeDuplicateID represents registration of an id that already exists
	ErrTypeDuplicateID ErrorType = "duplicate_id"
	// ErrTypeRefreshInProgress is returned when a provider refresh is already running
	ErrTypeRefreshInProgress ErrorType = "refresh_in_progress"
	// ErrTypeRefreshTimeout is returned when a provider refresh exceeds its deadline
	ErrTypeRefreshTimeout ErrorType = "refresh_timeout"
	// ErrTypeEmptyResult is returned when a provider catalogue fetch yields nothing
	ErrTypeEmptyResult ErrorType = "empty_result"
	// ErrTypeValidation represents input validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeAuth represents requests whose signature could not be verified
	ErrTypeAuth ErrorType = "auth"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeInternal represents internal consistency errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

// TypeMismatchError reports that an operator received a value it cannot handle.
func TypeMismatchError(operation string, want string, got interface{}) *AppError {
	return &AppError{
		Type:    ErrTypeTypeMismatch,
		Message: fmt.Sprintf("%s expects a %s value, got %T", operation, want, got),
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// DuplicateIDError creates an error for an id that is already registered
func DuplicateIDError(kind, id string) *AppError {
	return &AppError{
		Type:    ErrTypeDuplicateID,
		Message: fmt.Sprintf("%s with id '%s' already exists", kind, id),
	}
}

// RefreshInProgressError creates an error for overlapping refreshes
func RefreshInProgressError(providerID string) *AppError {
	return &AppError{
		Type:    ErrTypeRefreshInProgress,
		Message: fmt.Sprintf("refresh already in progress for provider %s", providerID),
	}
}

// RefreshTimeoutError creates an error for refreshes that exceeded their deadline
func RefreshTimeoutError(providerID string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeRefreshTimeout,
		Message: fmt.Sprintf("refresh timed out for provider %s", providerID),
		Cause:   cause,
	}
}

// EmptyResultError creates an error for empty catalogue fetches
func EmptyResultError(msg string) *AppError {
	return &AppError{Type: ErrTypeEmptyResult, Message: msg}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{Type: ErrTypeAuth, Message: msg}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeConnection, Message: msg, Cause: cause}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

// IsType checks if an error (or anything it wraps) is an AppError of a specific type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}
