package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different types of application errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeDuplicateVote ErrorType = "duplicate_vote"
	ErrorTypeLimitExceeded ErrorType = "limit_exceeded"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeExternal      ErrorType = "external"
)

// AppError represents a structured application error
type AppError struct {
	Type     ErrorType              `json:"type"`
	Message  string                 `json:"message"`
	Internal error                  `json:"-"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches AppErrors by type so sentinel comparisons work with errors.Is
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Type == appErr.Type
	}
	return false
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// NewDuplicateVoteError creates an error for a repeat vote on the same item
// within the rolling window
func NewDuplicateVoteError(itemID string) *AppError {
	return &AppError{
		Type:    ErrorTypeDuplicateVote,
		Message: "already voted for this performance today",
		Details: map[string]interface{}{"performance_id": itemID},
	}
}

// NewLimitExceededError creates an error for an exhausted daily quota.
// nextAvailableAt may be nil when the ledger cannot derive it.
func NewLimitExceededError(limit int, nextAvailableAt *time.Time) *AppError {
	details := map[string]interface{}{"daily_limit": limit}
	if nextAvailableAt != nil {
		details["next_available_at"] = nextAvailableAt.UTC()
	}
	return &AppError{
		Type:    ErrorTypeLimitExceeded,
		Message: fmt.Sprintf("vote limit reached (%d per day)", limit),
		Details: details,
	}
}

// NextAvailableAt extracts the next_available_at detail from a limit error,
// or nil if absent.
func NextAvailableAt(err error) *time.Time {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Details == nil {
		return nil
	}
	if ts, ok := appErr.Details["next_available_at"].(time.Time); ok {
		return &ts
	}
	return nil
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
	}
}

// NewStorageError creates a new local storage error
func NewStorageError(message string, internal error) *AppError {
	return &AppError{
		Type:     ErrorTypeStorage,
		Message:  message,
		Internal: internal,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, internal error) *AppError {
	return &AppError{
		Type:     ErrorTypeExternal,
		Message:  message,
		Internal: internal,
	}
}
