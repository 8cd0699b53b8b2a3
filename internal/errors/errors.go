package errors

import (
	"fmt"
)

// InkdexError is the structured error type for Inkdex.
// It provides rich context for error handling, logging, and user presentation.
type InkdexError struct {
	// Code is the unique error code (e.g., "ERR_601_INDEX_BUSY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, RPC, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *InkdexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *InkdexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with InkdexError.
func (e *InkdexError) Is(target error) bool {
	if t, ok := target.(*InkdexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *InkdexError) WithDetail(key, value string) *InkdexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *InkdexError) WithSuggestion(suggestion string) *InkdexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new InkdexError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *InkdexError {
	return &InkdexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an InkdexError from an existing error.
// The error's message becomes the InkdexError message.
func Wrap(code string, err error) *InkdexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// SettingsError creates a settings persistence error.
func SettingsError(code string, message string, cause error) *InkdexError {
	return New(code, message, cause)
}

// RPCError creates a socket or protocol error.
// RPC errors are typically retryable.
func RPCError(message string, cause error) *InkdexError {
	return New(ErrCodeRPCUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *InkdexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *InkdexError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an InkdexError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*InkdexError); ok {
		return ie.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*InkdexError); ok {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an InkdexError.
// Returns empty string if not an InkdexError.
func GetCode(err error) string {
	if ie, ok := err.(*InkdexError); ok {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category from an InkdexError.
// Returns empty string if not an InkdexError.
func GetCategory(err error) Category {
	if ie, ok := err.(*InkdexError); ok {
		return ie.Category
	}
	return ""
}
