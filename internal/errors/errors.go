// Package errors provides a lightweight structured error type (PhoneHomeError)
// for category-based classification in the reporting agent and census server.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a phone-home error for classification
type ErrorCategory string

const (
	// Fact gathering and durable state errors
	CategorySource ErrorCategory = "source"
	CategoryState  ErrorCategory = "state"

	// Submission and orchestration errors
	CategoryTransmission ErrorCategory = "transmission"
	CategoryPrecondition ErrorCategory = "precondition"

	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Server-side infrastructure errors
	CategoryStorage  ErrorCategory = "storage"
	CategoryServer   ErrorCategory = "server"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// PhoneHomeError is a structured error with category, severity, and context
type PhoneHomeError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PhoneHomeError
type ContextFields map[string]any

// Error implements the error interface
func (e *PhoneHomeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PhoneHomeError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PhoneHomeError) WithContext(key string, value any) *PhoneHomeError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PhoneHomeError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PhoneHomeError {
	return &PhoneHomeError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new PhoneHomeError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PhoneHomeError {
	return &PhoneHomeError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if phe, ok := err.(*PhoneHomeError); ok {
		return phe.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a PhoneHomeError
func GetCategory(err error) ErrorCategory {
	if phe, ok := err.(*PhoneHomeError); ok {
		return phe.Category
	}
	return CategoryInternal
}

// ValidationError creates a new validation error (400 Bad Request)
func ValidationError(message string) *PhoneHomeError {
	return &PhoneHomeError{
		Category: CategoryValidation,
		Severity: SeverityWarning,
		Message:  message,
	}
}
