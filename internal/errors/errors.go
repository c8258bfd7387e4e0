package errors

import (
	stderrors "errors"
	"fmt"
)

// QuarryError is the structured error type for Quarry.
// It carries a stable code, a category for caller branching, and the
// wrapped cause for error chain support.
type QuarryError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (NotFound, Validation, Conflict, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *QuarryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QuarryError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with QuarryError.
func (e *QuarryError) Is(target error) bool {
	if t, ok := target.(*QuarryError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new QuarryError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *QuarryError {
	return &QuarryError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new QuarryError with a formatted message.
func Newf(code string, format string, args ...any) *QuarryError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a QuarryError from an existing error.
// The error's message becomes the QuarryError message.
func Wrap(code string, err error) *QuarryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates a not-found error for the given code.
func NotFound(code string, message string) *QuarryError {
	return New(code, message, nil)
}

// Validation creates a validation error.
func Validation(message string) *QuarryError {
	return New(ErrCodeInvalidInput, message, nil)
}

// Conflict creates a conflict error for the given code.
func Conflict(code string, message string) *QuarryError {
	return New(code, message, nil)
}

// External wraps a collaborator failure (extraction, embedding).
func External(code string, err error) *QuarryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Internal creates an internal error.
func Internal(message string, cause error) *QuarryError {
	return New(ErrCodeInternal, message, cause)
}

// categoryOf walks the error chain looking for a QuarryError category.
func categoryOf(err error) Category {
	var qe *QuarryError
	if stderrors.As(err, &qe) {
		return qe.Category
	}
	return ""
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return categoryOf(err) == CategoryNotFound
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return categoryOf(err) == CategoryValidation
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	return categoryOf(err) == CategoryConflict
}

// IsExternal reports whether err is a wrapped collaborator failure.
func IsExternal(err error) bool {
	return categoryOf(err) == CategoryExternal
}

// GetCode extracts the error code from an error chain.
// Returns empty string if no QuarryError is found.
func GetCode(err error) string {
	var qe *QuarryError
	if stderrors.As(err, &qe) {
		return qe.Code
	}
	return ""
}
