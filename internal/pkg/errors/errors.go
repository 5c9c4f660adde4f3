// Package errors provides custom error types and error handling utilities.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Input errors.
	CodeValidation          = "VALIDATION_ERROR"
	CodeMalformedImpression = "MALFORMED_IMPRESSION"
	CodeNotFound            = "NOT_FOUND"

	// Environment errors.
	CodeIO          = "IO_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal    = "INTERNAL_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ExitCode maps the error to a process exit status.
// Input problems exit with 2 so scripts can tell them apart from
// environment failures.
func (e *AppError) ExitCode() int {
	switch e.Code {
	case CodeValidation, CodeMalformedImpression, CodeNotFound:
		return 2
	default:
		return 1
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// MalformedImpressionError reports an impression token that is not
// "<article_id>-<label>" with a label of 0 or 1.
func MalformedImpressionError(token, reason string) *AppError {
	return New(CodeMalformedImpression, fmt.Sprintf("malformed impression %q: %s", token, reason)).
		WithDetail("token", token)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// IOError wraps a failure reading or writing an external resource.
func IOError(message string, err error) *AppError {
	return Wrap(CodeIO, message, err)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string, err error) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return Wrap(CodeUnavailable, message, err)
}

// Code returns the code of the first AppError in err's chain, or "".
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsMalformedImpression checks if err is a malformed impression error.
func IsMalformedImpression(err error) bool {
	return Code(err) == CodeMalformedImpression
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return Code(err) == CodeNotFound
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return Code(err) == CodeValidation
}

// ExitCode returns the exit status for err. Non-application errors exit 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	return 1
}
