package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the service. Handlers map these to HTTP statuses,
// callers use them to distinguish "retry" from "this request is invalid".
const (
	CodeValidation      = "VALIDATION"
	CodeMissingApprover = "MISSING_APPROVER"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyDecided  = "ALREADY_DECIDED"
	CodeNotAuthorized   = "NOT_AUTHORIZED"
	CodeUnavailable     = "UNAVAILABLE"
	CodeInternal        = "INTERNAL"
)

// AppError is a coded application error.
type AppError struct {
	Code    string
	Message string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, preserving the cause chain.
func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, cause: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return Newf(CodeNotFound, "%s %s not found", resource, id)
}

// Validation reports malformed input (bad rule, bad context, bad request).
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// InvalidInput reports a specific invalid field.
func InvalidInput(field, message string) *AppError {
	return Newf(CodeValidation, "invalid %s: %s", field, message)
}

// MissingApprover reports a synthesized step with no approver mapping.
func MissingApprover(step string) *AppError {
	return Newf(CodeMissingApprover, "no approver mapped for step %q", step)
}

// AlreadyDecided reports a transition attempt on a settled approval.
func AlreadyDecided(status string) *AppError {
	return Newf(CodeAlreadyDecided, "approval already %s", status)
}

// NotAuthorized reports an actor mismatch on an approval decision.
func NotAuthorized(message string) *AppError {
	return New(CodeNotAuthorized, message)
}

// Unavailable wraps a transient store failure. Callers may retry.
func Unavailable(err error) *AppError {
	return Wrap(err, CodeUnavailable, "store unavailable")
}

// Code extracts the application error code, or CodeInternal for plain errors.
func Code(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return Code(err) == code
}

// Retryable reports whether the caller may retry the operation.
func Retryable(err error) bool {
	return IsCode(err, CodeUnavailable)
}

// HTTPStatus maps an error to the HTTP status the REST layer should return.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation, CodeMissingApprover:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyDecided:
		return http.StatusConflict
	case CodeNotAuthorized:
		return http.StatusForbidden
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
