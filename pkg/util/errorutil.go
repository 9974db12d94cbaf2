package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes surfaced in the response envelope.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidCredential  = "INVALID_CREDENTIAL"
	CodeInvalidOrExpired   = "INVALID_OR_EXPIRED"
	CodeAccountNotEligible = "ACCOUNT_NOT_ELIGIBLE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeDependency         = "DEPENDENCY_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewInvalidCredential never says which of email or password was wrong.
func NewInvalidCredential() error {
	return NewDomainError(CodeInvalidCredential, "invalid email or password", http.StatusUnauthorized, nil)
}

func NewInvalidOrExpired() error {
	return NewDomainError(CodeInvalidOrExpired, "code is invalid or expired", http.StatusUnauthorized, nil)
}

func NewAccountNotEligible(message string, status string) error {
	return NewDomainError(CodeAccountNotEligible, message, http.StatusForbidden, map[string]any{"status": status})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewRateLimited(message string, retryAfterSeconds int64) error {
	return NewDomainError(CodeRateLimited, message, http.StatusTooManyRequests, map[string]any{
		"retry_after_seconds": retryAfterSeconds,
	})
}

// NewDependencyError hides the cause from callers; it stays reachable through Unwrap for logging.
func NewDependencyError(err error) error {
	return &DomainError{
		Code:       CodeDependency,
		Message:    "service temporarily unavailable",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Unknown errors become INTERNAL_ERROR.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given DomainError code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
