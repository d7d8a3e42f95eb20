package common

import (
	"errors"
	"net/http"
)

// Canonical error codes used across API responses.
const (
	CodeInvalidOrder = "INVALID_ORDER"
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL"
)

// AppError carries an error code and the HTTP status it should map to.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError with an explicit status.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NotFound builds a 404 AppError.
func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, nil)
}

// Invalid builds a 400 AppError with the validation code.
func Invalid(message string) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, nil)
}

// InvalidOrder builds a 400 AppError for order rejections.
func InvalidOrder(message string) *AppError {
	return NewAppError(CodeInvalidOrder, message, http.StatusBadRequest, nil)
}

// Unauthorized builds a 401 AppError.
func Unauthorized(message string) *AppError {
	return NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// Unavailable builds a 503 AppError wrapping the dependency failure.
func Unavailable(message string, err error) *AppError {
	return NewAppError(CodeUnavailable, message, http.StatusServiceUnavailable, err)
}

// Internal builds a 500 AppError wrapping the underlying failure.
func Internal(message string, err error) *AppError {
	return NewAppError(CodeInternal, message, http.StatusInternalServerError, err)
}

// AsAppError extracts an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
