package common

import (
	"errors"
	"net/http"
)

// Error codes surfaced to API clients.
const (
	CodeNotFound        = "not-found"
	CodeInvalidParam    = "invalid-param"
	CodeInvalid         = "invalid"
	CodeValidationError = "validation-error"
	CodeConflict        = "conflict"
	CodeAccessDenied    = "access-denied"
	CodeInternal        = "internal"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
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

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NotFound reports a missing or inaccessible document.
func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, nil)
}

// InvalidParam reports a missing or malformed argument.
func InvalidParam(message string) *AppError {
	return NewAppError(CodeInvalidParam, message, http.StatusBadRequest, nil)
}

// ValidationFailed wraps a schema validation failure. Details usually lists the offending fields.
func ValidationFailed(message string, err error, details any) *AppError {
	appErr := NewAppError(CodeValidationError, message, http.StatusBadRequest, err)
	appErr.Details = details
	return appErr
}

// Conflict reports a concurrent modification.
func Conflict(message string, err error) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict, err)
}

// AccessDenied reports a caller without the required identity.
func AccessDenied(message string) *AppError {
	return NewAppError(CodeAccessDenied, message, http.StatusForbidden, nil)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var target *AppError
	return errors.As(err, &target) && target.Code == code
}
