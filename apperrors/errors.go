// Package apperrors provides the error taxonomy shared by the catalog.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error.
type Code string

const (
	NotFound    Code = "NOT_FOUND"
	Conflict    Code = "CONFLICT"
	Validation  Code = "VALIDATION"
	Unavailable Code = "UNAVAILABLE"
	Internal    Code = "INTERNAL"
)

// Error is a classified error. Err, when set, is the underlying cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under code.
func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or Internal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Internal
}

// MessageOf returns the message of the first *Error in err's chain
// without its cause, or the empty string.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}

// IsNotFound reports whether err is classified as NotFound.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == NotFound
}

// IsConflict reports whether err is classified as Conflict.
func IsConflict(err error) bool {
	return err != nil && CodeOf(err) == Conflict
}

// IsValidation reports whether err is classified as Validation.
func IsValidation(err error) bool {
	return err != nil && CodeOf(err) == Validation
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
