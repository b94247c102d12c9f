package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	CodeBadRequest       Code = "BAD_REQUEST"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeTooManyRequests  Code = "TOO_MANY_REQUESTS"
	CodeInternal         Code = "INTERNAL"
)

func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

const MsgAlreadyClaimed = "already claimed"

type BaseError struct {
	Code       Code
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func New(code Code, message string) error {
	return BaseError{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) error {
	return BaseError{Code: code, Message: message, Err: err}
}

func Validation(format string, args ...any) error {
	return New(CodeValidationFailed, fmt.Sprintf(format, args...))
}

func Unauthorized(msg string) error {
	return New(CodeUnauthorized, msg)
}

func Forbidden(msg string) error {
	return New(CodeForbidden, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Conflict(format string, args ...any) error {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

func AlreadyClaimed() error {
	return New(CodeConflict, MsgAlreadyClaimed)
}

// RateLimited reports a cooldown hit; retryAfter is the time left in the window.
func RateLimited(msg string, retryAfter time.Duration) error {
	return BaseError{Code: CodeTooManyRequests, Message: msg, RetryAfter: retryAfter}
}

func Internal(msg string, err error) error {
	return Wrap(CodeInternal, msg, err)
}

// As extracts a BaseError from err. Unknown errors come back as INTERNAL.
func As(err error) (BaseError, bool) {
	var be BaseError
	if errors.As(err, &be) {
		return be, true
	}
	return BaseError{Code: CodeInternal, Message: "Internal server error", Err: err}, false
}

func Is(err error, code Code) bool {
	var be BaseError
	return errors.As(err, &be) && be.Code == code
}
