package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable, machine readable error identifier returned to API callers.
type Code string

const (
	CodeInvalidRequest       Code = "invalid_request"
	CodeAuthenticationFailed Code = "authentication_failed"
	CodeNotFound             Code = "not_found"
	CodeGatewayRejected      Code = "gateway_rejected"
	CodeGatewayUnreachable   Code = "gateway_unreachable"
	CodeDuplicateReference   Code = "duplicate_reference"
	CodeInvalidTransition    Code = "invalid_transition"
	CodeServiceUnavailable   Code = "service_unavailable"
	CodeUpstreamFailed       Code = "upstream_failed"
	CodeInternal             Code = "internal_error"
)

var statusByCode = map[Code]int{
	CodeInvalidRequest:       http.StatusBadRequest,
	CodeAuthenticationFailed: http.StatusUnauthorized,
	CodeNotFound:             http.StatusNotFound,
	CodeGatewayRejected:      http.StatusBadGateway,
	CodeGatewayUnreachable:   http.StatusServiceUnavailable,
	CodeDuplicateReference:   http.StatusInternalServerError,
	CodeInvalidTransition:    http.StatusInternalServerError,
	CodeServiceUnavailable:   http.StatusServiceUnavailable,
	CodeUpstreamFailed:       http.StatusBadGateway,
	CodeInternal:             http.StatusInternalServerError,
}

type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus is the status code the error maps to at the HTTP boundary.
func (e *AppError) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func InvalidRequest(message string) *AppError {
	return New(CodeInvalidRequest, message)
}

// From returns err as an AppError, wrapping unknown errors as internal.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, "internal error")
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
