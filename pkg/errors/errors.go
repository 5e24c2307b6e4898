package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status for the handler layer.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound, ErrUnknownRegion, ErrUnknownConnection:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrNoRegionAvailable, ErrPoolExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrInternal
	ErrNoRegionAvailable
	ErrPoolExhausted
	ErrUnknownRegion
	ErrUnknownConnection
)

// Code extracts the ErrorCode from err, or ErrInternal for foreign errors.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Error constructors

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// NewNoRegionAvailable is returned when every routing relaxation is exhausted.
func NewNoRegionAvailable() *AppError {
	return &AppError{
		Code:    ErrNoRegionAvailable,
		Message: "no region available",
	}
}

// NewPoolExhausted is returned when no replica connection frees up in time.
func NewPoolExhausted(regionID string) *AppError {
	return &AppError{
		Code:    ErrPoolExhausted,
		Message: fmt.Sprintf("replica pool exhausted for region %s", regionID),
	}
}

func NewUnknownRegion(regionID string) *AppError {
	return &AppError{
		Code:    ErrUnknownRegion,
		Message: fmt.Sprintf("unknown region %s", regionID),
	}
}

func NewUnknownConnection(connID string) *AppError {
	return &AppError{
		Code:    ErrUnknownConnection,
		Message: fmt.Sprintf("unknown connection %s", connID),
	}
}
