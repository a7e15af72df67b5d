package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is raised when a resource, entitlement or dev card kind outside
// the known enum reaches a ledger operation. It indicates a programming error.
var ErrUnknownKind = errors.New("unknown kind")

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Error codes.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeLimitExceeded        = "LIMIT_EXCEEDED"
	CodeInsufficientResource = "INSUFFICIENT_RESOURCE"
	CodeBadState             = "BAD_STATE"
	CodeProtocolViolation    = "PROTOCOL_VIOLATION"
	CodeValidation           = "VALIDATION_ERROR"
	CodeConflict             = "CONFLICT"
	CodeTooManyRequests      = "TOO_MANY_REQUESTS"
	CodeInternal             = "INTERNAL_ERROR"
)

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrLimitExceeded(msg string) *AppError {
	return &AppError{Code: CodeLimitExceeded, Message: msg, Status: 409}
}

func ErrInsufficientResource(msg string) *AppError {
	return &AppError{Code: CodeInsufficientResource, Message: msg, Status: 400}
}

func ErrBadState(msg string) *AppError {
	return &AppError{Code: CodeBadState, Message: msg, Status: 409}
}

func ErrProtocolViolation(msg string, cause error) *AppError {
	return &AppError{Code: CodeProtocolViolation, Message: msg, Status: 400, Cause: cause}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: 409}
}

func ErrTooManyRequests(msg string) *AppError {
	return &AppError{Code: CodeTooManyRequests, Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
