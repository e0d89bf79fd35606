package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// Program error codes. These are user visible and must never be renumbered.
	ErrUnsupportedProtocol           ErrorType = "UnsupportedProtocol"
	ErrMathOverflow                  ErrorType = "MathOverflow"
	ErrInsufficientUserPositionFunds ErrorType = "InsufficientUserPositionFunds"

	ErrInvalidRequest    ErrorType = "INVALID_REQUEST"
	ErrAuthFailed        ErrorType = "AUTH_FAILED"
	ErrNotFound          ErrorType = "NOT_FOUND"
	ErrAlreadyExists     ErrorType = "ALREADY_EXISTS"
	ErrInvalidTransition ErrorType = "INVALID_TRANSITION"
	ErrChamberBusy       ErrorType = "CHAMBER_BUSY"
	ErrDerivationFailed  ErrorType = "DERIVATION_FAILED"
	ErrStaleOracle       ErrorType = "STALE_ORACLE"
	ErrUpstream          ErrorType = "UPSTREAM_ERROR"
	ErrOutcomeUnknown    ErrorType = "OUTCOME_UNKNOWN"
	ErrRateLimited       ErrorType = "RATE_LIMITED"
	ErrReadOnly          ErrorType = "READ_ONLY"
	ErrInternal          ErrorType = "INTERNAL_ERROR"
)

// Codes for the program errors start at 6000, in declaration order.
var programCodes = map[ErrorType]int{
	ErrUnsupportedProtocol:           6000,
	ErrMathOverflow:                  6001,
	ErrInsufficientUserPositionFunds: 6002,
}

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"error"`
	Code       int       `json:"code,omitempty"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Retry      string    `json:"retry,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Code:       programCodes[errType],
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func UnsupportedProtocol() *AppError {
	return New(ErrUnsupportedProtocol, "Unsupported protocol error.", nil)
}

func MathOverflow() *AppError {
	return New(ErrMathOverflow, "Math overflow error.", nil)
}

func InsufficientUserPositionFunds() *AppError {
	return New(ErrInsufficientUserPositionFunds, "Insufficient user position funds error.", nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func NewInvalidTransition(msg string) *AppError {
	return New(ErrInvalidTransition, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// TypeOf returns the error type carried by err, or ErrInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrInternal
}

func Is(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	return TypeOf(err) == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrUnsupportedProtocol, ErrMathOverflow, ErrInsufficientUserPositionFunds:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	case ErrAlreadyExists, ErrInvalidTransition, ErrChamberBusy:
		return http.StatusConflict
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrStaleOracle, ErrReadOnly:
		return http.StatusServiceUnavailable
	case ErrUpstream:
		return http.StatusBadGateway
	case ErrOutcomeUnknown:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrMathOverflow:
		return "Resubmit with smaller amounts."
	case ErrInsufficientUserPositionFunds:
		return "Request at most the recorded position balance."
	case ErrInvalidTransition:
		return "Check the chamber stage and issue the next lifecycle step."
	case ErrChamberBusy:
		return "Another step is running for this chamber. Retry shortly."
	case ErrStaleOracle:
		return "Wait for a fresh oracle update and retry."
	case ErrRateLimited:
		return "Slow down and retry after a second."
	case ErrReadOnly:
		return "The service is paused for maintenance. Reads still work."
	case ErrOutcomeUnknown:
		return "The unit outcome is being reconciled. Query the chamber before retrying."
	default:
		return ""
	}
}
