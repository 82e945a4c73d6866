package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents application-specific error codes for the calling
// subsystem.
type ErrorCode string

const (
	// Setup errors (fatal to call establishment)
	ErrCodeSetupFailed   ErrorCode = "SETUP_FAILED"
	ErrCodeDeviceDenied  ErrorCode = "DEVICE_DENIED"
	ErrCodeSessionCreate ErrorCode = "SESSION_CREATE_FAILED"

	// Steady-state negotiation errors (non-fatal, logged and skipped)
	ErrCodeNegotiation ErrorCode = "NEGOTIATION_FAILED"

	// Teardown errors (best-effort, never block local cleanup)
	ErrCodeTeardown ErrorCode = "TEARDOWN_FAILED"

	// State errors
	ErrCodeCallNotFound ErrorCode = "CALL_NOT_FOUND"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeUserBusy     ErrorCode = "USER_BUSY"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Infrastructure errors
	ErrCodeStore    ErrorCode = "STORE_ERROR"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error with a code and an
// optional wrapped cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code and message
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the original error
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal if err is not
// an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Setup errors

func SetupFailedError(message string, err error) *AppError {
	return Wrap(ErrCodeSetupFailed, message, err)
}

func DeviceDeniedError(err error) *AppError {
	return Wrap(ErrCodeDeviceDenied, "Capture device unavailable or permission denied", err)
}

func SessionCreateError(err error) *AppError {
	return Wrap(ErrCodeSessionCreate, "Failed to create call session", err)
}

// Negotiation errors

func NegotiationError(message string, err error) *AppError {
	return Wrap(ErrCodeNegotiation, message, err)
}

// State errors

func CallNotFoundError(callID string) *AppError {
	return New(ErrCodeCallNotFound, fmt.Sprintf("Call %s not found or already ended", callID))
}

func InvalidStateError(message string) *AppError {
	return New(ErrCodeInvalidState, message)
}

func UserBusyError(userID string) *AppError {
	return New(ErrCodeUserBusy, fmt.Sprintf("User %s is already in a call", userID))
}

func InvalidInputError(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// Infrastructure errors

func StoreError(message string, err error) *AppError {
	return Wrap(ErrCodeStore, message, err)
}

func TeardownError(message string, err error) *AppError {
	return Wrap(ErrCodeTeardown, message, err)
}
