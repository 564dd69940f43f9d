package errors

import (
	"errors"
	"fmt"
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

// Common error codes
const (
	ErrConfig ErrorCode = iota + 1000
	ErrDirectory
	ErrPolicy
	ErrDelivery
	ErrInternal
)

// Error constructors
func NewConfig(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConfig,
		Message: message,
		Err:     err,
	}
}

// NewDirectory wraps a directory or policy query failure. These are fatal to
// the run: there is no partial recovery from an incomplete account listing.
func NewDirectory(message string, err error) *AppError {
	return &AppError{
		Code:    ErrDirectory,
		Message: message,
		Err:     err,
	}
}

func NewPolicy(message string, err error) *AppError {
	return &AppError{
		Code:    ErrPolicy,
		Message: message,
		Err:     err,
	}
}

// NewDelivery wraps a mail transport failure for one notice. Delivery errors
// are counted per account and do not abort the run.
func NewDelivery(recipient string, err error) *AppError {
	return &AppError{
		Code:    ErrDelivery,
		Message: fmt.Sprintf("failed to deliver notice to %s", recipient),
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
