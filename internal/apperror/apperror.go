package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrExternal            = errors.New("external service error")
	ErrUnavailable         = errors.New("service unavailable")
)

type AppError struct {
	Err     error  // sentinel error for errors.Is checks
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InsufficientCredits is returned when an analysis is requested with a
// zero balance. Recoverable via the purchase flow — never treated as a
// server fault.
func InsufficientCredits(balance int) *AppError {
	return &AppError{
		Err:     ErrInsufficientCredits,
		Message: fmt.Sprintf("not enough credits: balance is %d, need 1", balance),
	}
}

// External wraps a failure of an outside collaborator (completion API,
// payment provider). The caller may retry; no local state was mutated.
// The cause stays reachable through errors.Is/As while the message remains
// safe to show users.
func External(service string, err error) *AppError {
	chain := ErrExternal
	if err != nil {
		chain = fmt.Errorf("%w: %w", ErrExternal, err)
	}
	return &AppError{
		Err:     chain,
		Message: fmt.Sprintf("%s request failed, try again later", service),
	}
}

// Unavailable signals the backing store could not serve the operation.
// The triggering operation must not be assumed to have taken effect.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}
