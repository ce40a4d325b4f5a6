// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors are used by use cases and mapped
// to HTTP status codes by handlers and to audit error kinds by the vault.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (duplicate key or stale version).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the requester doesn't have permission.
	ErrForbidden = errors.New("forbidden")

	// ErrExpired indicates the resource is past its expiration time.
	ErrExpired = errors.New("expired")

	// ErrIntegrity indicates an authentication tag or key wrap check failed.
	// It signals tampered or corrupted ciphertext and must never be retried.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrStorage indicates the persistence layer is unavailable or failed.
	// Storage errors are transient and may be retried with backoff by the store layer.
	ErrStorage = errors.New("storage error")

	// ErrEventPublish indicates an event could not be handed to the event bus.
	// It is never returned to callers of vault operations, only logged.
	ErrEventPublish = errors.New("event publish failed")

	// ErrUnavailable indicates an optional collaborator is not configured or not reachable.
	ErrUnavailable = errors.New("unavailable")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Storage marks err as a storage failure while keeping the driver error in the chain,
// so both errors.Is(err, ErrStorage) and driver-specific inspection keep working.
func Storage(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return fmt.Errorf("%s: %w", message, err)
	}
	return fmt.Errorf("%s: %w: %w", message, ErrStorage, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join is a convenience wrapper around errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
