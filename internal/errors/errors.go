package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Session errors
	ErrNoSession           = errors.New("no session")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrSessionTerminated   = errors.New("session terminated")
	ErrLoggedOut           = errors.New("logged out")

	// Refresh errors
	ErrRefreshFailed    = errors.New("refresh failed")
	ErrTransientNetwork = errors.New("transient network error")
	ErrRefreshThrottled = errors.New("refresh throttled")

	// Request errors
	ErrAuthorizationFailure = errors.New("authorization failure")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
