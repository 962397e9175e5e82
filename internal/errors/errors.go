package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the client, cache and drivers
var (
	// Configuration errors
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidBaseURL     = errors.New("invalid base URL")
	ErrSinkNotConfigured  = errors.New("sink not configured")

	// Token errors
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingUserID   = errors.New("token has no user id")
	ErrTokenNotPresent = errors.New("no token held")

	// Cache errors
	ErrNotFound = errors.New("not found")

	// General errors
	ErrInvalidArgument = errors.New("invalid argument")
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

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}
