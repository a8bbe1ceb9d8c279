package authapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrRefreshFailed is returned when the refresh exchange is rejected.
	// Callers recover by falling back to the unauthenticated state.
	ErrRefreshFailed = errors.New("refresh failed")

	// ErrLoginFailed is returned when an interactive login attempt is
	// rejected. This is the only error category surfaced to the user.
	ErrLoginFailed = errors.New("login failed")
)

// LoginError carries the readable message and machine code from a rejected
// interactive login, suitable for display.
type LoginError struct {
	// Code is the machine-readable error code from the API, if any.
	Code string
	// Message is the human-readable message from the API.
	Message string
	// Status is the HTTP status of the rejection.
	Status int
}

// Error returns a human-readable description of the login failure.
func (e *LoginError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("login failed: %s", e.Message)
	}
	return fmt.Sprintf("login failed with status %d", e.Status)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrLoginFailed).
func (e *LoginError) Is(target error) bool {
	return target == ErrLoginFailed
}
