// ABOUTME: Error taxonomy for remote identity service failures
// ABOUTME: Sentinel errors and typed errors the session engine surfaces to callers

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for well-known remote failures.
var (
	// ErrInvalidCredentials is returned when the identifier/secret pair is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode is returned when a one-time code fails verification.
	ErrInvalidCode = errors.New("invalid one-time code")
	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("username or email already taken")
)

// ValidationError reports malformed client input rejected by the server.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "invalid input"
	}
	return e.Message
}

// SecondFactorRequiredError is returned by login when the account has a
// second factor enabled and no (or a wrong) one-time code was supplied. It
// carries the identifier so the caller can prompt for an OTP and retry.
type SecondFactorRequiredError struct {
	Identifier string
	Message    string
}

func (e *SecondFactorRequiredError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "second factor required"
}

// ServiceError reports a transport failure or an unrecognized server error.
type ServiceError struct {
	Status  int    // HTTP status, 0 for transport failures
	Message string
}

func (e *ServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("identity service unreachable: %s", e.Message)
	}
	return fmt.Sprintf("identity service error (status %d): %s", e.Status, e.Message)
}
