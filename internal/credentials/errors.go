package credentials

import (
	"errors"
	"fmt"
)

// Reason tells apart the situations that reject a set of credentials
type Reason string

const (
	ReasonUntrustedHost      Reason = "untrusted_host"
	ReasonMissingCredentials Reason = "missing_credentials"
	ReasonKeyMismatch        Reason = "key_mismatch"
	ReasonInvalidLogin       Reason = "invalid_login"
)

// AuthenticationError is returned whenever credentials cannot be trusted.
// All reasons share the same recovery path: the client has to log in again.
type AuthenticationError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication error (%s): %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Reason, e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NewAuthenticationError creates an AuthenticationError with an optional cause
func NewAuthenticationError(reason Reason, message string, err error) *AuthenticationError {
	return &AuthenticationError{
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// IsAuthenticationError reports whether err (or any error in its chain) is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// ReasonOf returns the reason of the first AuthenticationError in the chain,
// or an empty Reason if there is none.
func ReasonOf(err error) Reason {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ""
}
