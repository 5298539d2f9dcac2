// Copyright (c) 2026 Jeremy Hahn
// Copyright (c) 2026 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"errors"
	"fmt"
)

// Sentinel errors for passkey operations.
var (
	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameConflict is returned when a username is already taken by
	// a different identity.
	ErrUsernameConflict = errors.New("username already exists")

	// ErrCredentialNotFound is returned when no credential matches the
	// id presented in an assertion response.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialConflict is returned when a credential id already
	// exists for any user in the system.
	ErrCredentialConflict = errors.New("credential already exists")

	// ErrChallengeNotFound is returned when a ceremony challenge is
	// absent, expired, or already consumed.
	ErrChallengeNotFound = errors.New("challenge expired or unknown")

	// ErrChallengeConflict is returned when storing a challenge that
	// collides with an unexpired pending ceremony.
	ErrChallengeConflict = errors.New("challenge already pending")

	// ErrRegistrationFailed is returned when registration verification
	// fails. The underlying reason is attached via wrapping.
	ErrRegistrationFailed = errors.New("registration verification failed")

	// ErrAssertionFailed is returned when assertion verification fails.
	// The underlying reason is attached via wrapping.
	ErrAssertionFailed = errors.New("assertion verification failed")

	// ErrCounterRegression is returned when an authenticator reports a
	// signature counter that did not advance past the stored value.
	ErrCounterRegression = errors.New("signature counter regression")

	// ErrStaleCounter is returned when a conditional counter update loses
	// a race against a concurrent assertion on the same credential.
	ErrStaleCounter = errors.New("stale signature counter")

	// ErrSigningKeyMissing is returned when the token signing secret is
	// not configured. This is a startup-time fatal condition.
	ErrSigningKeyMissing = errors.New("token signing key not configured")

	// ErrInvalidToken is returned when a bearer token fails validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// PasskeyError wraps an error with the operation that produced it.
type PasskeyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *PasskeyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PasskeyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *PasskeyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new PasskeyError with the given operation and error.
func NewError(op string, err error) error {
	return &PasskeyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsUsernameConflict returns true if the error indicates a username collision.
func IsUsernameConflict(err error) bool {
	return errors.Is(err, ErrUsernameConflict)
}

// IsCredentialNotFound returns true if the error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsCredentialConflict returns true if the error indicates a duplicate
// credential id.
func IsCredentialConflict(err error) bool {
	return errors.Is(err, ErrCredentialConflict)
}

// IsChallengeNotFound returns true if the error indicates a challenge was
// absent, expired, or already consumed.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsRegistrationFailed returns true if the error indicates registration
// verification failed.
func IsRegistrationFailed(err error) bool {
	return errors.Is(err, ErrRegistrationFailed)
}

// IsAssertionFailed returns true if the error indicates assertion
// verification failed.
func IsAssertionFailed(err error) bool {
	return errors.Is(err, ErrAssertionFailed)
}
