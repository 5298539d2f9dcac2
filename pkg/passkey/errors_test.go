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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasskeyErrorMessage(t *testing.T) {
	err := NewError("get user", ErrUserNotFound)
	assert.Equal(t, "get user: user not found", err.Error())

	bare := &PasskeyError{Err: ErrUserNotFound}
	assert.Equal(t, "user not found", bare.Error())
}

func TestPasskeyErrorUnwrap(t *testing.T) {
	err := NewError("lookup", ErrCredentialNotFound)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	// Wrapping survives another layer.
	outer := fmt.Errorf("request failed: %w", err)
	assert.ErrorIs(t, outer, ErrCredentialNotFound)
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError("op", nil))
	assert.Error(t, WrapError("op", errors.New("boom")))
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
	}{
		{"user not found", ErrUserNotFound, IsUserNotFound},
		{"username conflict", ErrUsernameConflict, IsUsernameConflict},
		{"credential not found", ErrCredentialNotFound, IsCredentialNotFound},
		{"credential conflict", ErrCredentialConflict, IsCredentialConflict},
		{"challenge not found", ErrChallengeNotFound, IsChallengeNotFound},
		{"registration failed", ErrRegistrationFailed, IsRegistrationFailed},
		{"assertion failed", ErrAssertionFailed, IsAssertionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.predicate(NewError("op", tt.err)))
			assert.False(t, tt.predicate(errors.New("unrelated")))
			assert.False(t, tt.predicate(nil))
		})
	}
}

func TestCompositeFailureMatchesBothSentinels(t *testing.T) {
	// Verification failures carry both the ceremony sentinel and the
	// specific cause so callers can branch on either.
	err := NewError("persist credential", fmt.Errorf("%w: %w", ErrRegistrationFailed, ErrCredentialConflict))
	assert.True(t, IsRegistrationFailed(err))
	assert.True(t, IsCredentialConflict(err))
}
