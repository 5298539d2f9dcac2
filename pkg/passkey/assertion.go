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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// BeginAssertion starts an assertion ceremony and returns the options to
// send to the client.
//
// With a known username, the options list that user's credential ids in
// allowCredentials so the authenticator can filter candidates. Without
// one, allowCredentials is empty and the authenticator selects a resident
// credential itself, returning the user handle in its response. An
// unknown username takes the usernameless path too, so the options
// endpoint does not reveal which usernames exist.
func (s *Service) BeginAssertion(ctx context.Context, username string) (*protocol.CredentialAssertion, error) {
	var (
		options *protocol.CredentialAssertion
		session *webauthn.SessionData
		user    *User
		err     error
	)

	if username != "" {
		user, err = s.store.GetUserByUsername(ctx, username)
		if err != nil && !IsUserNotFound(err) {
			return nil, WrapError("get user by username", err)
		}
	}

	if user == nil {
		options, session, err = s.webauthn.BeginDiscoverableLogin()
		if err != nil {
			return nil, WrapError("begin assertion", err)
		}
	} else {
		creds, credErr := s.store.GetCredentialsByUserID(ctx, user.ID)
		if credErr != nil {
			return nil, WrapError("get credentials", credErr)
		}

		cu, cuErr := newCeremonyUser(user, creds)
		if cuErr != nil {
			return nil, WrapError("convert credentials", cuErr)
		}

		options, session, err = s.webauthn.BeginLogin(cu)
		if err != nil {
			return nil, WrapError("begin assertion", err)
		}
	}

	pending := &PendingCeremony{
		Kind:    CeremonyAssertion,
		Session: session,
		User:    user,
	}
	if err := s.challenges.Put(ctx, session.Challenge, pending, s.config.Timeout); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return options, nil
}

// CompleteAssertion consumes the ceremony challenge embedded in the
// client response, verifies the signature against the stored public key,
// enforces the signature counter policy, persists the advanced counter,
// and returns a bearer token for the credential's owner.
//
// Counter policy: a stored counter of zero marks the authenticator as
// counter-disabled and any reported value is accepted. A non-zero stored
// counter must strictly increase or the assertion fails and the stored
// value is left unchanged.
func (s *Service) CompleteAssertion(ctx context.Context, response *protocol.ParsedCredentialAssertionData) (string, *User, error) {
	challenge := response.Response.CollectedClientData.Challenge
	pending, err := s.challenges.TakeIfValid(ctx, challenge)
	if err != nil {
		return "", nil, WrapError("take challenge", err)
	}
	if pending.Kind != CeremonyAssertion {
		return "", nil, NewError("take challenge", ErrChallengeNotFound)
	}

	credentialID := EncodeCredentialID(response.RawID)
	stored, err := s.store.GetCredentialByID(ctx, credentialID)
	if err != nil {
		return "", nil, WrapError("lookup credential", err)
	}

	var user *User
	if pending.User != nil {
		user = pending.User
		if stored.UserID != user.ID {
			return "", nil, NewError("verify ownership", fmt.Errorf("%w: credential belongs to a different user", ErrAssertionFailed))
		}

		creds, credErr := s.store.GetCredentialsByUserID(ctx, user.ID)
		if credErr != nil {
			return "", nil, WrapError("get credentials", credErr)
		}
		cu, cuErr := newCeremonyUser(user, creds)
		if cuErr != nil {
			return "", nil, WrapError("convert credentials", cuErr)
		}

		if _, err = s.webauthn.ValidateLogin(cu, *pending.Session, response); err != nil {
			return "", nil, NewError("validate assertion", fmt.Errorf("%w: %v", ErrAssertionFailed, err))
		}
	} else {
		if _, err = s.webauthn.ValidateDiscoverableLogin(s.discoverableUserHandler(ctx), *pending.Session, response); err != nil {
			return "", nil, NewError("validate assertion", fmt.Errorf("%w: %v", ErrAssertionFailed, err))
		}

		user, err = s.store.GetUserByID(ctx, stored.UserID)
		if err != nil {
			return "", nil, WrapError("get user", err)
		}
	}

	// The reported counter is untrusted input. Enforce the policy
	// explicitly rather than relying on the library's clone warning.
	newCounter := response.Response.AuthenticatorData.Counter
	if stored.SignatureCounter > 0 && newCounter <= stored.SignatureCounter {
		return "", nil, NewError("verify signature counter", fmt.Errorf("%w: %w", ErrAssertionFailed, ErrCounterRegression))
	}

	if err := s.store.UpdateCredentialCounter(ctx, credentialID, stored.SignatureCounter, newCounter, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrStaleCounter) {
			return "", nil, NewError("update signature counter", fmt.Errorf("%w: %w", ErrAssertionFailed, ErrStaleCounter))
		}
		return "", nil, WrapError("update signature counter", err)
	}

	token, err := s.tokens.Mint(ctx, user.ID)
	if err != nil {
		return "", nil, WrapError("mint token", err)
	}

	return token, user, nil
}

// discoverableUserHandler resolves the user selected by the authenticator
// in a usernameless assertion. The ownership check rejects responses that
// pair a user handle with a credential it does not own.
func (s *Service) discoverableUserHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		userID, err := uuid.FromBytes(userHandle)
		if err != nil {
			return nil, fmt.Errorf("invalid user handle: %w", err)
		}

		owned, err := s.store.CredentialOwnedBy(ctx, EncodeCredentialID(rawID), userID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, fmt.Errorf("credential not owned by presented user handle")
		}

		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		creds, err := s.store.GetCredentialsByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		cu, err := newCeremonyUser(user, creds)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(cu.WebAuthnID(), userHandle) {
			return nil, fmt.Errorf("user handle mismatch")
		}
		return cu, nil
	}
}
