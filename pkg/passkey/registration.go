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
	"context"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// BeginRegistration starts a credential creation ceremony and returns the
// options to send to the client.
//
// When callerID resolves to an existing user the ceremony registers an
// additional authenticator for that user and the username argument is
// ignored. Otherwise a fresh identity is provisioned: a taken username
// fails with ErrUsernameConflict, and a blank one receives a generated
// placeholder. The new user is not persisted until CompleteRegistration
// verifies the response.
func (s *Service) BeginRegistration(ctx context.Context, username, displayName string, callerID *uuid.UUID) (*protocol.CredentialCreation, error) {
	user, newUser, err := s.resolveRegistrationIdentity(ctx, username, displayName, callerID)
	if err != nil {
		return nil, err
	}

	// Existing credentials are excluded so the client cannot re-register
	// an authenticator it already holds for this user.
	var existing []*Credential
	if !newUser {
		existing, err = s.store.GetCredentialsByUserID(ctx, user.ID)
		if err != nil {
			return nil, WrapError("get credentials", err)
		}
	}

	excludeList := make([]protocol.CredentialDescriptor, 0, len(existing))
	for _, cred := range existing {
		rawID, decodeErr := DecodeCredentialID(cred.ID)
		if decodeErr != nil {
			return nil, WrapError("decode credential id", decodeErr)
		}
		excludeList = append(excludeList, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: rawID,
			Transport:    cred.Transport,
		})
	}

	cu, err := newCeremonyUser(user, existing)
	if err != nil {
		return nil, WrapError("convert credentials", err)
	}

	options, session, err := s.webauthn.BeginRegistration(cu,
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	pending := &PendingCeremony{
		Kind:    CeremonyRegistration,
		Session: session,
		User:    user,
		NewUser: newUser,
	}
	if err := s.challenges.Put(ctx, session.Challenge, pending, s.config.Timeout); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return options, nil
}

// CompleteRegistration consumes the ceremony challenge embedded in the
// client response, verifies the attestation, persists the new credential
// (and user, atomically, when this registration provisioned one), and
// returns a bearer token for the identity.
//
// The challenge is consumed before verification. A failure at any later
// stage does not revive it; the client must restart from BeginRegistration.
func (s *Service) CompleteRegistration(ctx context.Context, response *protocol.ParsedCredentialCreationData) (string, *User, error) {
	challenge := response.Response.CollectedClientData.Challenge
	pending, err := s.challenges.TakeIfValid(ctx, challenge)
	if err != nil {
		return "", nil, WrapError("take challenge", err)
	}
	if pending.Kind != CeremonyRegistration {
		return "", nil, NewError("take challenge", ErrChallengeNotFound)
	}

	user := pending.User
	cu, err := newCeremonyUser(user, nil)
	if err != nil {
		return "", nil, WrapError("convert credentials", err)
	}

	verified, err := s.webauthn.CreateCredential(cu, *pending.Session, response)
	if err != nil {
		return "", nil, NewError("create credential", fmt.Errorf("%w: %v", ErrRegistrationFailed, err))
	}

	// The credential id must be unique across all users, not just this
	// one. The storage layer's unique constraint backstops this check
	// against racing registrations.
	credentialID := EncodeCredentialID(verified.ID)
	exists, err := s.store.CredentialExists(ctx, credentialID)
	if err != nil {
		return "", nil, WrapError("check credential uniqueness", err)
	}
	if exists {
		return "", nil, NewError("check credential uniqueness", fmt.Errorf("%w: %w", ErrRegistrationFailed, ErrCredentialConflict))
	}

	cred := FromWebAuthnCredential(user.ID, verified)

	if pending.NewUser {
		now := time.Now().UTC()
		user.CreatedAt = now
		user.UpdatedAt = now
		err = s.store.CreateUserWithCredential(ctx, user, cred)
	} else {
		err = s.store.CreateCredential(ctx, cred)
	}
	if err != nil {
		if IsCredentialConflict(err) || IsUsernameConflict(err) {
			return "", nil, NewError("persist credential", fmt.Errorf("%w: %w", ErrRegistrationFailed, err))
		}
		return "", nil, WrapError("persist credential", err)
	}

	token, err := s.tokens.Mint(ctx, user.ID)
	if err != nil {
		return "", nil, WrapError("mint token", err)
	}

	return token, user, nil
}

// resolveRegistrationIdentity determines which identity the ceremony is
// for and whether it must be created at completion time.
func (s *Service) resolveRegistrationIdentity(ctx context.Context, username, displayName string, callerID *uuid.UUID) (*User, bool, error) {
	if callerID != nil {
		user, err := s.store.GetUserByID(ctx, *callerID)
		if err == nil {
			return user, false, nil
		}
		if !IsUserNotFound(err) {
			return nil, false, WrapError("get caller", err)
		}
		// Stale caller identity, fall through to the anonymous path.
	}

	if username != "" {
		_, err := s.store.GetUserByUsername(ctx, username)
		if err == nil {
			return nil, false, NewError("check username", ErrUsernameConflict)
		}
		if !IsUserNotFound(err) {
			return nil, false, WrapError("get user by username", err)
		}
	}

	id := uuid.New()
	if username == "" {
		username = "user-" + id.String()
	}

	return &User{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
	}, true, nil
}
