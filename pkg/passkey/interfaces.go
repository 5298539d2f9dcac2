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
	"time"

	"github.com/google/uuid"
)

// ChallengeStore holds pending ceremony state keyed by challenge value.
// Entries are single-use: TakeIfValid removes the entry it returns, and
// concurrent takes of the same challenge yield the entry to exactly one
// caller.
type ChallengeStore interface {
	// Put stores a pending ceremony keyed by its challenge with an
	// absolute expiry of now + ttl. Returns ErrChallengeConflict if an
	// unexpired entry with the same challenge already exists.
	Put(ctx context.Context, challenge string, pending *PendingCeremony, ttl time.Duration) error

	// TakeIfValid atomically retrieves and removes the pending ceremony
	// if present and not expired. Returns ErrChallengeNotFound if the
	// entry is absent, expired, or was already taken.
	TakeIfValid(ctx context.Context, challenge string) (*PendingCeremony, error)
}

// CredentialUniquenessChecker guards registration against credential id
// collisions across the entire system, not just the registering user.
type CredentialUniquenessChecker interface {
	// CredentialExists reports whether any user owns a credential with
	// the given id.
	CredentialExists(ctx context.Context, credentialID string) (bool, error)
}

// CredentialOwnershipChecker confirms that a credential presented in a
// usernameless assertion belongs to the user handle the authenticator
// reported.
type CredentialOwnershipChecker interface {
	// CredentialOwnedBy reports whether the credential with the given id
	// is owned by the given user.
	CredentialOwnedBy(ctx context.Context, credentialID string, userID uuid.UUID) (bool, error)
}

// Store is the persistence layer for users and their credentials.
// Implementations must enforce username uniqueness, credential id
// uniqueness across all users, and cascade credential removal when the
// owning user is deleted.
type Store interface {
	CredentialUniquenessChecker
	CredentialOwnershipChecker

	// GetUserByID retrieves a user by id.
	// Returns ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error)

	// GetUserByUsername retrieves a user by username.
	// Returns ErrUserNotFound if the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// CreateUserWithCredential atomically persists a new user together
	// with their first credential. Both rows commit or neither does.
	// Returns ErrUsernameConflict or ErrCredentialConflict on constraint
	// violations.
	CreateUserWithCredential(ctx context.Context, user *User, cred *Credential) error

	// CreateCredential persists an additional credential for an existing
	// user. Returns ErrCredentialConflict if the id is already taken.
	CreateCredential(ctx context.Context, cred *Credential) error

	// GetCredentialByID retrieves a credential by its id.
	// Returns ErrCredentialNotFound if the credential does not exist.
	GetCredentialByID(ctx context.Context, credentialID string) (*Credential, error)

	// GetCredentialsByUserID retrieves all credentials for a user.
	// Returns an empty slice if the user has no credentials.
	GetCredentialsByUserID(ctx context.Context, userID uuid.UUID) ([]*Credential, error)

	// UpdateCredentialCounter conditionally advances the signature
	// counter from oldCounter to newCounter and records the usage time.
	// The write only commits if the stored counter still equals
	// oldCounter; otherwise ErrStaleCounter is returned so a racing
	// assertion cannot commit a stale value.
	UpdateCredentialCounter(ctx context.Context, credentialID string, oldCounter, newCounter uint32, usedAt time.Time) error

	// DeleteCredential removes a single credential owned by the given
	// user. Returns ErrCredentialNotFound if no such credential exists
	// for that user.
	DeleteCredential(ctx context.Context, credentialID string, userID uuid.UUID) error

	// DeleteUser removes a user and cascades removal of all their
	// credentials. Returns ErrUserNotFound if the user does not exist.
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// TokenIssuer mints bearer tokens bound to a verified user identity.
type TokenIssuer interface {
	// Mint produces a signed token whose subject is the user id.
	Mint(ctx context.Context, userID uuid.UUID) (string, error)
}
