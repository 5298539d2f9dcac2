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

package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "passkey.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newUser(username string) *passkey.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &passkey.User{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: "Test " + username,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newCredential(userID uuid.UUID, id string) *passkey.Credential {
	return &passkey.Credential{
		ID:               id,
		UserID:           userID,
		PublicKey:        []byte("cose-key-material"),
		SignatureCounter: 0,
		Type:             "public-key",
		AAGUID:           uuid.New(),
		Transport: []protocol.AuthenticatorTransport{
			protocol.Internal,
			protocol.Hybrid,
		},
		Flags: passkey.CredentialFlags{
			UserPresent:    true,
			UserVerified:   true,
			BackupEligible: true,
		},
		RegisteredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)

	_, err = Open("   ")
	assert.Error(t, err)
}

func TestOpenInMemory(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	user := newUser("memuser")
	require.NoError(t, store.CreateUserWithCredential(context.Background(), user, newCredential(user.ID, "mem-cred")))

	got, err := store.GetUserByUsername(context.Background(), "memuser")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("alice")
	cred := newCredential(user.ID, "cred-alice")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, cred))

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, byID.Username)
	assert.Equal(t, user.DisplayName, byID.DisplayName)
	assert.Equal(t, user.CreatedAt, byID.CreatedAt)

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = store.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, passkey.ErrUserNotFound)
	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, passkey.ErrUserNotFound)
}

func TestCredentialRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("bob")
	cred := newCredential(user.ID, "cred-bob")
	cred.LastUsedAt = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.CreateUserWithCredential(ctx, user, cred))

	got, err := store.GetCredentialByID(ctx, "cred-bob")
	require.NoError(t, err)
	assert.Equal(t, cred.UserID, got.UserID)
	assert.Equal(t, cred.PublicKey, got.PublicKey)
	assert.Equal(t, cred.Type, got.Type)
	assert.Equal(t, cred.AAGUID, got.AAGUID)
	assert.Equal(t, cred.Transport, got.Transport)
	assert.Equal(t, cred.Flags, got.Flags)
	assert.Equal(t, cred.RegisteredAt, got.RegisteredAt)
	assert.Equal(t, cred.LastUsedAt, got.LastUsedAt)

	_, err = store.GetCredentialByID(ctx, "missing")
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)
}

func TestUsernameUniqueConstraint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newUser("carol")
	require.NoError(t, store.CreateUserWithCredential(ctx, first, newCredential(first.ID, "cred-1")))

	second := newUser("carol")
	err := store.CreateUserWithCredential(ctx, second, newCredential(second.ID, "cred-2"))
	assert.ErrorIs(t, err, passkey.ErrUsernameConflict)

	// The transaction rolled back, no orphan credential remains.
	exists, err := store.CredentialExists(ctx, "cred-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCredentialUniqueConstraint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newUser("dave")
	require.NoError(t, store.CreateUserWithCredential(ctx, first, newCredential(first.ID, "shared")))

	// Same credential id under a different user fails and leaves no
	// partial user row behind.
	second := newUser("erin")
	err := store.CreateUserWithCredential(ctx, second, newCredential(second.ID, "shared"))
	assert.ErrorIs(t, err, passkey.ErrCredentialConflict)

	_, err = store.GetUserByUsername(ctx, "erin")
	assert.ErrorIs(t, err, passkey.ErrUserNotFound)

	// Same id for the same user via CreateCredential fails too.
	err = store.CreateCredential(ctx, newCredential(first.ID, "shared"))
	assert.ErrorIs(t, err, passkey.ErrCredentialConflict)
}

func TestGetCredentialsByUserID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("frank")
	first := newCredential(user.ID, "cred-old")
	first.RegisteredAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	require.NoError(t, store.CreateUserWithCredential(ctx, user, first))
	require.NoError(t, store.CreateCredential(ctx, newCredential(user.ID, "cred-new")))

	creds, err := store.GetCredentialsByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "cred-old", creds[0].ID)
	assert.Equal(t, "cred-new", creds[1].ID)

	creds, err = store.GetCredentialsByUserID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestCredentialExistsAndOwnership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("grace")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, newCredential(user.ID, "cred-1")))

	exists, err := store.CredentialExists(ctx, "cred-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.CredentialExists(ctx, "cred-ghost")
	require.NoError(t, err)
	assert.False(t, exists)

	owned, err := store.CredentialOwnedBy(ctx, "cred-1", user.ID)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = store.CredentialOwnedBy(ctx, "cred-1", uuid.New())
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestUpdateCredentialCounter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("heidi")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, newCredential(user.ID, "cred-1")))

	usedAt := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.UpdateCredentialCounter(ctx, "cred-1", 0, 7, usedAt))

	cred, err := store.GetCredentialByID(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cred.SignatureCounter)
	assert.Equal(t, usedAt, cred.LastUsedAt)

	// A conditional update against a stale expected value must fail and
	// leave the row untouched.
	err = store.UpdateCredentialCounter(ctx, "cred-1", 0, 20, time.Now().UTC())
	assert.ErrorIs(t, err, passkey.ErrStaleCounter)

	cred, err = store.GetCredentialByID(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cred.SignatureCounter)

	err = store.UpdateCredentialCounter(ctx, "cred-ghost", 0, 1, time.Now().UTC())
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)
}

func TestDeleteCredential(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("ivan")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, newCredential(user.ID, "cred-1")))
	require.NoError(t, store.CreateCredential(ctx, newCredential(user.ID, "cred-2")))

	// Ownership is enforced in the delete predicate.
	err := store.DeleteCredential(ctx, "cred-1", uuid.New())
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)

	require.NoError(t, store.DeleteCredential(ctx, "cred-1", user.ID))

	err = store.DeleteCredential(ctx, "cred-1", user.ID)
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)

	creds, err := store.GetCredentialsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestDeleteUserCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("judy")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, newCredential(user.ID, "cred-1")))
	require.NoError(t, store.CreateCredential(ctx, newCredential(user.ID, "cred-2")))

	require.NoError(t, store.DeleteUser(ctx, user.ID))

	_, err := store.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, passkey.ErrUserNotFound)

	// Credentials went with the user row.
	for _, id := range []string{"cred-1", "cred-2"} {
		exists, err := store.CredentialExists(ctx, id)
		require.NoError(t, err)
		assert.False(t, exists, "credential %s should cascade", id)
	}

	err = store.DeleteUser(ctx, user.ID)
	assert.ErrorIs(t, err, passkey.ErrUserNotFound)
}

func TestCreateCredentialForDeletedUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("kim")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, newCredential(user.ID, "cred-1")))
	require.NoError(t, store.DeleteUser(ctx, user.ID))

	// The owning user row is gone, so the insert violates the foreign
	// key and surfaces as a not-found error rather than a storage fault.
	err := store.CreateCredential(ctx, newCredential(user.ID, "cred-2"))
	assert.ErrorIs(t, err, passkey.ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		user := newUser(fmt.Sprintf("user-%d", i))
		user.CreatedAt = base.Add(time.Duration(3-i) * time.Minute)
		user.UpdatedAt = user.CreatedAt
		require.NoError(t, store.CreateUserWithCredential(ctx, user, newCredential(user.ID, fmt.Sprintf("cred-%d", i))))
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "user-2", users[0].Username)
	assert.Equal(t, "user-1", users[1].Username)
	assert.Equal(t, "user-0", users[2].Username)
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	users, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, users)

	user := newUser("counted")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, newCredential(user.ID, "cred-1")))
	require.NoError(t, store.CreateCredential(ctx, newCredential(user.ID, "cred-2")))

	users, err = store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)

	creds, err := store.CountCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, creds)
}

func TestEmptyTransports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := newUser("kate")
	cred := newCredential(user.ID, "cred-no-transport")
	cred.Transport = nil
	require.NoError(t, store.CreateUserWithCredential(ctx, user, cred))

	got, err := store.GetCredentialByID(ctx, "cred-no-transport")
	require.NoError(t, err)
	assert.Empty(t, got.Transport)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)

	user := newUser("durable")
	require.NoError(t, store.CreateUserWithCredential(ctx, user, newCredential(user.ID, "cred-1")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetUserByUsername(ctx, "durable")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}
