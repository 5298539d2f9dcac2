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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of Store.
// This is intended for development and testing only.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]*User
	byUsername map[string]uuid.UUID
	creds      map[string]*Credential
	byUserID   map[uuid.UUID][]string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[uuid.UUID]*User),
		byUsername: make(map[string]uuid.UUID),
		creds:      make(map[string]*Credential),
		byUserID:   make(map[uuid.UUID][]string),
	}
}

// GetUserByID retrieves a user by id.
func (s *MemoryStore) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetUserByUsername retrieves a user by username.
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

// ListUsers returns all users ordered by creation time.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// CreateUserWithCredential atomically persists a new user and their first
// credential. The single mutex makes the pair all-or-nothing.
func (s *MemoryStore) CreateUserWithCredential(ctx context.Context, user *User, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrUsernameConflict
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return ErrUsernameConflict
	}
	if _, ok := s.creds[cred.ID]; ok {
		return ErrCredentialConflict
	}

	userCopy := *user
	credCopy := *cred
	s.users[user.ID] = &userCopy
	s.byUsername[user.Username] = user.ID
	s.creds[cred.ID] = &credCopy
	s.byUserID[user.ID] = append(s.byUserID[user.ID], cred.ID)

	return nil
}

// CreateCredential persists an additional credential for an existing user.
func (s *MemoryStore) CreateCredential(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[cred.UserID]; !ok {
		return ErrUserNotFound
	}
	if _, ok := s.creds[cred.ID]; ok {
		return ErrCredentialConflict
	}

	credCopy := *cred
	s.creds[cred.ID] = &credCopy
	s.byUserID[cred.UserID] = append(s.byUserID[cred.UserID], cred.ID)

	return nil
}

// GetCredentialByID retrieves a credential by its id.
func (s *MemoryStore) GetCredentialByID(ctx context.Context, credentialID string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[credentialID]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	copied := *cred
	return &copied, nil
}

// GetCredentialsByUserID retrieves all credentials for a user.
func (s *MemoryStore) GetCredentialsByUserID(ctx context.Context, userID uuid.UUID) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUserID[userID]
	result := make([]*Credential, 0, len(ids))
	for _, id := range ids {
		copied := *s.creds[id]
		result = append(result, &copied)
	}
	return result, nil
}

// CredentialExists reports whether any user owns the credential id.
func (s *MemoryStore) CredentialExists(ctx context.Context, credentialID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.creds[credentialID]
	return ok, nil
}

// CredentialOwnedBy reports whether the credential belongs to the user.
func (s *MemoryStore) CredentialOwnedBy(ctx context.Context, credentialID string, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[credentialID]
	if !ok {
		return false, nil
	}
	return cred.UserID == userID, nil
}

// UpdateCredentialCounter conditionally advances the signature counter.
func (s *MemoryStore) UpdateCredentialCounter(ctx context.Context, credentialID string, oldCounter, newCounter uint32, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[credentialID]
	if !ok {
		return ErrCredentialNotFound
	}
	if cred.SignatureCounter != oldCounter {
		return ErrStaleCounter
	}

	cred.SignatureCounter = newCounter
	cred.LastUsedAt = usedAt
	return nil
}

// DeleteCredential removes a single credential owned by the given user.
func (s *MemoryStore) DeleteCredential(ctx context.Context, credentialID string, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[credentialID]
	if !ok || cred.UserID != userID {
		return ErrCredentialNotFound
	}

	delete(s.creds, credentialID)
	s.byUserID[userID] = removeString(s.byUserID[userID], credentialID)
	return nil
}

// DeleteUser removes a user and cascades removal of their credentials.
func (s *MemoryStore) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	for _, credID := range s.byUserID[userID] {
		delete(s.creds, credID)
	}
	delete(s.byUserID, userID)
	delete(s.byUsername, user.Username)
	delete(s.users, userID)

	return nil
}

// UserCount returns the number of users in the store.
func (s *MemoryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// CredentialCount returns the number of credentials in the store.
func (s *MemoryStore) CredentialCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

// CountUsers returns the number of registered users.
func (s *MemoryStore) CountUsers(ctx context.Context) (int, error) {
	return s.UserCount(), nil
}

// CountCredentials returns the number of stored credentials.
func (s *MemoryStore) CountCredentials(ctx context.Context) (int, error) {
	return s.CredentialCount(), nil
}

func removeString(list []string, target string) []string {
	for i, v := range list {
		if v == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
