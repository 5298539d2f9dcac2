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
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// CeremonyKind distinguishes pending registration state from pending
// assertion state. A challenge issued for one kind cannot complete the
// other.
type CeremonyKind string

const (
	// CeremonyRegistration is a pending credential creation ceremony.
	CeremonyRegistration CeremonyKind = "registration"

	// CeremonyAssertion is a pending assertion ceremony.
	CeremonyAssertion CeremonyKind = "assertion"
)

// PendingCeremony is the server-side state stored between the Begin and
// Complete halves of a ceremony.
type PendingCeremony struct {
	// Kind is the ceremony this challenge was issued for.
	Kind CeremonyKind

	// Session is the WebAuthn session data captured at Begin time.
	Session *webauthn.SessionData

	// User is the identity the ceremony was started for. For a
	// registration that provisions a new user this is the only place the
	// identity exists until verification succeeds. Nil for usernameless
	// assertions.
	User *User

	// NewUser is true when completing the registration must create the
	// user row along with the credential.
	NewUser bool
}

// MemoryChallengeStore is an in-memory ChallengeStore with per-entry
// absolute expiry. Suitable for single-instance deployments; replace with
// a distributed implementation when running multiple instances.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	entries map[string]*challengeEntry
}

type challengeEntry struct {
	pending   *PendingCeremony
	expiresAt time.Time
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		entries: make(map[string]*challengeEntry),
	}
}

// Put stores a pending ceremony keyed by its challenge.
// Returns ErrChallengeConflict if an unexpired entry already holds the key.
func (s *MemoryChallengeStore) Put(ctx context.Context, challenge string, pending *PendingCeremony, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.entries[challenge]; ok && now.Before(existing.expiresAt) {
		return ErrChallengeConflict
	}

	s.entries[challenge] = &challengeEntry{
		pending:   pending,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// TakeIfValid atomically retrieves and removes the pending ceremony for
// the challenge. Expired entries are removed and reported as not found,
// so lazy expiry is correct even without background eviction.
func (s *MemoryChallengeStore) TakeIfValid(ctx context.Context, challenge string) (*PendingCeremony, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[challenge]
	if !ok {
		return nil, ErrChallengeNotFound
	}

	delete(s.entries, challenge)

	if time.Now().After(entry.expiresAt) {
		return nil, ErrChallengeNotFound
	}
	return entry.pending, nil
}

// Cleanup removes expired entries and returns how many were evicted.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for challenge, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, challenge)
			removed++
		}
	}
	return removed
}

// Count returns the number of entries currently held, expired or not.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartCleanup launches a background eviction loop that runs until the
// context is cancelled.
func (s *MemoryChallengeStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}
