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
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingRegistration(challenge string) *PendingCeremony {
	return &PendingCeremony{
		Kind:    CeremonyRegistration,
		Session: &webauthn.SessionData{Challenge: challenge},
	}
}

func TestChallengeStorePutTake(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	pending := pendingRegistration("challenge-1")
	err := store.Put(ctx, "challenge-1", pending, time.Minute)
	require.NoError(t, err)

	got, err := store.TakeIfValid(ctx, "challenge-1")
	require.NoError(t, err)
	assert.Equal(t, CeremonyRegistration, got.Kind)
	assert.Equal(t, "challenge-1", got.Session.Challenge)
}

func TestChallengeStoreSingleUse(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	err := store.Put(ctx, "once", pendingRegistration("once"), time.Minute)
	require.NoError(t, err)

	_, err = store.TakeIfValid(ctx, "once")
	require.NoError(t, err)

	// The first take consumed the entry, a replay must fail.
	_, err = store.TakeIfValid(ctx, "once")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeStoreUnknownChallenge(t *testing.T) {
	store := NewMemoryChallengeStore()

	_, err := store.TakeIfValid(context.Background(), "never-stored")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeStoreExpiredTake(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	err := store.Put(ctx, "expired", pendingRegistration("expired"), -time.Second)
	require.NoError(t, err)

	_, err = store.TakeIfValid(ctx, "expired")
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	// The expired entry was removed by the failed take.
	assert.Equal(t, 0, store.Count())
}

func TestChallengeStorePutConflict(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	err := store.Put(ctx, "dup", pendingRegistration("dup"), time.Minute)
	require.NoError(t, err)

	err = store.Put(ctx, "dup", pendingRegistration("dup"), time.Minute)
	assert.ErrorIs(t, err, ErrChallengeConflict)
}

func TestChallengeStorePutOverwritesExpired(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	err := store.Put(ctx, "reuse", pendingRegistration("old"), -time.Second)
	require.NoError(t, err)

	// An expired entry does not block the key.
	fresh := &PendingCeremony{
		Kind:    CeremonyAssertion,
		Session: &webauthn.SessionData{Challenge: "reuse"},
	}
	err = store.Put(ctx, "reuse", fresh, time.Minute)
	require.NoError(t, err)

	got, err := store.TakeIfValid(ctx, "reuse")
	require.NoError(t, err)
	assert.Equal(t, CeremonyAssertion, got.Kind)
}

func TestChallengeStoreConcurrentTake(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	err := store.Put(ctx, "contested", pendingRegistration("contested"), time.Minute)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.TakeIfValid(ctx, "contested")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrChallengeNotFound)
		}
	}
	assert.Equal(t, 1, winners, "exactly one goroutine should win the take")
}

func TestChallengeStoreCleanup(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		challenge := fmt.Sprintf("live-%d", i)
		require.NoError(t, store.Put(ctx, challenge, pendingRegistration(challenge), time.Minute))
	}
	for i := 0; i < 3; i++ {
		challenge := fmt.Sprintf("dead-%d", i)
		require.NoError(t, store.Put(ctx, challenge, pendingRegistration(challenge), -time.Second))
	}

	removed := store.Cleanup()
	assert.Equal(t, 3, removed)
	assert.Equal(t, 5, store.Count())
}

func TestChallengeStoreStartCleanup(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Put(ctx, "short-lived", pendingRegistration("short-lived"), 10*time.Millisecond))
	store.StartCleanup(ctx, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		return store.Count() == 0
	}, time.Second, 10*time.Millisecond)
}
