// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/custody"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage/memory"
)

// fakeClock is a settable clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// registerIdentity creates a keyring and publishes its key state.
func registerIdentity(t *testing.T, store *memory.Store, n, threshold, sequence int) *custody.MemoryKeyring {
	t.Helper()
	k, err := custody.NewMemoryKeyring(n)
	require.NoError(t, err)
	require.NoError(t, store.PutKeyState(context.Background(), models.KeyState{
		AID:        k.AID(),
		Sequence:   sequence,
		PublicKeys: k.PublicKeyBytes(),
		Threshold:  threshold,
		UpdatedAt:  time.Now(),
	}))
	return k
}

func proveChallenge(t *testing.T, k *custody.MemoryKeyring, ch *models.Challenge, ksn int) models.AuthProof {
	t.Helper()
	payload, err := SigningPayload(ch)
	require.NoError(t, err)
	sigs, err := k.Sign(payload)
	require.NoError(t, err)
	return models.AuthProof{
		ChallengeID: ch.ChallengeID,
		AID:         k.AID(),
		KSN:         ksn,
		Signatures:  sigs,
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	store := memory.NewStore()
	clock := newFakeClock()
	svc := NewChallengeService(store, store, DefaultChallengeTTL, clock)
	k := registerIdentity(t, store, 2, 2, 4)

	args := map[string]any{"group_id": "g1"}
	ch, err := svc.Issue(context.Background(), k.AID(), "message/send", args)
	require.NoError(t, err)
	assert.NotEmpty(t, ch.ChallengeID)
	assert.Len(t, ch.Nonce, 32)

	ident, err := svc.Verify(context.Background(), proveChallenge(t, k, ch, 4), "message/send", args)
	require.NoError(t, err)
	assert.Equal(t, k.AID(), ident.AID)
	assert.Equal(t, 4, ident.KSN)
	assert.Equal(t, ch.ChallengeID, ident.ChallengeID)
}

func TestChallengeUnknownIdentity(t *testing.T) {
	store := memory.NewStore()
	svc := NewChallengeService(store, store, 0, newFakeClock())

	k, err := custody.NewMemoryKeyring(1)
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), k.AID(), "login", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestChallengeMalformedAID(t *testing.T) {
	store := memory.NewStore()
	svc := NewChallengeService(store, store, 0, newFakeClock())

	_, err := svc.Issue(context.Background(), "not-an-aid", "login", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestChallengeExpired(t *testing.T) {
	store := memory.NewStore()
	clock := newFakeClock()
	svc := NewChallengeService(store, store, time.Minute, clock)
	k := registerIdentity(t, store, 1, 1, 0)

	ch, err := svc.Issue(context.Background(), k.AID(), "login", nil)
	require.NoError(t, err)
	proof := proveChallenge(t, k, ch, 0)

	clock.Advance(2 * time.Minute)
	_, err = svc.Verify(context.Background(), proof, "login", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeExpired, apperrors.CodeOf(err))
}

func TestChallengePurposeMismatch(t *testing.T) {
	store := memory.NewStore()
	svc := NewChallengeService(store, store, 0, newFakeClock())
	k := registerIdentity(t, store, 1, 1, 0)

	ch, err := svc.Issue(context.Background(), k.AID(), "login", nil)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), proveChallenge(t, k, ch, 0), "message/send", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSignatureInvalid, apperrors.CodeOf(err))
}

func TestChallengeArgsMismatch(t *testing.T) {
	store := memory.NewStore()
	svc := NewChallengeService(store, store, 0, newFakeClock())
	k := registerIdentity(t, store, 1, 1, 0)

	ch, err := svc.Issue(context.Background(), k.AID(), "message/send", map[string]any{"group_id": "g1"})
	require.NoError(t, err)

	// Same purpose, different arguments: the signature must not transfer.
	_, err = svc.Verify(context.Background(), proveChallenge(t, k, ch, 0), "message/send", map[string]any{"group_id": "g2"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSignatureInvalid, apperrors.CodeOf(err))
}

func TestChallengeStaleKeyState(t *testing.T) {
	store := memory.NewStore()
	svc := NewChallengeService(store, store, 0, newFakeClock())
	k := registerIdentity(t, store, 1, 1, 2)

	ch, err := svc.Issue(context.Background(), k.AID(), "login", nil)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), proveChallenge(t, k, ch, 1), "login", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSignatureInvalid, apperrors.CodeOf(err))
}

func TestChallengeSingleUse(t *testing.T) {
	store := memory.NewStore()
	svc := NewChallengeService(store, store, 0, newFakeClock())
	k := registerIdentity(t, store, 1, 1, 0)

	ch, err := svc.Issue(context.Background(), k.AID(), "login", nil)
	require.NoError(t, err)
	proof := proveChallenge(t, k, ch, 0)

	_, err = svc.Verify(context.Background(), proof, "login", nil)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), proof, "login", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAlreadyUsed, apperrors.CodeOf(err))
}

func TestChallengeConcurrentVerifySingleWinner(t *testing.T) {
	store := memory.NewStore()
	svc := NewChallengeService(store, store, 0, newFakeClock())
	k := registerIdentity(t, store, 1, 1, 0)

	ch, err := svc.Issue(context.Background(), k.AID(), "login", nil)
	require.NoError(t, err)
	proof := proveChallenge(t, k, ch, 0)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Verify(context.Background(), proof, "login", nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, apperrors.CodeAlreadyUsed, apperrors.CodeOf(err))
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent verification may consume the challenge")
}
