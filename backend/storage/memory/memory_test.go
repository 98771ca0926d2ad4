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

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealchat/sealcore/backend/models"
)

func TestConsumeChallengeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.SaveChallenge(ctx, models.Challenge{
		ChallengeID: "ch1",
		ExpiresAt:   time.Now().Add(time.Minute),
	}))

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumed, err := store.ConsumeChallenge(ctx, "ch1")
			assert.NoError(t, err)
			results <- consumed
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for consumed := range results {
		if consumed {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestConsumeChallengeUnknown(t *testing.T) {
	store := NewStore()
	consumed, err := store.ConsumeChallenge(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestRecordNonceFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	expires := time.Now().Add(time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := store.RecordNonce(ctx, "key1", "nonce1", expires)
			assert.NoError(t, err)
			results <- fresh
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for fresh := range results {
		if fresh {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	seen, err := store.NonceSeen(ctx, "key1", "nonce1")
	require.NoError(t, err)
	assert.True(t, seen)

	// A different key id is a separate replay scope.
	seen, err = store.NonceSeen(ctx, "key2", "nonce1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now()

	require.NoError(t, store.SaveChallenge(ctx, models.Challenge{ChallengeID: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.SaveChallenge(ctx, models.Challenge{ChallengeID: "live", ExpiresAt: now.Add(time.Minute)}))
	_, err := store.RecordNonce(ctx, "k", "old", now.Add(-time.Minute))
	require.NoError(t, err)

	purged, err := store.PurgeExpiredChallenges(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	_, err = store.GetChallenge(ctx, "live")
	assert.NoError(t, err)

	purged, err = store.PurgeExpiredNonces(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestMessageRecipientIndexing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	record := models.MessageRecord{
		MessageID: "m1",
		GroupID:   "g1",
		SenderAID: "Esender",
		Envelope: models.GroupMessageEnvelope{
			EncryptedKeys: map[string]models.WrappedKey{
				"Ealice": {},
				"Ebob":   {},
			},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveMessage(ctx, record))

	forAlice, err := store.GetMessagesForRecipient(ctx, "Ealice", 10)
	require.NoError(t, err)
	assert.Len(t, forAlice, 1)

	forCarol, err := store.GetMessagesForRecipient(ctx, "Ecarol", 10)
	require.NoError(t, err)
	assert.Empty(t, forCarol)

	forGroup, err := store.GetMessagesForGroup(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Len(t, forGroup, 1)
}

func TestMessagesNewestFirstAndLimited(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Now()

	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, store.SaveMessage(ctx, models.MessageRecord{
			MessageID: id,
			GroupID:   "g1",
			SenderAID: "Esender",
			Envelope: models.GroupMessageEnvelope{
				EncryptedKeys: map[string]models.WrappedKey{"Ealice": {}},
			},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	records, err := store.GetMessagesForGroup(ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "m3", records[0].MessageID)
	assert.Equal(t, "m2", records[1].MessageID)
}
