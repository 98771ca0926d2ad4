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

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
	redisStore "github.com/sealchat/sealcore/backend/storage/redis"
)

var _ storage.Store = (*Store)(nil)

// Store is the durable storage implementation: postgres for key states,
// challenges, RBAC, ACLs and messages; redis for the ephemeral TTL-keyed
// state (replay nonces and session tokens).
type Store struct {
	db       *sql.DB
	redis    *redis.Client
	nonces   *redisStore.NonceStore
	sessions *redisStore.SessionStore
}

func NewStore(db *sql.DB, rdb *redis.Client) *Store {
	return &Store{
		db:       db,
		redis:    rdb,
		nonces:   redisStore.NewNonceStore(rdb),
		sessions: redisStore.NewSessionStore(rdb),
	}
}

// Replay nonces live in redis where SET NX gives the atomic
// first-writer-wins record.

func (s *Store) NonceSeen(ctx context.Context, keyID, nonce string) (bool, error) {
	return s.nonces.NonceSeen(ctx, keyID, nonce)
}

func (s *Store) RecordNonce(ctx context.Context, keyID, nonce string, expiresAt time.Time) (bool, error) {
	return s.nonces.RecordNonce(ctx, keyID, nonce, expiresAt)
}

func (s *Store) PurgeExpiredNonces(ctx context.Context, now time.Time) (int64, error) {
	return s.nonces.PurgeExpiredNonces(ctx, now)
}

// Session tokens are redis-backed as well: redis TTLs match the token
// lifetime so expiry needs no sweeper.

func (s *Store) SaveSession(ctx context.Context, token models.SessionToken) error {
	return s.sessions.SaveSession(ctx, token)
}

func (s *Store) GetSession(ctx context.Context, token string) (*models.SessionToken, error) {
	return s.sessions.GetSession(ctx, token)
}

func (s *Store) TouchSession(ctx context.Context, token string) error {
	return s.sessions.TouchSession(ctx, token)
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}

func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.sessions.PurgeExpiredSessions(ctx, now)
}
