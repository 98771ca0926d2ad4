// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
)

const sessionPrefix = "session:" // session:{token}

// SessionStore keeps minted session tokens in redis with a TTL matching
// the token expiry, so revocation is a DEL and expiry needs no sweeper.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionCacheKey(token string) string {
	return sessionPrefix + token
}

func (s *SessionStore) SaveSession(ctx context.Context, session models.SessionToken) error {
	data, err := json.Marshal(&session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.rdb.Set(ctx, sessionCacheKey(session.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (*models.SessionToken, error) {
	data, err := s.rdb.Get(ctx, sessionCacheKey(token)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NotFound("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session models.SessionToken
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// TouchSession increments the session use counter, keeping the remaining
// TTL so a busy session still expires at its original deadline.
func (s *SessionStore) TouchSession(ctx context.Context, token string) error {
	key := sessionCacheKey(token)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return apperrors.NotFound("session not found")
	}
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	var session models.SessionToken
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}
	session.UseCount++
	updated, err := json.Marshal(&session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, key, updated, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionCacheKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions is a no-op: redis TTLs already evict expired entries.
func (s *SessionStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
