// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const noncePrefix = "replay:" // replay:{keyId}:{nonce}

// NonceStore is the redis-backed replay cache for signed requests. SET NX
// gives the atomic first-writer-wins recording the protocol requires, and
// redis TTLs expire entries at the end of the replay window without a
// sweeper.
type NonceStore struct {
	rdb *redis.Client
}

func NewNonceStore(rdb *redis.Client) *NonceStore {
	return &NonceStore{rdb: rdb}
}

func nonceCacheKey(keyID, nonce string) string {
	return noncePrefix + keyID + ":" + nonce
}

// NonceSeen reports whether (keyID, nonce) is recorded and unexpired.
func (s *NonceStore) NonceSeen(ctx context.Context, keyID, nonce string) (bool, error) {
	count, err := s.rdb.Exists(ctx, nonceCacheKey(keyID, nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("check nonce: %w", err)
	}
	return count > 0, nil
}

// RecordNonce records (keyID, nonce) until expiresAt. Returns true only
// for the first recording.
func (s *NonceStore) RecordNonce(ctx context.Context, keyID, nonce string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	fresh, err := s.rdb.SetNX(ctx, nonceCacheKey(keyID, nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record nonce: %w", err)
	}
	return fresh, nil
}

// PurgeExpiredNonces is a no-op: redis TTLs already evict expired entries.
func (s *NonceStore) PurgeExpiredNonces(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
