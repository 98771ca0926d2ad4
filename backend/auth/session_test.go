// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage/memory"
)

func TestSessionMintAndValidate(t *testing.T) {
	store := memory.NewStore()
	clock := newFakeClock()
	svc := NewSessionService(store, store, DefaultSessionTTL, clock)
	k := registerIdentity(t, store, 1, 1, 2)

	token, err := svc.Mint(context.Background(), &models.VerifiedIdentity{AID: k.AID(), KSN: 2}, []string{"chat"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, 2, token.KSNAtIssue)

	session, err := svc.Validate(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, k.AID(), session.AID)
	assert.Equal(t, []string{"chat"}, session.Scopes)
}

func TestSessionExpires(t *testing.T) {
	store := memory.NewStore()
	clock := newFakeClock()
	svc := NewSessionService(store, store, 10*time.Minute, clock)
	k := registerIdentity(t, store, 1, 1, 0)

	token, err := svc.Mint(context.Background(), &models.VerifiedIdentity{AID: k.AID()}, nil)
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	_, err = svc.Validate(context.Background(), token.Token)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeExpired, apperrors.CodeOf(err))
}

func TestSessionInvalidatedByRotation(t *testing.T) {
	store := memory.NewStore()
	clock := newFakeClock()
	svc := NewSessionService(store, store, 0, clock)
	k := registerIdentity(t, store, 1, 1, 1)

	token, err := svc.Mint(context.Background(), &models.VerifiedIdentity{AID: k.AID(), KSN: 1}, nil)
	require.NoError(t, err)

	// The registry observes a rotation; every outstanding token dies.
	require.NoError(t, store.PutKeyState(context.Background(), models.KeyState{
		AID:        k.AID(),
		Sequence:   2,
		PublicKeys: k.PublicKeyBytes(),
		Threshold:  1,
	}))

	_, err = svc.Validate(context.Background(), token.Token)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSignatureInvalid, apperrors.CodeOf(err))
}

func TestSessionRevoke(t *testing.T) {
	store := memory.NewStore()
	svc := NewSessionService(store, store, 0, newFakeClock())
	k := registerIdentity(t, store, 1, 1, 0)

	token, err := svc.Mint(context.Background(), &models.VerifiedIdentity{AID: k.AID()}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), token.Token))

	_, err = svc.Validate(context.Background(), token.Token)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestSessionUnknownToken(t *testing.T) {
	store := memory.NewStore()
	svc := NewSessionService(store, store, 0, newFakeClock())

	_, err := svc.Validate(context.Background(), "no-such-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestSessionUseCountTracked(t *testing.T) {
	store := memory.NewStore()
	svc := NewSessionService(store, store, 0, newFakeClock())
	k := registerIdentity(t, store, 1, 1, 0)

	token, err := svc.Mint(context.Background(), &models.VerifiedIdentity{AID: k.AID()}, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Validate(context.Background(), token.Token)
		require.NoError(t, err)
	}
	stored, err := store.GetSession(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.UseCount)
}
