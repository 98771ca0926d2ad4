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

// Package auth implements the two identity-bound authentication protocols:
// challenge-response (two round trips, no clock requirement) and signed
// requests (one round trip, replay cache plus clock-skew window), and the
// session tokens minted after a successful login challenge.
package auth

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/google/uuid"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/crypto"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

// DefaultChallengeTTL is how long an issued challenge stays valid.
const DefaultChallengeTTL = 60 * time.Second

const challengeNonceBytes = 32

// ChallengeService issues single-use challenges and verifies the signed
// answers. A challenge binds (aid, purpose, canonical args hash): a valid
// signature for operation A can never authorize operation B.
type ChallengeService struct {
	challenges storage.ChallengeStore
	keys       storage.KeyStateStore
	ttl        time.Duration
	clock      Clock
}

func NewChallengeService(challenges storage.ChallengeStore, keys storage.KeyStateStore, ttl time.Duration, clock Clock) *ChallengeService {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &ChallengeService{
		challenges: challenges,
		keys:       keys,
		ttl:        ttl,
		clock:      clock,
	}
}

// Issue creates a fresh challenge for aid to prove it may perform purpose
// with exactly these args. The returned challenge's payload (see
// SigningPayload) is what the client must sign.
func (s *ChallengeService) Issue(ctx context.Context, aid, purpose string, args any) (*models.Challenge, error) {
	if !models.ValidAID(aid) {
		return nil, apperrors.InvalidArg("malformed aid")
	}
	if _, err := s.keys.GetKeyState(ctx, aid); err != nil {
		return nil, err
	}

	argsHash, err := crypto.CanonicalHash(args)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "hash challenge args", err)
	}

	nonce := make([]byte, challengeNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "generate challenge nonce", err)
	}

	now := s.clock.Now()
	ch := models.Challenge{
		ChallengeID: uuid.New().String(),
		AID:         aid,
		Purpose:     purpose,
		ArgsHash:    argsHash,
		Nonce:       nonce,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
		Used:        false,
	}
	if err := s.challenges.SaveChallenge(ctx, ch); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "save challenge", err)
	}
	return &ch, nil
}

// SigningPayload returns the canonical bytes the client signs for a
// challenge.
func SigningPayload(ch *models.Challenge) ([]byte, error) {
	return crypto.CanonicalBytes(map[string]any{
		"challenge_id": ch.ChallengeID,
		"aid":          ch.AID,
		"purpose":      ch.Purpose,
		"args_hash":    ch.ArgsHash.String(),
		"nonce":        ch.Nonce,
		"exp":          ch.ExpiresAt.Unix(),
	})
}

// Verify checks a proof against the stored challenge and, on signature
// success, consumes the challenge atomically. Two concurrent calls with
// the same valid proof yield exactly one success; the loser gets
// AlreadyUsed.
func (s *ChallengeService) Verify(ctx context.Context, proof models.AuthProof, purpose string, args any) (*models.VerifiedIdentity, error) {
	ch, err := s.challenges.GetChallenge(ctx, proof.ChallengeID)
	if err != nil {
		return nil, err
	}
	if ch.Used {
		return nil, apperrors.AlreadyUsed("challenge already consumed")
	}
	if s.clock.Now().After(ch.ExpiresAt) {
		return nil, apperrors.Expired("challenge expired")
	}

	// The proof must target the exact (aid, purpose, args) the challenge
	// was issued for.
	if proof.AID != ch.AID {
		return nil, apperrors.SignatureInvalid("proof aid does not match challenge")
	}
	if purpose != ch.Purpose {
		return nil, apperrors.SignatureInvalid("proof purpose does not match challenge")
	}
	argsHash, err := crypto.CanonicalHash(args)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "hash challenge args", err)
	}
	if !argsHash.Equal(ch.ArgsHash) {
		return nil, apperrors.SignatureInvalid("args do not match those bound at issuance")
	}

	keyState, err := s.keys.GetKeyState(ctx, ch.AID)
	if err != nil {
		return nil, err
	}
	payload, err := SigningPayload(ch)
	if err != nil {
		return nil, err
	}
	if err := crypto.VerifyIndexedSignatures(payload, proof.Signatures, keyState, proof.KSN); err != nil {
		return nil, err
	}

	// Consume only after signature success; the store CAS closes the
	// double-spend race.
	consumed, err := s.challenges.ConsumeChallenge(ctx, ch.ChallengeID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "consume challenge", err)
	}
	if !consumed {
		return nil, apperrors.AlreadyUsed("challenge already consumed")
	}

	return &models.VerifiedIdentity{
		AID:          ch.AID,
		KSN:          keyState.Sequence,
		LastEventRef: keyState.LastEventRef,
		ChallengeID:  ch.ChallengeID,
	}, nil
}
