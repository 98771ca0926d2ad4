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
	"time"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/crypto"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

const (
	// DefaultSkewTolerance is the accepted clock drift between client
	// and server for signed requests.
	DefaultSkewTolerance = 2 * time.Minute

	// DefaultReplayWindow is how long a seen nonce stays rejected. It
	// must cover the skew tolerance on both sides.
	DefaultReplayWindow = 10 * time.Minute
)

// SignedRequestService verifies self-contained signed requests, trading
// the challenge round trip for a replay cache and a clock-synchronization
// requirement.
type SignedRequestService struct {
	nonces    storage.NonceStore
	keys      storage.KeyStateStore
	tolerance time.Duration
	window    time.Duration
	clock     Clock
}

func NewSignedRequestService(nonces storage.NonceStore, keys storage.KeyStateStore, tolerance, window time.Duration, clock Clock) *SignedRequestService {
	if tolerance <= 0 {
		tolerance = DefaultSkewTolerance
	}
	if window <= 0 {
		window = DefaultReplayWindow
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &SignedRequestService{
		nonces:    nonces,
		keys:      keys,
		tolerance: tolerance,
		window:    window,
		clock:     clock,
	}
}

// Verify authenticates a signed request. Order matters: the nonce is
// recorded only after the signature verifies, so an attacker cannot burn
// a victim's nonce with a garbage signature.
func (s *SignedRequestService) Verify(ctx context.Context, req *models.SignedRequest) (*models.VerifiedIdentity, error) {
	if req.Nonce == "" {
		return nil, apperrors.InvalidArg("signed request missing nonce")
	}
	if req.KeyID == "" {
		return nil, apperrors.InvalidArg("signed request missing key_id")
	}

	now := s.clock.Now()
	requestTime := time.Unix(req.Timestamp, 0)
	drift := now.Sub(requestTime)
	if drift < 0 {
		drift = -drift
	}
	if drift > s.tolerance {
		return nil, apperrors.Expired("signed request timestamp outside tolerance")
	}

	seen, err := s.nonces.NonceSeen(ctx, req.KeyID, req.Nonce)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "check replay cache", err)
	}
	if seen {
		return nil, apperrors.AlreadyUsed("signed request nonce already seen")
	}

	payload, err := SignedRequestPayload(req)
	if err != nil {
		return nil, err
	}
	keyState, err := s.keys.GetKeyState(ctx, req.AID)
	if err != nil {
		return nil, err
	}
	if err := crypto.VerifyIndexedSignatures(payload, req.Signatures, keyState, req.KSN); err != nil {
		return nil, err
	}

	fresh, err := s.nonces.RecordNonce(ctx, req.KeyID, req.Nonce, now.Add(s.window))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "record nonce", err)
	}
	if !fresh {
		// Lost the race to a concurrent identical request.
		return nil, apperrors.AlreadyUsed("signed request nonce already seen")
	}

	return &models.VerifiedIdentity{
		AID:          req.AID,
		KSN:          keyState.Sequence,
		LastEventRef: keyState.LastEventRef,
	}, nil
}

// SignedRequestPayload recomputes the canonical payload covered by the
// request's signatures: the envelope fields plus exactly the entries of
// Fields named in SignedFields. Fields outside that list are not covered,
// which lets optional fields be absent without changing the payload.
func SignedRequestPayload(req *models.SignedRequest) ([]byte, error) {
	covered := make(map[string]any, len(req.SignedFields))
	for _, name := range req.SignedFields {
		value, ok := req.Fields[name]
		if !ok {
			return nil, apperrors.InvalidArg("signed field " + name + " missing from request")
		}
		covered[name] = value
	}
	return crypto.CanonicalBytes(map[string]any{
		"aid":           req.AID,
		"ksn":           req.KSN,
		"key_id":        req.KeyID,
		"timestamp":     req.Timestamp,
		"nonce":         req.Nonce,
		"signed_fields": req.SignedFields,
		"fields":        covered,
	})
}
