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
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

// DefaultSessionTTL is the lifetime of a minted session token.
const DefaultSessionTTL = 15 * time.Minute

const sessionTokenBytes = 32

// SessionService mints bearer tokens after a successful login challenge
// and validates them on each request. A token is pinned to the key-state
// sequence at issue time: rotating keys invalidates every outstanding
// token for that identity.
type SessionService struct {
	sessions storage.SessionStore
	keys     storage.KeyStateStore
	ttl      time.Duration
	clock    Clock
}

func NewSessionService(sessions storage.SessionStore, keys storage.KeyStateStore, ttl time.Duration, clock Clock) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &SessionService{
		sessions: sessions,
		keys:     keys,
		ttl:      ttl,
		clock:    clock,
	}
}

// Mint issues a session token for an identity that just passed a login
// challenge.
func (s *SessionService) Mint(ctx context.Context, ident *models.VerifiedIdentity, scopes []string) (*models.SessionToken, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "generate session token", err)
	}

	now := s.clock.Now()
	token := models.SessionToken{
		Token:      base64.RawURLEncoding.EncodeToString(raw),
		AID:        ident.AID,
		KSNAtIssue: ident.KSN,
		Scopes:     scopes,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.sessions.SaveSession(ctx, token); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "save session", err)
	}
	return &token, nil
}

// Validate resolves a bearer token to its identity. It fails with Expired
// past the token lifetime and with SignatureInvalid once the identity's
// key state has rotated beyond the sequence the token was issued under.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.SessionToken, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.clock.Now().After(session.ExpiresAt) {
		return nil, apperrors.Expired("session token expired")
	}

	keyState, err := s.keys.GetKeyState(ctx, session.AID)
	if err != nil {
		return nil, err
	}
	if keyState.Sequence != session.KSNAtIssue {
		return nil, apperrors.SignatureInvalid("key state rotated since token issue")
	}

	if err := s.sessions.TouchSession(ctx, token); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "touch session", err)
	}
	return session, nil
}

// Revoke deletes a session token.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}
