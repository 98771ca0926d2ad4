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
	"encoding/json"
	"time"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
)

func (s *Store) GetKeyState(ctx context.Context, aid string) (*models.KeyState, error) {
	var state models.KeyState
	var keysJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT aid, sequence, public_keys, threshold, last_event_ref, updated_at
		FROM key_states WHERE aid = $1`, aid).Scan(
		&state.AID, &state.Sequence, &keysJSON, &state.Threshold,
		&state.LastEventRef, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("no key state for " + aid)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(keysJSON, &state.PublicKeys); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) PutKeyState(ctx context.Context, state models.KeyState) error {
	keysJSON, err := json.Marshal(state.PublicKeys)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO key_states (aid, sequence, public_keys, threshold, last_event_ref, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (aid) DO UPDATE
		SET sequence = $2, public_keys = $3, threshold = $4, last_event_ref = $5, updated_at = $6`,
		state.AID, state.Sequence, keysJSON, state.Threshold,
		state.LastEventRef, time.Now())
	return err
}

func (s *Store) SaveChallenge(ctx context.Context, ch models.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenges (challenge_id, aid, purpose, args_hash, nonce, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ch.ChallengeID, ch.AID, ch.Purpose, ch.ArgsHash.String(),
		ch.Nonce, ch.CreatedAt, ch.ExpiresAt, ch.Used)
	return err
}

func (s *Store) GetChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	var ch models.Challenge
	var argsHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT challenge_id, aid, purpose, args_hash, nonce, created_at, expires_at, used
		FROM challenges WHERE challenge_id = $1`, challengeID).Scan(
		&ch.ChallengeID, &ch.AID, &ch.Purpose, &argsHash,
		&ch.Nonce, &ch.CreatedAt, &ch.ExpiresAt, &ch.Used)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("challenge not found")
	}
	if err != nil {
		return nil, err
	}
	ch.ArgsHash, err = models.HashFromHex(argsHash)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ConsumeChallenge is a single compare-and-swap on the used flag. The
// WHERE clause makes the transition exclusive: under concurrent attempts
// exactly one caller sees RowsAffected 1.
func (s *Store) ConsumeChallenge(ctx context.Context, challengeID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE challenges SET used = TRUE
		WHERE challenge_id = $1 AND used = FALSE`, challengeID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *Store) PurgeExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM challenges WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
