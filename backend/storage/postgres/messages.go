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

func (s *Store) SaveMessage(ctx context.Context, record models.MessageRecord) error {
	envelopeJSON, err := json.Marshal(record.Envelope)
	if err != nil {
		return err
	}
	signaturesJSON, err := json.Marshal(record.Signatures)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var expiresAt any
	if !record.ExpiresAt.IsZero() {
		expiresAt = record.ExpiresAt
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages
		(message_id, group_id, sender_aid, envelope, ciphertext_hash, envelope_hash, signatures, ksn, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.MessageID, record.GroupID, record.SenderAID, envelopeJSON,
		record.CiphertextHash.String(), record.EnvelopeHash.String(),
		signaturesJSON, record.KSN, record.CreatedAt, expiresAt)
	if err != nil {
		return err
	}

	for aid := range record.Envelope.EncryptedKeys {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_recipients (message_id, aid)
			VALUES ($1, $2)
			ON CONFLICT (message_id, aid) DO NOTHING`,
			record.MessageID, aid)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetMessage(ctx context.Context, messageID string) (*models.MessageRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT message_id, group_id, sender_aid, envelope, ciphertext_hash, envelope_hash, signatures, ksn, created_at, expires_at
		FROM messages WHERE message_id = $1`, messageID)
	record, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("message not found")
	}
	return record, err
}

func (s *Store) GetMessagesForGroup(ctx context.Context, groupID string, limit int) ([]models.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, group_id, sender_aid, envelope, ciphertext_hash, envelope_hash, signatures, ksn, created_at, expires_at
		FROM messages
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *Store) GetMessagesForRecipient(ctx context.Context, aid string, limit int) ([]models.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.message_id, m.group_id, m.sender_aid, m.envelope, m.ciphertext_hash, m.envelope_hash, m.signatures, m.ksn, m.created_at, m.expires_at
		FROM messages m
		JOIN message_recipients r ON r.message_id = m.message_id
		WHERE r.aid = $1
		ORDER BY m.created_at DESC
		LIMIT $2`, aid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *Store) PurgeExpiredMessages(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.MessageRecord, error) {
	var record models.MessageRecord
	var envelopeJSON, signaturesJSON []byte
	var ciphertextHash, envelopeHash string
	var expiresAt sql.NullTime
	err := row.Scan(&record.MessageID, &record.GroupID, &record.SenderAID,
		&envelopeJSON, &ciphertextHash, &envelopeHash, &signaturesJSON,
		&record.KSN, &record.CreatedAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(envelopeJSON, &record.Envelope); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(signaturesJSON, &record.Signatures); err != nil {
		return nil, err
	}
	if record.CiphertextHash, err = models.HashFromHex(ciphertextHash); err != nil {
		return nil, err
	}
	if record.EnvelopeHash, err = models.HashFromHex(envelopeHash); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		record.ExpiresAt = expiresAt.Time
	}
	return &record, nil
}

func collectMessages(rows *sql.Rows) ([]models.MessageRecord, error) {
	var records []models.MessageRecord
	for rows.Next() {
		record, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}
