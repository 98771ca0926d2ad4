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

package models

import (
	"time"
)

// WrappedKey is the per-recipient grant inside a group envelope: the
// message content key sealed to one recipient, with its own AEAD nonce.
type WrappedKey struct {
	WrappedKey []byte `json:"wrapped_key"`
	WrapNonce  []byte `json:"wrap_nonce"`
}

// GroupMessageEnvelope is the client-side output of the group encryption
// engine. The content is encrypted exactly once; EncryptedKeys grants
// access individually to each recipient, keyed by AID. The server only
// ever sees this ciphertext form.
type GroupMessageEnvelope struct {
	EncryptedContent []byte                `json:"encrypted_content"`
	ContentNonce     []byte                `json:"content_nonce"`
	EncryptedKeys    map[string]WrappedKey `json:"encrypted_keys"`
	SenderAID        string                `json:"sender_aid"`
	GroupID          string                `json:"group_id"`
	AAD              []byte                `json:"aad,omitempty"`
}

// MessageRecord is the stored, already-verified form of a group send:
// the envelope plus the audit anchors (ciphertext and envelope hashes)
// bound into the sender's authenticated payload, the signatures, and the
// key-state sequence they verified against.
type MessageRecord struct {
	MessageID      string               `json:"message_id" db:"message_id"`
	GroupID        string               `json:"group_id" db:"group_id"`
	SenderAID      string               `json:"sender_aid" db:"sender_aid"`
	Envelope       GroupMessageEnvelope `json:"envelope" db:"envelope"`
	CiphertextHash Hash                 `json:"ciphertext_hash" db:"ciphertext_hash"`
	EnvelopeHash   Hash                 `json:"envelope_hash" db:"envelope_hash"`
	Signatures     []IndexedSignature   `json:"signatures" db:"signatures"`
	KSN            int                  `json:"ksn" db:"ksn"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	ExpiresAt      time.Time            `json:"expires_at" db:"expires_at"`
}
