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

// Challenge is a single-use, short-lived authentication challenge bound to
// one identity, one purpose and one argument hash. Used transitions
// false -> true exactly once, atomically with verification.
type Challenge struct {
	ChallengeID string    `json:"challenge_id" db:"challenge_id"`
	AID         string    `json:"aid" db:"aid"`
	Purpose     string    `json:"purpose" db:"purpose"`
	ArgsHash    Hash      `json:"args_hash" db:"args_hash"`
	Nonce       []byte    `json:"nonce" db:"nonce"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	Used        bool      `json:"used" db:"used"`
}

// AuthProof is the client's answer to a challenge: the challenge id plus
// threshold signatures over the challenge payload, made with the key state
// the client claims via KSN.
type AuthProof struct {
	ChallengeID string             `json:"challenge_id"`
	AID         string             `json:"aid"`
	KSN         int                `json:"ksn"`
	Signatures  []IndexedSignature `json:"signatures"`
}

// SignedRequest is a self-contained single-round-trip authentication
// envelope. SignedFields lists exactly which entries of Fields are covered
// by the signature, so optional fields can be absent without ambiguity.
type SignedRequest struct {
	AID          string             `json:"aid"`
	KSN          int                `json:"ksn"`
	KeyID        string             `json:"key_id"`
	Timestamp    int64              `json:"timestamp"`
	Nonce        string             `json:"nonce"`
	SignedFields []string           `json:"signed_fields"`
	Fields       map[string]any     `json:"fields"`
	Signatures   []IndexedSignature `json:"signatures"`
}

// SignedRequestNonce records a consumed signed-request nonce for the replay
// window. (key_id, nonce) is unique; rows may be garbage-collected after
// ExpiresAt.
type SignedRequestNonce struct {
	KeyID     string    `json:"key_id" db:"key_id"`
	Nonce     string    `json:"nonce" db:"nonce"`
	UsedAt    time.Time `json:"used_at" db:"used_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}
