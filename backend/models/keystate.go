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

// KeyState is the current signing-key material for an identity. It is
// written only by the external key-rotation process; sealcore reads it to
// verify signatures. Sequence increments on every rotation, and any proof
// that claims a different sequence must fail closed.
type KeyState struct {
	AID          string    `json:"aid" db:"aid"`
	Sequence     int       `json:"sequence" db:"sequence"`
	PublicKeys   [][]byte  `json:"public_keys" db:"public_keys"`
	Threshold    int       `json:"threshold" db:"threshold"`
	LastEventRef string    `json:"last_event_ref" db:"last_event_ref"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IndexedSignature is a signature made by the key at KeyIndex in the
// signer's current KeyState.
type IndexedSignature struct {
	KeyIndex  int    `json:"key_index"`
	Signature []byte `json:"signature"`
}

// VerifiedIdentity is the result of a successful authentication. It carries
// the key-state sequence the proof verified against so downstream records
// can pin it.
type VerifiedIdentity struct {
	AID          string `json:"aid"`
	KSN          int    `json:"ksn"`
	LastEventRef string `json:"last_event_ref"`
	ChallengeID  string `json:"challenge_id,omitempty"`
}
