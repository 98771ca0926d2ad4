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
	"encoding/base64"
	"strings"

	"github.com/zeebo/blake3"
)

// AIDPrefix marks an identifier derived from an initial public key.
const AIDPrefix = "E"

// DeriveAID computes the autonomic identifier for an identity from its
// initial public key: a BLAKE3-256 digest of the key, base64url-encoded with
// a type prefix. The derivation is one-way; the AID is immutable even after
// the identity rotates to new keys.
func DeriveAID(initialPublicKey []byte) string {
	sum := blake3.Sum256(initialPublicKey)
	return AIDPrefix + base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidAID reports whether s has the shape of a derived identifier. It does
// not (and cannot) check the underlying key, only the encoding.
func ValidAID(s string) bool {
	if !strings.HasPrefix(s, AIDPrefix) {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(s[len(AIDPrefix):])
	if err != nil {
		return false
	}
	return len(raw) == HashSize
}
