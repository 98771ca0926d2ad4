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

package crypto

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/sealchat/sealcore/backend/models"
)

// canonicalMode is CBOR core-deterministic encoding: map keys are sorted,
// so two logically equal payloads always encode to the same bytes.
var canonicalMode cbor.EncMode

func init() {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("canonical cbor mode: %v", err))
	}
	canonicalMode = mode
}

// CanonicalBytes returns the deterministic encoding of v. The value is
// first normalized through JSON into untyped maps and slices, erasing any
// distinction between a struct and its equivalent map, then encoded with
// sorted map keys.
func CanonicalBytes(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	encoded, err := canonicalMode.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("canonical encode: %w", err)
	}
	return encoded, nil
}

// CanonicalHash returns the BLAKE3-256 digest of the canonical encoding of
// v. Key order in structured input never changes the result.
func CanonicalHash(v any) (models.Hash, error) {
	encoded, err := CanonicalBytes(v)
	if err != nil {
		return models.Hash{}, err
	}
	return blake3.Sum256(encoded), nil
}

// HashBytes returns the BLAKE3-256 digest of raw bytes, for values that
// are already a fixed serialization (ciphertexts, encoded payloads).
func HashBytes(data []byte) models.Hash {
	return blake3.Sum256(data)
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical normalize: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("canonical normalize: %w", err)
	}
	return out, nil
}
