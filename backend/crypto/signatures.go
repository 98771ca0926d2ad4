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
	"crypto/ed25519"
	"fmt"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
)

// VerifyIndexedSignatures checks threshold signatures over payload against
// the keys in ks. It fails closed when the claimed key-state sequence does
// not match the registry's, when any signature references an unknown key
// index or does not verify, or when fewer than Threshold distinct keys
// signed. Pure: no side effects, safe to call concurrently.
func VerifyIndexedSignatures(payload []byte, sigs []models.IndexedSignature, ks *models.KeyState, claimedKSN int) error {
	if ks == nil {
		return apperrors.NotFound("no key state for signer")
	}
	if claimedKSN != ks.Sequence {
		return apperrors.SignatureInvalid(fmt.Sprintf(
			"stale key state: claimed ksn %d, current %d", claimedKSN, ks.Sequence))
	}
	if len(sigs) < ks.Threshold {
		return apperrors.SignatureInvalid(fmt.Sprintf(
			"signature count %d below threshold %d", len(sigs), ks.Threshold))
	}

	verified := make(map[int]bool, len(sigs))
	for _, sig := range sigs {
		if sig.KeyIndex < 0 || sig.KeyIndex >= len(ks.PublicKeys) {
			return apperrors.SignatureInvalid(fmt.Sprintf(
				"signature references unknown key index %d", sig.KeyIndex))
		}
		key := ks.PublicKeys[sig.KeyIndex]
		if len(key) != ed25519.PublicKeySize {
			return apperrors.SignatureInvalid(fmt.Sprintf(
				"malformed public key at index %d", sig.KeyIndex))
		}
		if !ed25519.Verify(ed25519.PublicKey(key), payload, sig.Signature) {
			return apperrors.SignatureInvalid(fmt.Sprintf(
				"signature at key index %d does not verify", sig.KeyIndex))
		}
		verified[sig.KeyIndex] = true
	}

	if len(verified) < ks.Threshold {
		return apperrors.SignatureInvalid(fmt.Sprintf(
			"distinct signing keys %d below threshold %d", len(verified), ks.Threshold))
	}
	return nil
}
