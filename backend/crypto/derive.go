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
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// The key-agreement keypair is derived deterministically from the
// long-term Ed25519 signing keypair, never generated per message. This is
// a deliberate wire-format commitment: both sides recompute the same
// X25519 keys from the signing keys they already know, at the cost of
// forward secrecy if a long-term private key is ever compromised.

// AgreementPrivateFromSigningKey converts an Ed25519 private key to the
// corresponding X25519 private scalar: SHA-512 of the seed, clamped per
// RFC 7748.
func AgreementPrivateFromSigningKey(priv ed25519.PrivateKey) ([32]byte, error) {
	var out [32]byte
	if len(priv) != ed25519.PrivateKeySize {
		return out, fmt.Errorf("invalid ed25519 private key length %d", len(priv))
	}
	digest := sha512.Sum512(priv.Seed())
	copy(out[:], digest[:32])
	clamp(&out)
	return out, nil
}

// AgreementPublicFromSigningKey converts an Ed25519 public key to its
// X25519 counterpart by mapping the Edwards point to Montgomery form.
func AgreementPublicFromSigningKey(pub ed25519.PublicKey) ([32]byte, error) {
	var out [32]byte
	if len(pub) != ed25519.PublicKeySize {
		return out, fmt.Errorf("invalid ed25519 public key length %d", len(pub))
	}
	point, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return out, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	copy(out[:], point.BytesMontgomery())
	return out, nil
}

// SharedSecret computes X25519 Diffie-Hellman between a derived private
// scalar and a derived public key.
func SharedSecret(priv, pub [32]byte) ([32]byte, error) {
	var out [32]byte
	secret, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	return out, nil
}

func clamp(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
