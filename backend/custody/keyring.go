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

// Package custody isolates private key material behind a narrow capability
// interface. The trust layer verifies signatures and drives key agreement,
// but signing and key storage happen only here. Backends are selected at
// construction time, never by runtime type inspection.
package custody

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/sealchat/sealcore/backend/crypto"
	"github.com/sealchat/sealcore/backend/models"
)

// Keyring is one identity's key custody: it can sign payloads with its
// threshold key set, expose the public halves, and supply the derived
// agreement scalar to the group encryption engine.
type Keyring interface {
	// AID returns the identifier derived from the keyring's first
	// (inception) public key.
	AID() string

	// Sign signs payload with every held key and returns the indexed
	// signatures in key order.
	Sign(payload []byte) ([]models.IndexedSignature, error)

	// PublicKeys returns the current public keys in index order.
	PublicKeys() []ed25519.PublicKey

	// AgreementPrivate returns the X25519 scalar derived from the first
	// signing key, for the group encryption engine.
	AgreementPrivate() ([32]byte, error)

	// Export returns the key seeds serialized for backup or migration to
	// another backend. Callers must treat the result as secret material.
	Export() ([]byte, error)
}

// MemoryKeyring holds signing keys in process memory. It backs tests and
// deployments where an OS credential store holds the seeds externally.
type MemoryKeyring struct {
	keys []ed25519.PrivateKey
	aid  string
}

// NewMemoryKeyring generates n fresh Ed25519 keypairs. The AID is derived
// from the first public key.
func NewMemoryKeyring(n int) (*MemoryKeyring, error) {
	if n < 1 {
		n = 1
	}
	keys := make([]ed25519.PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		keys = append(keys, priv)
	}
	return FromPrivateKeys(keys)
}

// FromPrivateKeys builds a keyring from existing private keys.
func FromPrivateKeys(keys []ed25519.PrivateKey) (*MemoryKeyring, error) {
	first := keys[0].Public().(ed25519.PublicKey)
	return &MemoryKeyring{
		keys: keys,
		aid:  models.DeriveAID(first),
	}, nil
}

func (k *MemoryKeyring) AID() string { return k.aid }

func (k *MemoryKeyring) Sign(payload []byte) ([]models.IndexedSignature, error) {
	sigs := make([]models.IndexedSignature, 0, len(k.keys))
	for i, priv := range k.keys {
		sigs = append(sigs, models.IndexedSignature{
			KeyIndex:  i,
			Signature: ed25519.Sign(priv, payload),
		})
	}
	return sigs, nil
}

func (k *MemoryKeyring) PublicKeys() []ed25519.PublicKey {
	pubs := make([]ed25519.PublicKey, 0, len(k.keys))
	for _, priv := range k.keys {
		pubs = append(pubs, priv.Public().(ed25519.PublicKey))
	}
	return pubs
}

func (k *MemoryKeyring) AgreementPrivate() ([32]byte, error) {
	return crypto.AgreementPrivateFromSigningKey(k.keys[0])
}

// PublicKeyBytes returns the public keys as raw byte slices, the form the
// key-state registry stores.
func (k *MemoryKeyring) PublicKeyBytes() [][]byte {
	pubs := k.PublicKeys()
	out := make([][]byte, 0, len(pubs))
	for _, pub := range pubs {
		out = append(out, []byte(pub))
	}
	return out
}
