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

package custody

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sealchat/sealcore/backend/apperrors"
)

const (
	kekBytes  = chacha20poly1305.KeySize
	saltBytes = 16
)

// exportedSeeds is the serialized secret form shared by Export and the
// file backend: the Ed25519 seeds in key-index order.
type exportedSeeds struct {
	Version int      `json:"version"`
	Seeds   [][]byte `json:"seeds"`
}

// sealedFile is the on-disk layout of a passphrase-protected keyring.
type sealedFile struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Export serializes the keyring seeds. The caller owns keeping the result
// secret; FileKeyring uses it as the plaintext it seals to disk.
func (k *MemoryKeyring) Export() ([]byte, error) {
	seeds := make([][]byte, 0, len(k.keys))
	for _, priv := range k.keys {
		seeds = append(seeds, priv.Seed())
	}
	return json.Marshal(exportedSeeds{Version: 1, Seeds: seeds})
}

// FileKeyring is a passphrase-encrypted file backend: the seeds are sealed
// with XChaCha20-Poly1305 under an Argon2id key-encryption key and held in
// memory only while the keyring is open.
type FileKeyring struct {
	*MemoryKeyring
	path string
}

// CreateFileKeyring generates n fresh keys and writes them sealed under
// the passphrase. Fails if the file already exists.
func CreateFileKeyring(path, passphrase string, n int) (*FileKeyring, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("keyring file %s already exists", path)
	}
	mem, err := NewMemoryKeyring(n)
	if err != nil {
		return nil, err
	}
	fk := &FileKeyring{MemoryKeyring: mem, path: path}
	if err := fk.save(passphrase); err != nil {
		return nil, err
	}
	return fk, nil
}

// OpenFileKeyring unseals an existing keyring file with the passphrase.
// A wrong passphrase surfaces as SignatureInvalid, not a raw AEAD error.
func OpenFileKeyring(path, passphrase string) (*FileKeyring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NotFound("keyring file not found")
		}
		return nil, err
	}

	var sealed sealedFile
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return nil, fmt.Errorf("parse keyring file: %w", err)
	}
	if len(sealed.Salt) != saltBytes {
		return nil, fmt.Errorf("keyring file has invalid salt")
	}

	kek := deriveKEK(passphrase, sealed.Salt)
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return nil, apperrors.SignatureInvalid("keyring passphrase incorrect")
	}

	var exported exportedSeeds
	if err := json.Unmarshal(plaintext, &exported); err != nil {
		return nil, fmt.Errorf("parse keyring seeds: %w", err)
	}
	keys := make([]ed25519.PrivateKey, 0, len(exported.Seeds))
	for _, seed := range exported.Seeds {
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("keyring seed has invalid length %d", len(seed))
		}
		keys = append(keys, ed25519.NewKeyFromSeed(seed))
	}
	mem, err := FromPrivateKeys(keys)
	if err != nil {
		return nil, err
	}
	return &FileKeyring{MemoryKeyring: mem, path: path}, nil
}

func (fk *FileKeyring) save(passphrase string) error {
	plaintext, err := fk.Export()
	if err != nil {
		return err
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	kek := deriveKEK(passphrase, salt)
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return err
	}
	sealed := sealedFile{
		Version:    1,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}

	data, err := json.Marshal(sealed)
	if err != nil {
		return err
	}
	return os.WriteFile(fk.path, data, 0o600)
}

func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1<<16, 8, 1, kekBytes)
}
