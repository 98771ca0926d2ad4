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
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
)

// ContentKeySize is the size of the per-message symmetric content key.
const ContentKeySize = chacha20poly1305.KeySize

const wrapInfoPrefix = "sealcore/v1/keywrap|"

// AgreementKeySource supplies the caller's derived X25519 private scalar at
// the moment of encryption or decryption. The custody layer implements it;
// this package never sees raw signing keys.
type AgreementKeySource interface {
	AgreementPrivate() ([32]byte, error)
}

// EncryptGroupMessage encrypts plaintext once with a fresh random content
// key and XChaCha20-Poly1305, then wraps the content key individually for
// each recipient using the shared secret between the sender's derived
// agreement key and the recipient's. Identical plaintext encrypted twice
// yields different ciphertext and keys.
func EncryptGroupMessage(sender AgreementKeySource, senderAID, groupID string, recipients map[string]ed25519.PublicKey, plaintext, aad []byte) (*models.GroupMessageEnvelope, error) {
	if len(recipients) == 0 {
		return nil, apperrors.InvalidArg("group message needs at least one recipient")
	}

	contentKey := make([]byte, ContentKeySize)
	if _, err := rand.Read(contentKey); err != nil {
		return nil, fmt.Errorf("generate content key: %w", err)
	}
	contentNonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(contentNonce); err != nil {
		return nil, fmt.Errorf("generate content nonce: %w", err)
	}

	contentAEAD, err := chacha20poly1305.NewX(contentKey)
	if err != nil {
		return nil, err
	}
	encryptedContent := contentAEAD.Seal(nil, contentNonce, plaintext, aad)

	senderPriv, err := sender.AgreementPrivate()
	if err != nil {
		return nil, fmt.Errorf("sender agreement key: %w", err)
	}

	encryptedKeys := make(map[string]models.WrappedKey, len(recipients))
	for aid, signingPub := range recipients {
		recipientPub, err := AgreementPublicFromSigningKey(signingPub)
		if err != nil {
			return nil, fmt.Errorf("recipient %s: %w", aid, err)
		}
		shared, err := SharedSecret(senderPriv, recipientPub)
		if err != nil {
			return nil, fmt.Errorf("recipient %s: %w", aid, err)
		}
		wrapKey, err := deriveWrapKey(shared, contentNonce, groupID)
		if err != nil {
			return nil, err
		}
		wrapAEAD, err := chacha20poly1305.NewX(wrapKey)
		if err != nil {
			return nil, err
		}
		wrapNonce := make([]byte, chacha20poly1305.NonceSizeX)
		if _, err := rand.Read(wrapNonce); err != nil {
			return nil, fmt.Errorf("generate wrap nonce: %w", err)
		}
		encryptedKeys[aid] = models.WrappedKey{
			WrappedKey: wrapAEAD.Seal(nil, wrapNonce, contentKey, nil),
			WrapNonce:  wrapNonce,
		}
	}

	return &models.GroupMessageEnvelope{
		EncryptedContent: encryptedContent,
		ContentNonce:     contentNonce,
		EncryptedKeys:    encryptedKeys,
		SenderAID:        senderAID,
		GroupID:          groupID,
		AAD:              aad,
	}, nil
}

// DecryptGroupMessage is the mirror of EncryptGroupMessage for one
// recipient: find our wrapped key by AID, recompute the shared secret with
// the sender, unwrap the content key and open the shared ciphertext. An
// AID absent from the envelope's key map is a hard RecipientNotFound.
func DecryptGroupMessage(recipient AgreementKeySource, recipientAID string, senderSigningPub ed25519.PublicKey, env *models.GroupMessageEnvelope) ([]byte, error) {
	wrapped, ok := env.EncryptedKeys[recipientAID]
	if !ok {
		return nil, apperrors.RecipientNotFound(fmt.Sprintf(
			"%s is not a recipient of this message", recipientAID))
	}

	recipientPriv, err := recipient.AgreementPrivate()
	if err != nil {
		return nil, fmt.Errorf("recipient agreement key: %w", err)
	}
	senderPub, err := AgreementPublicFromSigningKey(senderSigningPub)
	if err != nil {
		return nil, fmt.Errorf("sender public key: %w", err)
	}
	shared, err := SharedSecret(recipientPriv, senderPub)
	if err != nil {
		return nil, err
	}
	wrapKey, err := deriveWrapKey(shared, env.ContentNonce, env.GroupID)
	if err != nil {
		return nil, err
	}

	wrapAEAD, err := chacha20poly1305.NewX(wrapKey)
	if err != nil {
		return nil, err
	}
	contentKey, err := wrapAEAD.Open(nil, wrapped.WrapNonce, wrapped.WrappedKey, nil)
	if err != nil {
		return nil, apperrors.SignatureInvalid("wrapped key authentication failed")
	}

	contentAEAD, err := chacha20poly1305.NewX(contentKey)
	if err != nil {
		return nil, err
	}
	plaintext, err := contentAEAD.Open(nil, env.ContentNonce, env.EncryptedContent, env.AAD)
	if err != nil {
		return nil, apperrors.SignatureInvalid("ciphertext authentication failed")
	}
	return plaintext, nil
}

// deriveWrapKey stretches the shared secret into the key-wrapping key.
// The content nonce and group id bind the wrap key to this message.
func deriveWrapKey(shared [32]byte, contentNonce []byte, groupID string) ([]byte, error) {
	reader := hkdf.New(sha256.New, shared[:], contentNonce, []byte(wrapInfoPrefix+groupID))
	wrapKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, wrapKey); err != nil {
		return nil, fmt.Errorf("derive wrap key: %w", err)
	}
	return wrapKey, nil
}
