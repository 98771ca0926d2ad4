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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
)

// signingKeySource adapts a raw ed25519 private key to the key source the
// engine expects, standing in for a full keyring.
type signingKeySource struct {
	priv ed25519.PrivateKey
}

func (s signingKeySource) AgreementPrivate() ([32]byte, error) {
	return AgreementPrivateFromSigningKey(s.priv)
}

type member struct {
	aid  string
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newMember(t *testing.T) member {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return member{aid: models.DeriveAID(pub), pub: pub, priv: priv}
}

func encryptToGroup(t *testing.T, sender member, recipients []member, plaintext, aad []byte) *models.GroupMessageEnvelope {
	t.Helper()
	pubs := make(map[string]ed25519.PublicKey, len(recipients))
	for _, r := range recipients {
		pubs[r.aid] = r.pub
	}
	env, err := EncryptGroupMessage(signingKeySource{sender.priv}, sender.aid, "group-1", pubs, plaintext, aad)
	require.NoError(t, err)
	return env
}

func TestGroupMessageRoundTrip(t *testing.T) {
	sender := newMember(t)
	recipients := []member{newMember(t), newMember(t), newMember(t)}
	plaintext := []byte("the content is encrypted exactly once")

	env := encryptToGroup(t, sender, recipients, plaintext, nil)
	require.Len(t, env.EncryptedKeys, 3)

	for _, r := range recipients {
		got, err := DecryptGroupMessage(signingKeySource{r.priv}, r.aid, sender.pub, env)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestGroupMessageNonRecipient(t *testing.T) {
	sender := newMember(t)
	recipient := newMember(t)
	outsider := newMember(t)

	env := encryptToGroup(t, sender, []member{recipient}, []byte("secret"), nil)

	_, err := DecryptGroupMessage(signingKeySource{outsider.priv}, outsider.aid, sender.pub, env)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRecipientNotFound, apperrors.CodeOf(err))
}

func TestGroupMessageTamperedCiphertext(t *testing.T) {
	sender := newMember(t)
	recipient := newMember(t)

	env := encryptToGroup(t, sender, []member{recipient}, []byte("secret"), nil)
	env.EncryptedContent[0] ^= 0xff

	_, err := DecryptGroupMessage(signingKeySource{recipient.priv}, recipient.aid, sender.pub, env)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSignatureInvalid, apperrors.CodeOf(err))
}

func TestGroupMessageTamperedWrappedKey(t *testing.T) {
	sender := newMember(t)
	recipient := newMember(t)

	env := encryptToGroup(t, sender, []member{recipient}, []byte("secret"), nil)
	wrapped := env.EncryptedKeys[recipient.aid]
	wrapped.WrappedKey[0] ^= 0xff
	env.EncryptedKeys[recipient.aid] = wrapped

	_, err := DecryptGroupMessage(signingKeySource{recipient.priv}, recipient.aid, sender.pub, env)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSignatureInvalid, apperrors.CodeOf(err))
}

func TestGroupMessageFreshKeyPerMessage(t *testing.T) {
	sender := newMember(t)
	recipient := newMember(t)
	plaintext := []byte("same plaintext twice")

	env1 := encryptToGroup(t, sender, []member{recipient}, plaintext, nil)
	env2 := encryptToGroup(t, sender, []member{recipient}, plaintext, nil)

	assert.NotEqual(t, env1.ContentNonce, env2.ContentNonce)
	assert.NotEqual(t, env1.EncryptedContent, env2.EncryptedContent,
		"a fresh content key must make identical plaintexts encrypt differently")
}

func TestGroupMessageAADBinding(t *testing.T) {
	sender := newMember(t)
	recipient := newMember(t)

	env := encryptToGroup(t, sender, []member{recipient}, []byte("secret"), []byte("context"))

	got, err := DecryptGroupMessage(signingKeySource{recipient.priv}, recipient.aid, sender.pub, env)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)

	env.AAD = []byte("tampered context")
	_, err = DecryptGroupMessage(signingKeySource{recipient.priv}, recipient.aid, sender.pub, env)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSignatureInvalid, apperrors.CodeOf(err))
}

func TestGroupMessageNoRecipients(t *testing.T) {
	sender := newMember(t)
	_, err := EncryptGroupMessage(signingKeySource{sender.priv}, sender.aid, "group-1", nil, []byte("x"), nil)
	assert.Error(t, err)
}
