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

package handlers

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealchat/sealcore/backend/auth"
	"github.com/sealchat/sealcore/backend/authz"
	"github.com/sealchat/sealcore/backend/crypto"
	"github.com/sealchat/sealcore/backend/custody"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage/memory"
)

type sendFixture struct {
	store   *memory.Store
	handler *MessageHandler
	sender  *custody.MemoryKeyring
}

func newSendFixture(t *testing.T) *sendFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	sender, err := custody.NewMemoryKeyring(1)
	require.NoError(t, err)
	require.NoError(t, store.PutKeyState(ctx, models.KeyState{
		AID:        sender.AID(),
		Sequence:   0,
		PublicKeys: sender.PublicKeyBytes(),
		Threshold:  1,
		UpdatedAt:  time.Now(),
	}))

	require.NoError(t, store.CreateRole(ctx, models.Role{RoleID: "member", Name: "member"}))
	require.NoError(t, store.CreatePermission(ctx, models.Permission{
		PermissionID: "p-send", Key: PermMessageSend, Data: []string{"g1"},
	}))
	require.NoError(t, store.GrantPermission(ctx, "member", "p-send"))
	require.NoError(t, store.AssignRole(ctx, sender.AID(), "member"))

	signed := auth.NewSignedRequestService(store, store, 0, 0, nil)
	rbac := authz.NewRBACResolver(store)
	acl := authz.NewACLResolver(store)
	return &sendFixture{
		store:   store,
		handler: NewMessageHandler(store, signed, rbac, acl),
		sender:  sender,
	}
}

func newRecipient(t *testing.T) (string, ed25519.PublicKey) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return models.DeriveAID(pub), pub
}

// signedSend builds the full signed-request body for a group send.
func (f *sendFixture) signedSend(t *testing.T, groupID string, recipients map[string]ed25519.PublicKey) *models.SignedRequest {
	t.Helper()
	env, err := crypto.EncryptGroupMessage(f.sender, f.sender.AID(), groupID, recipients, []byte("sealed content"), nil)
	require.NoError(t, err)

	envHash, err := crypto.CanonicalHash(env)
	require.NoError(t, err)

	req := &models.SignedRequest{
		AID:       f.sender.AID(),
		KSN:       0,
		KeyID:     f.sender.AID() + "#0",
		Timestamp: time.Now().Unix(),
		Nonce:     uuid.New().String(),
		SignedFields: []string{
			"group_id", "envelope", "ciphertext_hash", "envelope_hash",
		},
		Fields: map[string]any{
			"group_id":        groupID,
			"envelope":        env,
			"ciphertext_hash": crypto.HashBytes(env.EncryptedContent).String(),
			"envelope_hash":   envHash.String(),
		},
	}
	payload, err := auth.SignedRequestPayload(req)
	require.NoError(t, err)
	sigs, err := f.sender.Sign(payload)
	require.NoError(t, err)
	req.Signatures = sigs
	return req
}

func (f *sendFixture) post(t *testing.T, req *models.SignedRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	f.handler.Send(w, httptest.NewRequest(http.MethodPost, "/api/trust/messages", bytes.NewReader(body)))
	return w
}

func TestSendStoresAndFansOut(t *testing.T) {
	f := newSendFixture(t)
	aliceAID, alicePub := newRecipient(t)
	bobAID, bobPub := newRecipient(t)

	w := f.post(t, f.signedSend(t, "g1", map[string]ed25519.PublicKey{
		aliceAID: alicePub,
		bobAID:   bobPub,
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp sendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{aliceAID, bobAID}, resp.Delivered)
	assert.Empty(t, resp.Withheld)

	records, err := f.store.GetMessagesForRecipient(context.Background(), aliceAID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, f.sender.AID(), records[0].SenderAID)
	assert.Equal(t, 0, records[0].KSN)
}

func TestSendWithheldForDenyListedRecipient(t *testing.T) {
	f := newSendFixture(t)
	aliceAID, alicePub := newRecipient(t)
	bobAID, bobPub := newRecipient(t)

	// Bob blocks the sender; Alice still receives.
	require.NoError(t, f.store.AddDenyEntry(context.Background(), models.DenyListEntry{
		OwnerAID: bobAID,
		OtherAID: f.sender.AID(),
	}))

	w := f.post(t, f.signedSend(t, "g1", map[string]ed25519.PublicKey{
		aliceAID: alicePub,
		bobAID:   bobPub,
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp sendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{aliceAID}, resp.Delivered)
	assert.Equal(t, []string{bobAID}, resp.Withheld)

	forBob, err := f.store.GetMessagesForRecipient(context.Background(), bobAID, 10)
	require.NoError(t, err)
	assert.Empty(t, forBob, "withheld recipients must not be fanned out")
}

func TestSendRefusedWhenAllRecipientsDeny(t *testing.T) {
	f := newSendFixture(t)
	aliceAID, alicePub := newRecipient(t)
	require.NoError(t, f.store.AddDenyEntry(context.Background(), models.DenyListEntry{
		OwnerAID: aliceAID,
		OtherAID: f.sender.AID(),
	}))

	w := f.post(t, f.signedSend(t, "g1", map[string]ed25519.PublicKey{aliceAID: alicePub}))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendRequiresGroupPermission(t *testing.T) {
	f := newSendFixture(t)
	aliceAID, alicePub := newRecipient(t)

	// The sender's grant covers g1 only.
	w := f.post(t, f.signedSend(t, "g2", map[string]ed25519.PublicKey{aliceAID: alicePub}))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendRejectsTamperedEnvelope(t *testing.T) {
	f := newSendFixture(t)
	aliceAID, alicePub := newRecipient(t)

	req := f.signedSend(t, "g1", map[string]ed25519.PublicKey{aliceAID: alicePub})
	env := req.Fields["envelope"].(*models.GroupMessageEnvelope)
	env.EncryptedContent = append(env.EncryptedContent, 0x00)

	w := f.post(t, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendRejectsReplay(t *testing.T) {
	f := newSendFixture(t)
	aliceAID, alicePub := newRecipient(t)
	req := f.signedSend(t, "g1", map[string]ed25519.PublicKey{aliceAID: alicePub})

	first := f.post(t, req)
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.post(t, req)
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestInboxFiltersDeniedSenders(t *testing.T) {
	f := newSendFixture(t)
	aliceAID, alicePub := newRecipient(t)

	w := f.post(t, f.signedSend(t, "g1", map[string]ed25519.PublicKey{aliceAID: alicePub}))
	require.Equal(t, http.StatusCreated, w.Code)

	inbox := func() []models.MessageRecord {
		r := httptest.NewRequest(http.MethodGet, "/api/trust/messages/inbox", nil)
		r = r.WithContext(context.WithValue(r.Context(), "aid", aliceAID))
		rec := httptest.NewRecorder()
		f.handler.Inbox(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		var records []models.MessageRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		return records
	}

	assert.Len(t, inbox(), 1)

	// Alice blocks the sender after delivery; the message disappears from
	// her listing.
	require.NoError(t, f.store.AddDenyEntry(context.Background(), models.DenyListEntry{
		OwnerAID: aliceAID,
		OtherAID: f.sender.AID(),
	}))
	assert.Empty(t, inbox())
}
