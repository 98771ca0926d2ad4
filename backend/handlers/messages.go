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
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/auth"
	"github.com/sealchat/sealcore/backend/authz"
	"github.com/sealchat/sealcore/backend/crypto"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

const (
	// PermMessageSend gates sending into a group; scoped grants list the
	// permitted group ids.
	PermMessageSend = "message/send"

	// PermMessageRead gates listing a group's message feed.
	PermMessageRead = "message/read"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// MessageHandler is the ciphertext relay. It never sees plaintext: sends
// arrive as sealed group envelopes inside a signed request, get checked
// against the sender's permissions and every recipient's ACL, and are
// stored as-is.
type MessageHandler struct {
	messages storage.MessageStore
	signed   *auth.SignedRequestService
	rbac     *authz.RBACResolver
	acl      *authz.ACLResolver
}

func NewMessageHandler(messages storage.MessageStore, signed *auth.SignedRequestService, rbac *authz.RBACResolver, acl *authz.ACLResolver) *MessageHandler {
	return &MessageHandler{messages: messages, signed: signed, rbac: rbac, acl: acl}
}

type sendResponse struct {
	MessageID string   `json:"message_id"`
	Delivered []string `json:"delivered"`
	Withheld  []string `json:"withheld,omitempty"`
}

// Send accepts a group message as a signed request. The envelope, group id
// and both audit hashes must be inside the signature's covered fields, so
// the stored record is exactly what the sender's keys vouched for.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SignedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidArg("invalid request body"))
		return
	}

	ident, err := h.signed.Verify(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, required := range []string{"group_id", "envelope", "ciphertext_hash", "envelope_hash"} {
		if !covered(req.SignedFields, required) {
			writeError(w, apperrors.InvalidArg("field "+required+" must be signature-covered"))
			return
		}
	}

	groupID, _ := req.Fields["group_id"].(string)
	if groupID == "" {
		writeError(w, apperrors.InvalidArg("group_id is required"))
		return
	}
	var envelope models.GroupMessageEnvelope
	if err := decodeField(req.Fields["envelope"], &envelope); err != nil {
		writeError(w, apperrors.InvalidArg("malformed envelope"))
		return
	}
	ciphertextHash, err := hashField(req.Fields["ciphertext_hash"])
	if err != nil {
		writeError(w, err)
		return
	}
	envelopeHash, err := hashField(req.Fields["envelope_hash"])
	if err != nil {
		writeError(w, err)
		return
	}

	if envelope.SenderAID != ident.AID {
		writeError(w, apperrors.SignatureInvalid("envelope sender does not match authenticated identity"))
		return
	}
	if envelope.GroupID != groupID {
		writeError(w, apperrors.InvalidArg("envelope group does not match group_id"))
		return
	}

	// The hashes the sender signed must match what was actually uploaded.
	if !crypto.HashBytes(envelope.EncryptedContent).Equal(ciphertextHash) {
		writeError(w, apperrors.SignatureInvalid("ciphertext hash mismatch"))
		return
	}
	actualEnvelopeHash, err := crypto.CanonicalHash(envelope)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidArgument, "hash envelope", err))
		return
	}
	if !actualEnvelopeHash.Equal(envelopeHash) {
		writeError(w, apperrors.SignatureInvalid("envelope hash mismatch"))
		return
	}

	if _, err := h.rbac.Check(r.Context(), ident.AID, PermMessageSend, groupID); err != nil {
		writeError(w, err)
		return
	}

	// Each recipient's ACL is consulted; denied recipients are withheld
	// from delivery (their wrapped key is dropped) rather than failing the
	// whole send. A send no recipient accepts is refused outright.
	delivered := make([]string, 0, len(envelope.EncryptedKeys))
	var withheld []string
	for recipient := range envelope.EncryptedKeys {
		decision, err := h.acl.Resolve(r.Context(), recipient, ident.AID)
		if err != nil {
			writeError(w, err)
			return
		}
		if decision.Allowed {
			delivered = append(delivered, recipient)
		} else {
			withheld = append(withheld, recipient)
			delete(envelope.EncryptedKeys, recipient)
		}
	}
	if len(delivered) == 0 {
		writeError(w, apperrors.AccessDenied("no recipient accepts messages from this sender"))
		return
	}

	now := time.Now()
	record := models.MessageRecord{
		MessageID:      uuid.New().String(),
		GroupID:        groupID,
		SenderAID:      ident.AID,
		Envelope:       envelope,
		CiphertextHash: ciphertextHash,
		EnvelopeHash:   envelopeHash,
		Signatures:     req.Signatures,
		KSN:            ident.KSN,
		CreatedAt:      now,
	}
	if ttl, ok := req.Fields["ttl_seconds"].(float64); ok && ttl > 0 {
		record.ExpiresAt = now.Add(time.Duration(ttl) * time.Second)
	}

	if err := h.messages.SaveMessage(r.Context(), record); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInternal, "save message", err))
		return
	}
	writeJSON(w, http.StatusCreated, sendResponse{
		MessageID: record.MessageID,
		Delivered: delivered,
		Withheld:  withheld,
	})
}

// Inbox lists the caller's inbound messages, post-filtered through the
// caller's own ACL so a sender denied after delivery disappears from the
// listing.
func (h *MessageHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	caller := callerAID(r)
	records, err := h.messages.GetMessagesForRecipient(r.Context(), caller, listLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}

	senders := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		if !seen[record.SenderAID] {
			seen[record.SenderAID] = true
			senders = append(senders, record.SenderAID)
		}
	}
	decisions, err := h.acl.ResolveBatch(r.Context(), caller, senders)
	if err != nil {
		writeError(w, err)
		return
	}

	visible := make([]models.MessageRecord, 0, len(records))
	for _, record := range records {
		if decisions[record.SenderAID].Allowed {
			visible = append(visible, record)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

// GroupFeed lists a group's stored messages for a caller with read rights
// on that group.
func (h *MessageHandler) GroupFeed(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group_id"]
	if _, err := h.rbac.Check(r.Context(), callerAID(r), PermMessageRead, groupID); err != nil {
		writeError(w, err)
		return
	}
	records, err := h.messages.GetMessagesForGroup(r.Context(), groupID, listLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetMessage fetches one record. Only the sender and the envelope's
// recipients may see it; everyone else gets the same NotFound as for a
// nonexistent id.
func (h *MessageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["message_id"]
	record, err := h.messages.GetMessage(r.Context(), messageID)
	if err != nil {
		writeError(w, err)
		return
	}

	caller := callerAID(r)
	if record.SenderAID != caller {
		if _, ok := record.Envelope.EncryptedKeys[caller]; !ok {
			writeError(w, apperrors.NotFound("message not found"))
			return
		}
	}
	writeJSON(w, http.StatusOK, record)
}

func covered(signedFields []string, name string) bool {
	for _, field := range signedFields {
		if field == name {
			return true
		}
	}
	return false
}

// decodeField re-marshals a decoded JSON value into a concrete type.
func decodeField(value any, dst any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func hashField(value any) (models.Hash, error) {
	text, _ := value.(string)
	hash, err := models.HashFromHex(text)
	if err != nil {
		return models.Hash{}, apperrors.InvalidArg("malformed hash field")
	}
	return hash, nil
}

func listLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
