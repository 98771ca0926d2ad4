// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/authz"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

// ACLHandler manages the caller's own allow and deny lists. The owner is
// always the authenticated identity; there is no cross-identity editing.
type ACLHandler struct {
	store storage.ACLStore
	acl   *authz.ACLResolver
}

func NewACLHandler(store storage.ACLStore, acl *authz.ACLResolver) *ACLHandler {
	return &ACLHandler{store: store, acl: acl}
}

type aclEntryRequest struct {
	Note string `json:"note"`
}

func (h *ACLHandler) AddAllow(w http.ResponseWriter, r *http.Request) {
	other := mux.Vars(r)["aid"]
	if !models.ValidAID(other) {
		writeError(w, apperrors.InvalidArg("malformed aid"))
		return
	}

	var req aclEntryRequest
	// Body is optional for allow/deny additions.
	_ = json.NewDecoder(r.Body).Decode(&req)

	entry := models.AllowListEntry{
		OwnerAID: callerAID(r),
		OtherAID: other,
		AddedAt:  time.Now(),
		Note:     req.Note,
	}
	if err := h.store.AddAllowEntry(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *ACLHandler) RemoveAllow(w http.ResponseWriter, r *http.Request) {
	other := mux.Vars(r)["aid"]
	if err := h.store.RemoveAllowEntry(r.Context(), callerAID(r), other); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *ACLHandler) AddDeny(w http.ResponseWriter, r *http.Request) {
	other := mux.Vars(r)["aid"]
	if !models.ValidAID(other) {
		writeError(w, apperrors.InvalidArg("malformed aid"))
		return
	}

	var req aclEntryRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	entry := models.DenyListEntry{
		OwnerAID: callerAID(r),
		OtherAID: other,
		AddedAt:  time.Now(),
		Note:     req.Note,
	}
	if err := h.store.AddDenyEntry(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *ACLHandler) RemoveDeny(w http.ResponseWriter, r *http.Request) {
	other := mux.Vars(r)["aid"]
	if err := h.store.RemoveDenyEntry(r.Context(), callerAID(r), other); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type aclListsResponse struct {
	Allow []models.AllowListEntry `json:"allow"`
	Deny  []models.DenyListEntry  `json:"deny"`
}

func (h *ACLHandler) GetLists(w http.ResponseWriter, r *http.Request) {
	owner := callerAID(r)
	allow, err := h.store.GetAllowList(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	deny, err := h.store.GetDenyList(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aclListsResponse{Allow: allow, Deny: deny})
}

// CheckSender reports whether the named sender may currently reach the
// caller, with the reason when not.
func (h *ACLHandler) CheckSender(w http.ResponseWriter, r *http.Request) {
	sender := mux.Vars(r)["aid"]
	decision, err := h.acl.Resolve(r.Context(), callerAID(r), sender)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
