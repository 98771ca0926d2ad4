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
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/authz"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

// PermRoleManage gates every role and permission mutation. Scoped grants
// restrict management to the listed role ids.
const PermRoleManage = "role/manage"

type RoleHandler struct {
	store storage.RBACStore
	rbac  *authz.RBACResolver
}

func NewRoleHandler(store storage.RBACStore, rbac *authz.RBACResolver) *RoleHandler {
	return &RoleHandler{store: store, rbac: rbac}
}

type createRoleRequest struct {
	Name string `json:"name"`
}

func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidArg("invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, apperrors.InvalidArg("role name is required"))
		return
	}

	role := models.Role{
		RoleID:    uuid.New().String(),
		Name:      req.Name,
		CreatedAt: time.Now(),
	}
	if _, err := h.rbac.Check(r.Context(), callerAID(r), PermRoleManage, role.RoleID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.CreateRole(r.Context(), role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

type createPermissionRequest struct {
	Key  string   `json:"key"`
	Data []string `json:"data"`
}

func (h *RoleHandler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidArg("invalid request body"))
		return
	}
	if req.Key == "" {
		writeError(w, apperrors.InvalidArg("permission key is required"))
		return
	}

	perm := models.Permission{
		PermissionID: uuid.New().String(),
		Key:          req.Key,
		Data:         req.Data,
	}
	if _, err := h.rbac.Check(r.Context(), callerAID(r), PermRoleManage, perm.PermissionID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.CreatePermission(r.Context(), perm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, perm)
}

type grantRequest struct {
	PermissionID string `json:"permission_id"`
}

func (h *RoleHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	roleID := mux.Vars(r)["role_id"]

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidArg("invalid request body"))
		return
	}
	if _, err := h.rbac.Check(r.Context(), callerAID(r), PermRoleManage, roleID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.GrantPermission(r.Context(), roleID, req.PermissionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "granted"})
}

type assignRequest struct {
	RoleID string `json:"role_id"`
}

func (h *RoleHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	aid := mux.Vars(r)["aid"]

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidArg("invalid request body"))
		return
	}
	if _, err := h.rbac.Check(r.Context(), callerAID(r), PermRoleManage, req.RoleID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.AssignRole(r.Context(), aid, req.RoleID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "assigned"})
}

func (h *RoleHandler) UnassignRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	aid := vars["aid"]
	roleID := vars["role_id"]

	if _, err := h.rbac.Check(r.Context(), callerAID(r), PermRoleManage, roleID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.UnassignRole(r.Context(), aid, roleID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unassigned"})
}

// GetClaims resolves the merged claim set for an identity. Callers may
// always inspect their own claims; reading another identity's claims needs
// role management rights.
func (h *RoleHandler) GetClaims(w http.ResponseWriter, r *http.Request) {
	aid := mux.Vars(r)["aid"]
	caller := callerAID(r)

	if aid != caller {
		if _, err := h.rbac.Check(r.Context(), caller, PermRoleManage, aid); err != nil {
			writeError(w, err)
			return
		}
	}
	claims, err := h.rbac.ResolveClaims(r.Context(), aid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}
