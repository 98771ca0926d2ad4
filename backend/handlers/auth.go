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
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/auth"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

// PurposeLogin is the challenge purpose that mints session tokens.
const PurposeLogin = "login"

type AuthHandler struct {
	challenges *auth.ChallengeService
	sessions   *auth.SessionService
	keys       storage.KeyStateStore
}

func NewAuthHandler(challenges *auth.ChallengeService, sessions *auth.SessionService, keys storage.KeyStateStore) *AuthHandler {
	return &AuthHandler{challenges: challenges, sessions: sessions, keys: keys}
}

type challengeRequest struct {
	AID     string         `json:"aid"`
	Purpose string         `json:"purpose"`
	Args    map[string]any `json:"args"`
}

type challengeResponse struct {
	Challenge      *models.Challenge `json:"challenge"`
	SigningPayload string            `json:"signing_payload"`
}

// IssueChallenge hands out a single-use challenge for (aid, purpose, args).
// The response includes the exact canonical payload to sign, so clients do
// not have to reimplement canonicalization to log in.
func (h *AuthHandler) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidArg("invalid request body"))
		return
	}
	if req.Purpose == "" {
		writeError(w, apperrors.InvalidArg("purpose is required"))
		return
	}

	ch, err := h.challenges.Issue(r.Context(), req.AID, req.Purpose, req.Args)
	if err != nil {
		writeError(w, err)
		return
	}
	payload, err := auth.SigningPayload(ch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, challengeResponse{
		Challenge:      ch,
		SigningPayload: base64.RawURLEncoding.EncodeToString(payload),
	})
}

type loginRequest struct {
	Proof  models.AuthProof `json:"proof"`
	Args   map[string]any   `json:"args"`
	Scopes []string         `json:"scopes"`
}

type loginResponse struct {
	Token    *models.SessionToken     `json:"token"`
	Identity *models.VerifiedIdentity `json:"identity"`
}

// Login verifies a proof against a login challenge and mints a session
// token pinned to the key state the proof verified under.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidArg("invalid request body"))
		return
	}

	ident, err := h.challenges.Verify(r.Context(), req.Proof, PurposeLogin, req.Args)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := h.sessions.Mint(r.Context(), ident, req.Scopes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Identity: ident})
}

// Logout revokes the bearer token on the request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		writeError(w, apperrors.InvalidArg("missing bearer token"))
		return
	}
	if err := h.sessions.Revoke(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// GetKeyState serves the registry's current view of one identity. This is
// public: key states contain only public keys.
func (h *AuthHandler) GetKeyState(w http.ResponseWriter, r *http.Request) {
	aid := mux.Vars(r)["aid"]
	state, err := h.keys.GetKeyState(r.Context(), aid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
