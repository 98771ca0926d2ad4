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

// Package handlers exposes the trust layer over HTTP: challenge and login
// endpoints, role and ACL administration, and the ciphertext message relay.
// Handlers validate and route; all protocol decisions live in the auth and
// authz packages.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/sealchat/sealcore/backend/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[handlers] encode response: %v", err)
	}
}

// writeError maps a classified error to its HTTP status and a stable JSON
// body. Internal causes are logged, never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[handlers] internal error: %v", err)
		writeJSON(w, status, map[string]string{
			"code":  string(apperrors.CodeInternal),
			"error": "internal error",
		})
		return
	}
	writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

// callerAID reads the authenticated identity the session middleware put on
// the request context. Empty means the middleware did not run.
func callerAID(r *http.Request) string {
	aid, _ := r.Context().Value("aid").(string)
	return aid
}
