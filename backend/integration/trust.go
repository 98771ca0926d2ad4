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

// Package integration embeds the trust layer into a host chat server: it
// wires storage, services and handlers together, mounts the routes on the
// host's router, and runs the rotation watcher that mirrors the external
// key-event registry into local key states.
package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/sealchat/sealcore/backend/auth"
	"github.com/sealchat/sealcore/backend/authz"
	"github.com/sealchat/sealcore/backend/handlers"
	"github.com/sealchat/sealcore/backend/middleware"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage/postgres"
)

// DefaultPollInterval is how often the rotation watcher polls the registry.
const DefaultPollInterval = 30 * time.Second

// Config holds everything the trust integration needs from the host.
type Config struct {
	DB    *sql.DB
	Redis *redis.Client

	// RegistryURL is the base URL of the external key-event registry the
	// rotation watcher mirrors. Empty disables the watcher.
	RegistryURL string

	PollInterval time.Duration
}

// TrustIntegration provides identity verification, authentication,
// authorization and the ciphertext relay as a plugin for a host server.
type TrustIntegration struct {
	store *postgres.Store

	challenges *auth.ChallengeService
	sessions   *auth.SessionService
	signed     *auth.SignedRequestService
	rbac       *authz.RBACResolver
	acl        *authz.ACLResolver

	authHandler    *handlers.AuthHandler
	roleHandler    *handlers.RoleHandler
	aclHandler     *handlers.ACLHandler
	messageHandler *handlers.MessageHandler

	registryURL  string
	pollInterval time.Duration
	client       *http.Client
}

func NewTrustIntegration(config *Config) (*TrustIntegration, error) {
	store := postgres.NewStore(config.DB, config.Redis)

	if err := store.Migrate(); err != nil {
		return nil, err
	}

	challenges := auth.NewChallengeService(store, store, auth.DefaultChallengeTTL, nil)
	sessions := auth.NewSessionService(store, store, auth.DefaultSessionTTL, nil)
	signed := auth.NewSignedRequestService(store, store, auth.DefaultSkewTolerance, auth.DefaultReplayWindow, nil)
	rbac := authz.NewRBACResolver(store)
	acl := authz.NewACLResolver(store)

	interval := config.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &TrustIntegration{
		store:          store,
		challenges:     challenges,
		sessions:       sessions,
		signed:         signed,
		rbac:           rbac,
		acl:            acl,
		authHandler:    handlers.NewAuthHandler(challenges, sessions, store),
		roleHandler:    handlers.NewRoleHandler(store, rbac),
		aclHandler:     handlers.NewACLHandler(store, acl),
		messageHandler: handlers.NewMessageHandler(store, signed, rbac, acl),
		registryURL:    config.RegistryURL,
		pollInterval:   interval,
		client:         &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// RegisterRoutes adds the trust endpoints to an existing router. The
// challenge, login, key-state and send endpoints carry their own
// authentication; everything else sits behind the session middleware.
func (t *TrustIntegration) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/trust").Subrouter()

	api.HandleFunc("/auth/challenge", t.authHandler.IssueChallenge).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", t.authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/keystate/{aid}", t.authHandler.GetKeyState).Methods("GET", "OPTIONS")

	// Sends authenticate via their embedded signed request, not a session.
	api.HandleFunc("/messages", t.messageHandler.Send).Methods("POST", "OPTIONS")

	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.NewAuthMiddleware(t.sessions))

	authed.HandleFunc("/auth/logout", t.authHandler.Logout).Methods("POST", "OPTIONS")

	authed.HandleFunc("/roles", t.roleHandler.CreateRole).Methods("POST", "OPTIONS")
	authed.HandleFunc("/permissions", t.roleHandler.CreatePermission).Methods("POST", "OPTIONS")
	authed.HandleFunc("/roles/{role_id}/permissions", t.roleHandler.GrantPermission).Methods("POST", "OPTIONS")
	authed.HandleFunc("/identities/{aid}/roles", t.roleHandler.AssignRole).Methods("POST", "OPTIONS")
	authed.HandleFunc("/identities/{aid}/roles/{role_id}", t.roleHandler.UnassignRole).Methods("DELETE", "OPTIONS")
	authed.HandleFunc("/identities/{aid}/claims", t.roleHandler.GetClaims).Methods("GET", "OPTIONS")

	authed.HandleFunc("/acl", t.aclHandler.GetLists).Methods("GET", "OPTIONS")
	authed.HandleFunc("/acl/allow/{aid}", t.aclHandler.AddAllow).Methods("PUT", "OPTIONS")
	authed.HandleFunc("/acl/allow/{aid}", t.aclHandler.RemoveAllow).Methods("DELETE", "OPTIONS")
	authed.HandleFunc("/acl/deny/{aid}", t.aclHandler.AddDeny).Methods("PUT", "OPTIONS")
	authed.HandleFunc("/acl/deny/{aid}", t.aclHandler.RemoveDeny).Methods("DELETE", "OPTIONS")
	authed.HandleFunc("/acl/check/{aid}", t.aclHandler.CheckSender).Methods("GET", "OPTIONS")

	authed.HandleFunc("/messages/inbox", t.messageHandler.Inbox).Methods("GET", "OPTIONS")
	authed.HandleFunc("/messages/{message_id}", t.messageHandler.GetMessage).Methods("GET", "OPTIONS")
	authed.HandleFunc("/groups/{group_id}/messages", t.messageHandler.GroupFeed).Methods("GET", "OPTIONS")
}

// GetStore returns the underlying storage implementation.
func (t *TrustIntegration) GetStore() *postgres.Store {
	return t.store
}

// StartRotationWatcher mirrors the external key-event registry into the
// local key-state table until ctx is cancelled. The registry is the only
// writer of key states; this process never mutates them on its own.
func (t *TrustIntegration) StartRotationWatcher(ctx context.Context) {
	if t.registryURL == "" {
		log.Printf("[rotation] no registry configured, watcher disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(t.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.syncKeyStates(ctx); err != nil {
					log.Printf("[rotation] sync failed: %v", err)
				}
			}
		}
	}()
}

// syncKeyStates pulls the registry's current key states and applies every
// advanced sequence. Stale registry entries are skipped, never applied
// backwards.
func (t *TrustIntegration) syncKeyStates(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.registryURL+"/v1/keystates", nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var states []models.KeyState
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}

	for _, state := range states {
		current, err := t.store.GetKeyState(ctx, state.AID)
		if err == nil && current.Sequence >= state.Sequence {
			continue
		}
		if err := t.store.PutKeyState(ctx, state); err != nil {
			log.Printf("[rotation] apply key state for %s: %v", state.AID, err)
			continue
		}
		log.Printf("[rotation] key state for %s advanced to sequence %d", state.AID, state.Sequence)
	}
	return nil
}

// StartMaintenance runs the periodic purge of expired challenges and
// messages until ctx is cancelled. Nonces and sessions expire via redis
// TTLs and need no sweep.
func (t *TrustIntegration) StartMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				if n, err := t.store.PurgeExpiredChallenges(ctx, now); err != nil {
					log.Printf("[maintenance] purge challenges: %v", err)
				} else if n > 0 {
					log.Printf("[maintenance] purged %d expired challenges", n)
				}
				if n, err := t.store.PurgeExpiredMessages(ctx, now); err != nil {
					log.Printf("[maintenance] purge messages: %v", err)
				} else if n > 0 {
					log.Printf("[maintenance] purged %d expired messages", n)
				}
			}
		}
	}()
}
