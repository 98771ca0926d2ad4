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

// Package memory is a mutex-guarded in-memory Store. It backs tests and
// gives the atomic semantics the interfaces demand (challenge CAS, nonce
// first-writer-wins) without external services.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

type nonceKey struct {
	keyID string
	nonce string
}

type assignmentKey struct {
	aid    string
	roleID string
}

type pairKey struct {
	owner string
	other string
}

// Store implements storage.Store in memory.
type Store struct {
	mu sync.RWMutex

	keyStates   map[string]models.KeyState
	challenges  map[string]models.Challenge
	nonces      map[nonceKey]models.SignedRequestNonce
	sessions    map[string]models.SessionToken
	roles       map[string]models.Role
	permissions map[string]models.Permission
	grants      map[string]map[string]bool // roleID -> permissionID set
	assignments map[assignmentKey]models.UserRoleAssignment
	allowLists  map[pairKey]models.AllowListEntry
	denyLists   map[pairKey]models.DenyListEntry
	messages    map[string]models.MessageRecord
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		keyStates:   make(map[string]models.KeyState),
		challenges:  make(map[string]models.Challenge),
		nonces:      make(map[nonceKey]models.SignedRequestNonce),
		sessions:    make(map[string]models.SessionToken),
		roles:       make(map[string]models.Role),
		permissions: make(map[string]models.Permission),
		grants:      make(map[string]map[string]bool),
		assignments: make(map[assignmentKey]models.UserRoleAssignment),
		allowLists:  make(map[pairKey]models.AllowListEntry),
		denyLists:   make(map[pairKey]models.DenyListEntry),
		messages:    make(map[string]models.MessageRecord),
	}
}

var _ storage.Store = (*Store)(nil)

// --- KeyStateStore ---

func (s *Store) GetKeyState(ctx context.Context, aid string) (*models.KeyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.keyStates[aid]
	if !ok {
		return nil, apperrors.NotFound("no key state for " + aid)
	}
	copied := state
	return &copied, nil
}

func (s *Store) PutKeyState(ctx context.Context, state models.KeyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyStates[state.AID] = state
	return nil
}

// --- ChallengeStore ---

func (s *Store) SaveChallenge(ctx context.Context, ch models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[ch.ChallengeID] = ch
	return nil
}

func (s *Store) GetChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.challenges[challengeID]
	if !ok {
		return nil, apperrors.NotFound("challenge not found")
	}
	copied := ch
	return &copied, nil
}

// ConsumeChallenge flips used false -> true under the write lock: exactly
// one caller per challenge observes the transition.
func (s *Store) ConsumeChallenge(ctx context.Context, challengeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[challengeID]
	if !ok || ch.Used {
		return false, nil
	}
	ch.Used = true
	s.challenges[challengeID] = ch
	return true, nil
}

func (s *Store) PurgeExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, ch := range s.challenges {
		if now.After(ch.ExpiresAt) {
			delete(s.challenges, id)
			purged++
		}
	}
	return purged, nil
}

// --- NonceStore ---

func (s *Store) NonceSeen(ctx context.Context, keyID, nonce string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, seen := s.nonces[nonceKey{keyID, nonce}]
	return seen, nil
}

func (s *Store) RecordNonce(ctx context.Context, keyID, nonce string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nonceKey{keyID, nonce}
	if _, exists := s.nonces[key]; exists {
		return false, nil
	}
	s.nonces[key] = models.SignedRequestNonce{
		KeyID:     keyID,
		Nonce:     nonce,
		UsedAt:    time.Now(),
		ExpiresAt: expiresAt,
	}
	return true, nil
}

func (s *Store) PurgeExpiredNonces(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for key, entry := range s.nonces {
		if now.After(entry.ExpiresAt) {
			delete(s.nonces, key)
			purged++
		}
	}
	return purged, nil
}

// --- SessionStore ---

func (s *Store) SaveSession(ctx context.Context, token models.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token.Token] = token
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*models.SessionToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, apperrors.NotFound("session not found")
	}
	copied := session
	return &copied, nil
}

func (s *Store) TouchSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return apperrors.NotFound("session not found")
	}
	session.UseCount++
	s.sessions[token] = session
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			purged++
		}
	}
	return purged, nil
}

// --- RBACStore ---

func (s *Store) CreateRole(ctx context.Context, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.RoleID] = role
	return nil
}

func (s *Store) CreatePermission(ctx context.Context, perm models.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[perm.PermissionID] = perm
	return nil
}

func (s *Store) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return apperrors.NotFound("role not found")
	}
	if _, ok := s.permissions[permissionID]; !ok {
		return apperrors.NotFound("permission not found")
	}
	if s.grants[roleID] == nil {
		s.grants[roleID] = make(map[string]bool)
	}
	s.grants[roleID][permissionID] = true
	return nil
}

func (s *Store) AssignRole(ctx context.Context, aid, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return apperrors.NotFound("role not found")
	}
	s.assignments[assignmentKey{aid, roleID}] = models.UserRoleAssignment{
		AID:        aid,
		RoleID:     roleID,
		AssignedAt: time.Now(),
	}
	return nil
}

func (s *Store) UnassignRole(ctx context.Context, aid, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, assignmentKey{aid, roleID})
	return nil
}

func (s *Store) GetRolesForIdentity(ctx context.Context, aid string) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roles []models.Role
	for key := range s.assignments {
		if key.aid != aid {
			continue
		}
		if role, ok := s.roles[key.roleID]; ok {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].RoleID < roles[j].RoleID })
	return roles, nil
}

func (s *Store) GetPermissionsForRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var perms []models.Permission
	for _, roleID := range roleIDs {
		for permID := range s.grants[roleID] {
			if perm, ok := s.permissions[permID]; ok {
				perms = append(perms, perm)
			}
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].PermissionID < perms[j].PermissionID })
	return perms, nil
}

// --- ACLStore ---

func (s *Store) AddAllowEntry(ctx context.Context, entry models.AllowListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowLists[pairKey{entry.OwnerAID, entry.OtherAID}] = entry
	return nil
}

func (s *Store) RemoveAllowEntry(ctx context.Context, ownerAID, otherAID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allowLists, pairKey{ownerAID, otherAID})
	return nil
}

func (s *Store) AddDenyEntry(ctx context.Context, entry models.DenyListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denyLists[pairKey{entry.OwnerAID, entry.OtherAID}] = entry
	return nil
}

func (s *Store) RemoveDenyEntry(ctx context.Context, ownerAID, otherAID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.denyLists, pairKey{ownerAID, otherAID})
	return nil
}

func (s *Store) GetAllowList(ctx context.Context, ownerAID string) ([]models.AllowListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []models.AllowListEntry
	for key, entry := range s.allowLists {
		if key.owner == ownerAID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].OtherAID < entries[j].OtherAID })
	return entries, nil
}

func (s *Store) GetDenyList(ctx context.Context, ownerAID string) ([]models.DenyListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []models.DenyListEntry
	for key, entry := range s.denyLists {
		if key.owner == ownerAID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].OtherAID < entries[j].OtherAID })
	return entries, nil
}

// --- MessageStore ---

func (s *Store) SaveMessage(ctx context.Context, record models.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[record.MessageID] = record
	return nil
}

func (s *Store) GetMessage(ctx context.Context, messageID string) (*models.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.messages[messageID]
	if !ok {
		return nil, apperrors.NotFound("message not found")
	}
	copied := record
	return &copied, nil
}

func (s *Store) GetMessagesForGroup(ctx context.Context, groupID string, limit int) ([]models.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []models.MessageRecord
	for _, record := range s.messages {
		if record.GroupID == groupID {
			records = append(records, record)
		}
	}
	return newestFirst(records, limit), nil
}

func (s *Store) GetMessagesForRecipient(ctx context.Context, aid string, limit int) ([]models.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []models.MessageRecord
	for _, record := range s.messages {
		if _, ok := record.Envelope.EncryptedKeys[aid]; ok {
			records = append(records, record)
		}
	}
	return newestFirst(records, limit), nil
}

func (s *Store) PurgeExpiredMessages(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, record := range s.messages {
		if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
			delete(s.messages, id)
			purged++
		}
	}
	return purged, nil
}

func newestFirst(records []models.MessageRecord, limit int) []models.MessageRecord {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
