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

package storage

import (
	"context"
	"time"

	"github.com/sealchat/sealcore/backend/models"
)

// KeyStateStore is the read side of the key-state registry. Key states are
// mutated only by the external rotation process (via PutKeyState, which the
// rotation watcher calls); verification reads them.
type KeyStateStore interface {
	GetKeyState(ctx context.Context, aid string) (*models.KeyState, error)
	PutKeyState(ctx context.Context, state models.KeyState) error
}

// ChallengeStore persists authentication challenges. ConsumeChallenge must
// be a single atomic compare-and-swap on the used flag: it returns true for
// exactly one caller per challenge, no matter how many race.
type ChallengeStore interface {
	SaveChallenge(ctx context.Context, ch models.Challenge) error
	GetChallenge(ctx context.Context, challengeID string) (*models.Challenge, error)
	ConsumeChallenge(ctx context.Context, challengeID string) (bool, error)
	PurgeExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

// NonceStore is the replay cache for signed requests. RecordNonce must be
// atomic: it returns true only for the first recording of (keyID, nonce).
type NonceStore interface {
	NonceSeen(ctx context.Context, keyID, nonce string) (bool, error)
	RecordNonce(ctx context.Context, keyID, nonce string, expiresAt time.Time) (bool, error)
	PurgeExpiredNonces(ctx context.Context, now time.Time) (int64, error)
}

// SessionStore persists bearer session tokens.
type SessionStore interface {
	SaveSession(ctx context.Context, token models.SessionToken) error
	GetSession(ctx context.Context, token string) (*models.SessionToken, error)
	TouchSession(ctx context.Context, token string) error
	DeleteSession(ctx context.Context, token string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// RBACStore persists roles, permissions and their links. The two Get
// methods are shaped so claim resolution costs a bounded number of reads.
type RBACStore interface {
	CreateRole(ctx context.Context, role models.Role) error
	CreatePermission(ctx context.Context, perm models.Permission) error
	GrantPermission(ctx context.Context, roleID, permissionID string) error
	AssignRole(ctx context.Context, aid, roleID string) error
	UnassignRole(ctx context.Context, aid, roleID string) error
	GetRolesForIdentity(ctx context.Context, aid string) ([]models.Role, error)
	GetPermissionsForRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error)
}

// ACLStore persists per-identity allow and deny lists, indexed by owner so
// batch resolution needs one read per list per owner.
type ACLStore interface {
	AddAllowEntry(ctx context.Context, entry models.AllowListEntry) error
	RemoveAllowEntry(ctx context.Context, ownerAID, otherAID string) error
	AddDenyEntry(ctx context.Context, entry models.DenyListEntry) error
	RemoveDenyEntry(ctx context.Context, ownerAID, otherAID string) error
	GetAllowList(ctx context.Context, ownerAID string) ([]models.AllowListEntry, error)
	GetDenyList(ctx context.Context, ownerAID string) ([]models.DenyListEntry, error)
}

// MessageStore accepts already-verified message records and serves them
// back per group or per recipient. TTL expiry is handled by the purge.
type MessageStore interface {
	SaveMessage(ctx context.Context, record models.MessageRecord) error
	GetMessage(ctx context.Context, messageID string) (*models.MessageRecord, error)
	GetMessagesForGroup(ctx context.Context, groupID string, limit int) ([]models.MessageRecord, error)
	GetMessagesForRecipient(ctx context.Context, aid string, limit int) ([]models.MessageRecord, error)
	PurgeExpiredMessages(ctx context.Context, now time.Time) (int64, error)
}

type Store interface {
	KeyStateStore
	ChallengeStore
	NonceStore
	SessionStore
	RBACStore
	ACLStore
	MessageStore
}
