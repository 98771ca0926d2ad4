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

package postgres

func (s *Store) Migrate() error {
	migrations := []string{
		// Key states: one row per identity, written only by the
		// rotation watcher
		`CREATE TABLE IF NOT EXISTS key_states (
			aid VARCHAR(255) PRIMARY KEY,
			sequence INTEGER NOT NULL,
			public_keys JSONB NOT NULL,
			threshold INTEGER NOT NULL DEFAULT 1,
			last_event_ref VARCHAR(255) NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Authentication challenges
		`CREATE TABLE IF NOT EXISTS challenges (
			challenge_id VARCHAR(255) PRIMARY KEY,
			aid VARCHAR(255) NOT NULL,
			purpose VARCHAR(255) NOT NULL,
			args_hash CHAR(64) NOT NULL,
			nonce BYTEA NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		// Index for the expiry sweeper
		`CREATE INDEX IF NOT EXISTS idx_challenge_expiry
		ON challenges(expires_at)`,

		`CREATE INDEX IF NOT EXISTS idx_challenge_aid
		ON challenges(aid)`,

		// Roles and permissions
		`CREATE TABLE IF NOT EXISTS roles (
			role_id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// data is NULL for a global permission, a JSON array of target
		// ids for a scoped one
		`CREATE TABLE IF NOT EXISTS permissions (
			permission_id VARCHAR(255) PRIMARY KEY,
			key VARCHAR(255) NOT NULL,
			data JSONB
		)`,

		`CREATE TABLE IF NOT EXISTS role_grants (
			role_id VARCHAR(255) NOT NULL,
			permission_id VARCHAR(255) NOT NULL,
			granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (role_id, permission_id),
			FOREIGN KEY (role_id) REFERENCES roles(role_id) ON DELETE CASCADE,
			FOREIGN KEY (permission_id) REFERENCES permissions(permission_id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS user_role_assignments (
			aid VARCHAR(255) NOT NULL,
			role_id VARCHAR(255) NOT NULL,
			assigned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (aid, role_id),
			FOREIGN KEY (role_id) REFERENCES roles(role_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_assignments_by_aid
		ON user_role_assignments(aid)`,

		// Allow/deny lists, indexed by owner for O(1) membership reads
		`CREATE TABLE IF NOT EXISTS allow_list_entries (
			owner_aid VARCHAR(255) NOT NULL,
			other_aid VARCHAR(255) NOT NULL,
			added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			note TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (owner_aid, other_aid)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_allow_by_owner
		ON allow_list_entries(owner_aid)`,

		`CREATE TABLE IF NOT EXISTS deny_list_entries (
			owner_aid VARCHAR(255) NOT NULL,
			other_aid VARCHAR(255) NOT NULL,
			added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			note TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (owner_aid, other_aid)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_deny_by_owner
		ON deny_list_entries(owner_aid)`,

		// Verified message records: ciphertext envelope plus audit
		// anchors, never plaintext
		`CREATE TABLE IF NOT EXISTS messages (
			message_id VARCHAR(255) PRIMARY KEY,
			group_id VARCHAR(255) NOT NULL,
			sender_aid VARCHAR(255) NOT NULL,
			envelope JSONB NOT NULL,
			ciphertext_hash CHAR(64) NOT NULL,
			envelope_hash CHAR(64) NOT NULL,
			signatures JSONB NOT NULL,
			ksn INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_by_group
		ON messages(group_id, created_at DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_expiry
		ON messages(expires_at)`,

		// Recipient fan-out rows so inbox listing hits an index instead
		// of scanning envelopes
		`CREATE TABLE IF NOT EXISTS message_recipients (
			message_id VARCHAR(255) NOT NULL,
			aid VARCHAR(255) NOT NULL,
			PRIMARY KEY (message_id, aid),
			FOREIGN KEY (message_id) REFERENCES messages(message_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_recipients_by_aid
		ON message_recipients(aid, message_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
