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

package models

import (
	"time"
)

// Role is a named bundle of permissions.
type Role struct {
	RoleID    string    `json:"role_id" db:"role_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Permission is a claim key with an optional data scope. A nil Data means
// the permission is global; a non-nil Data restricts it to the listed
// target ids.
type Permission struct {
	PermissionID string   `json:"permission_id" db:"permission_id"`
	Key          string   `json:"key" db:"key"`
	Data         []string `json:"data,omitempty" db:"data"`
}

// RoleGrant links a permission to a role.
type RoleGrant struct {
	RoleID       string    `json:"role_id" db:"role_id"`
	PermissionID string    `json:"permission_id" db:"permission_id"`
	GrantedAt    time.Time `json:"granted_at" db:"granted_at"`
}

// UserRoleAssignment links an identity to a role. Many-to-many; the pair is
// the only uniqueness constraint.
type UserRoleAssignment struct {
	AID        string    `json:"aid" db:"aid"`
	RoleID     string    `json:"role_id" db:"role_id"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`
}
