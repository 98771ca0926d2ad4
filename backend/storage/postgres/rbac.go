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

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/sealchat/sealcore/backend/models"
)

func (s *Store) CreateRole(ctx context.Context, role models.Role) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (role_id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id) DO UPDATE SET name = $2`,
		role.RoleID, role.Name, time.Now())
	return err
}

func (s *Store) CreatePermission(ctx context.Context, perm models.Permission) error {
	var dataJSON any
	if perm.Data != nil {
		encoded, err := json.Marshal(perm.Data)
		if err != nil {
			return err
		}
		dataJSON = encoded
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO permissions (permission_id, key, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (permission_id) DO UPDATE SET key = $2, data = $3`,
		perm.PermissionID, perm.Key, dataJSON)
	return err
}

func (s *Store) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_grants (role_id, permission_id, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, permission_id) DO NOTHING`,
		roleID, permissionID, time.Now())
	return err
}

func (s *Store) AssignRole(ctx context.Context, aid, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_role_assignments (aid, role_id, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (aid, role_id) DO NOTHING`,
		aid, roleID, time.Now())
	return err
}

func (s *Store) UnassignRole(ctx context.Context, aid, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM user_role_assignments
		WHERE aid = $1 AND role_id = $2`, aid, roleID)
	return err
}

func (s *Store) GetRolesForIdentity(ctx context.Context, aid string) ([]models.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.role_id, r.name, r.created_at
		FROM roles r
		JOIN user_role_assignments a ON a.role_id = r.role_id
		WHERE a.aid = $1
		ORDER BY r.role_id`, aid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.RoleID, &role.Name, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) GetPermissionsForRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.permission_id, p.key, p.data
		FROM permissions p
		JOIN role_grants g ON g.permission_id = p.permission_id
		WHERE g.role_id = ANY($1)
		ORDER BY p.permission_id`, pq.Array(roleIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var perm models.Permission
		var dataJSON []byte
		if err := rows.Scan(&perm.PermissionID, &perm.Key, &dataJSON); err != nil {
			return nil, err
		}
		if dataJSON != nil {
			if err := json.Unmarshal(dataJSON, &perm.Data); err != nil {
				return nil, err
			}
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}
