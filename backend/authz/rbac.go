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

// Package authz gates verified identities: role-based permission claims
// and per-identity allow/deny lists.
package authz

import (
	"context"
	"sort"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/storage"
)

// ClaimData is the merged scope of one permission key across all of an
// identity's roles. Global means at least one grant carried no data
// payload, which allows every target.
type ClaimData struct {
	Global bool     `json:"global"`
	Data   []string `json:"data,omitempty"`
}

// Claims is a permission-claim set keyed by permission key.
type Claims map[string]ClaimData

// Include evaluates one claim: absent key denies; global allows; scoped
// data is handed to pred.
func (c Claims) Include(key string, pred func(data []string) bool) bool {
	claim, ok := c[key]
	if !ok {
		return false
	}
	if claim.Global {
		return true
	}
	return pred(claim.Data)
}

// Allows is the common membership predicate: the claim must be global or
// list target in its data scope.
func (c Claims) Allows(key, target string) bool {
	return c.Include(key, func(data []string) bool {
		for _, d := range data {
			if d == target {
				return true
			}
		}
		return false
	})
}

// RBACResolver aggregates role assignments into claim sets.
type RBACResolver struct {
	store storage.RBACStore
}

func NewRBACResolver(store storage.RBACStore) *RBACResolver {
	return &RBACResolver{store: store}
}

// ResolveClaims gathers the identity's roles, then the permissions granted
// to those roles, and merges them into one claim set. When several roles
// grant the same permission key with different data scopes, the scopes
// merge as a union; a grant with no data payload makes the claim global.
// Last-write-wins would silently drop scopes and is explicitly not what
// this does.
func (r *RBACResolver) ResolveClaims(ctx context.Context, aid string) (Claims, error) {
	roles, err := r.store.GetRolesForIdentity(ctx, aid)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return Claims{}, nil
	}

	roleIDs := make([]string, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.RoleID)
	}
	perms, err := r.store.GetPermissionsForRoles(ctx, roleIDs)
	if err != nil {
		return nil, err
	}

	claims := make(Claims, len(perms))
	for _, perm := range perms {
		existing, present := claims[perm.Key]
		if perm.Data == nil {
			existing.Global = true
			existing.Data = nil
			claims[perm.Key] = existing
			continue
		}
		if present && existing.Global {
			continue
		}
		existing.Data = unionScopes(existing.Data, perm.Data)
		claims[perm.Key] = existing
	}
	return claims, nil
}

// Check resolves the identity's claims and requires the (key, target)
// pair, returning PermissionDenied otherwise.
func (r *RBACResolver) Check(ctx context.Context, aid, key, target string) (Claims, error) {
	claims, err := r.ResolveClaims(ctx, aid)
	if err != nil {
		return nil, err
	}
	if !claims.Allows(key, target) {
		return nil, apperrors.PermissionDenied("missing permission " + key)
	}
	return claims, nil
}

func unionScopes(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if !seen[item] {
				seen[item] = true
				merged = append(merged, item)
			}
		}
	}
	sort.Strings(merged)
	return merged
}
