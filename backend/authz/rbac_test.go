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

package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealchat/sealcore/backend/apperrors"
	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage/memory"
)

type rbacFixture struct {
	store *memory.Store
	rbac  *RBACResolver
}

func newRBACFixture(t *testing.T) *rbacFixture {
	t.Helper()
	store := memory.NewStore()
	return &rbacFixture{store: store, rbac: NewRBACResolver(store)}
}

// grantRole creates a role with the given permissions and assigns it.
func (f *rbacFixture) grantRole(t *testing.T, aid, roleID string, perms ...models.Permission) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateRole(ctx, models.Role{RoleID: roleID, Name: roleID}))
	for _, perm := range perms {
		require.NoError(t, f.store.CreatePermission(ctx, perm))
		require.NoError(t, f.store.GrantPermission(ctx, roleID, perm.PermissionID))
	}
	require.NoError(t, f.store.AssignRole(ctx, aid, roleID))
}

func TestResolveClaimsEmpty(t *testing.T) {
	f := newRBACFixture(t)
	claims, err := f.rbac.ResolveClaims(context.Background(), "Enobody")
	require.NoError(t, err)
	assert.Empty(t, claims)
	assert.False(t, claims.Allows("message/send", "g1"))
}

func TestResolveClaimsScopedGrant(t *testing.T) {
	f := newRBACFixture(t)
	f.grantRole(t, "Euser", "member",
		models.Permission{PermissionID: "p1", Key: "message/send", Data: []string{"g1", "g2"}})

	claims, err := f.rbac.ResolveClaims(context.Background(), "Euser")
	require.NoError(t, err)
	assert.True(t, claims.Allows("message/send", "g1"))
	assert.True(t, claims.Allows("message/send", "g2"))
	assert.False(t, claims.Allows("message/send", "g3"))
	assert.False(t, claims["message/send"].Global)
}

func TestResolveClaimsUnionMerge(t *testing.T) {
	f := newRBACFixture(t)
	f.grantRole(t, "Euser", "roleA",
		models.Permission{PermissionID: "p1", Key: "message/send", Data: []string{"g1"}})
	f.grantRole(t, "Euser", "roleB",
		models.Permission{PermissionID: "p2", Key: "message/send", Data: []string{"g2"}})

	claims, err := f.rbac.ResolveClaims(context.Background(), "Euser")
	require.NoError(t, err)

	// Overlapping keys merge as a union of data scopes. A last-write-wins
	// merge would drop g1 or g2 here.
	assert.True(t, claims.Allows("message/send", "g1"))
	assert.True(t, claims.Allows("message/send", "g2"))
	assert.ElementsMatch(t, []string{"g1", "g2"}, claims["message/send"].Data)
}

func TestResolveClaimsGlobalPromotion(t *testing.T) {
	f := newRBACFixture(t)
	f.grantRole(t, "Euser", "scoped",
		models.Permission{PermissionID: "p1", Key: "message/send", Data: []string{"g1"}})
	f.grantRole(t, "Euser", "admin",
		models.Permission{PermissionID: "p2", Key: "message/send"})

	claims, err := f.rbac.ResolveClaims(context.Background(), "Euser")
	require.NoError(t, err)
	assert.True(t, claims["message/send"].Global)
	assert.True(t, claims.Allows("message/send", "anything-at-all"))
}

func TestResolveClaimsDistinctKeys(t *testing.T) {
	f := newRBACFixture(t)
	f.grantRole(t, "Euser", "member",
		models.Permission{PermissionID: "p1", Key: "message/send", Data: []string{"g1"}},
		models.Permission{PermissionID: "p2", Key: "message/read", Data: []string{"g1"}})

	claims, err := f.rbac.ResolveClaims(context.Background(), "Euser")
	require.NoError(t, err)
	assert.Len(t, claims, 2)
	assert.True(t, claims.Allows("message/read", "g1"))
	assert.False(t, claims.Allows("role/manage", "g1"))
}

func TestCheckDenies(t *testing.T) {
	f := newRBACFixture(t)
	f.grantRole(t, "Euser", "member",
		models.Permission{PermissionID: "p1", Key: "message/send", Data: []string{"g1"}})

	_, err := f.rbac.Check(context.Background(), "Euser", "message/send", "g2")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))

	claims, err := f.rbac.Check(context.Background(), "Euser", "message/send", "g1")
	require.NoError(t, err)
	assert.NotEmpty(t, claims)
}

func TestClaimsIncludePredicate(t *testing.T) {
	claims := Claims{
		"custom/key": {Data: []string{"a:1", "a:2"}},
	}

	hit := claims.Include("custom/key", func(data []string) bool {
		return len(data) == 2
	})
	assert.True(t, hit)

	miss := claims.Include("absent/key", func(data []string) bool { return true })
	assert.False(t, miss, "absent keys deny without consulting the predicate")
}

func TestUnassignRoleRemovesClaims(t *testing.T) {
	f := newRBACFixture(t)
	f.grantRole(t, "Euser", "member",
		models.Permission{PermissionID: "p1", Key: "message/send", Data: []string{"g1"}})

	require.NoError(t, f.store.UnassignRole(context.Background(), "Euser", "member"))

	claims, err := f.rbac.ResolveClaims(context.Background(), "Euser")
	require.NoError(t, err)
	assert.False(t, claims.Allows("message/send", "g1"))
}
