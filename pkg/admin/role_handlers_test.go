package admin

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
)

type roleResponse struct {
	Role rbac.Role `json:"role"`
}

func TestRoles_List(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("root", rbac.RoleSuperAdmin)

	rec := f.do("GET", "/api/admin/roles", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Roles       []rbac.Role           `json:"roles"`
		Permissions []rbac.PermissionInfo `json:"permissions"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Roles, len(rbac.SystemRoles()))
	assert.Equal(t, rbac.Catalog(), body.Permissions)
}

func TestRoles_CreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("root", rbac.RoleSuperAdmin)

	rec := f.do("POST", "/api/admin/roles", map[string]interface{}{
		"name":        "banner_editor",
		"displayName": "Banner Editor",
		"permissions": []string{"banners"},
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created roleResponse
	decode(t, rec, &created)
	assert.Equal(t, "banner_editor", created.Role.Name)
	assert.Equal(t, "root", created.Role.UpdatedBy)

	rec = f.do("PUT", "/api/admin/roles/"+created.Role.ID, map[string]interface{}{
		"permissions": []string{"banners", "seo"},
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated roleResponse
	decode(t, rec, &updated)
	assert.ElementsMatch(t, []rbac.Permission{rbac.PermissionBanners, rbac.PermissionSEO}, updated.Role.Permissions)

	rec = f.do("DELETE", "/api/admin/roles/"+created.Role.ID, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	exists, err := f.roles.Exists(context.Background(), "banner_editor")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ElementsMatch(t, []audit.Action{
		audit.ActionRoleCreate,
		audit.ActionRoleUpdate,
		audit.ActionRoleDelete,
	}, f.actions())
}

func TestRoles_DeleteSystemRoleInUse(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("root", rbac.RoleSuperAdmin)
	f.addUser("sam", rbac.RoleSEOManager)

	rec := f.do("DELETE", "/api/admin/roles/"+rbac.RoleSEOManager, nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	exists, err := f.roles.Exists(context.Background(), rbac.RoleSEOManager)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Empty(t, f.actions())
}

func TestRoles_DeleteCustomRoleInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.addUser("root", rbac.RoleSuperAdmin)

	role, err := f.roles.Create(ctx, rbac.CreateRoleInput{
		Name:        "seo_editor",
		DisplayName: "SEO Editor",
		Permissions: []rbac.Permission{rbac.PermissionSEO},
	}, "root")
	require.NoError(t, err)
	user, _ := f.addUser("sam", "seo_editor")

	rec := f.do("DELETE", "/api/admin/roles/"+role.ID, nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `role "seo_editor" is assigned to 1 user(s)`, errorMessage(t, rec))

	after, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "seo_editor", after.Role)
	exists, err := f.roles.Exists(ctx, "seo_editor")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Empty(t, f.actions())
}

func TestRoles_RequireRolesManage(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("alice", rbac.RoleAdmin)

	for _, tt := range []struct{ method, path string }{
		{"GET", "/api/admin/roles"},
		{"POST", "/api/admin/roles"},
		{"PUT", "/api/admin/roles/" + rbac.RoleSEOManager},
		{"DELETE", "/api/admin/roles/" + rbac.RoleSEOManager},
	} {
		t.Run(tt.method, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, map[string]string{}, token)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}
