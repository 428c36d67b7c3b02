package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/auth"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
)

type userResponse struct {
	User auth.AdminUser `json:"user"`
}

func TestUsers_Lifecycle(t *testing.T) {
	f := newFixture(t)
	root, token := f.addUser("root", rbac.RoleSuperAdmin)

	rec := f.do("POST", "/api/admin/users", map[string]string{
		"username": "Dave",
		"email":    "dave@example.com",
		"password": "dave-password",
		"role":     rbac.RoleContentManager,
		"name":     "Dave",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dave-password")
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	var created userResponse
	decode(t, rec, &created)
	assert.Equal(t, "dave", created.User.Username)
	assert.Equal(t, root.ID, created.User.CreatedBy)

	rec = f.do("GET", "/api/admin/users", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Users []auth.AdminUser `json:"users"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Users, 2)

	rec = f.do("PUT", "/api/admin/users/"+created.User.ID, map[string]string{"role": rbac.RoleSEOManager}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated userResponse
	decode(t, rec, &updated)
	assert.Equal(t, rbac.RoleSEOManager, updated.User.Role)

	rec = f.do("DELETE", "/api/admin/users/"+created.User.ID, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := f.users.Get(context.Background(), created.User.ID)
	assert.Error(t, err)

	assert.ElementsMatch(t, []audit.Action{
		audit.ActionUserCreate,
		audit.ActionUserUpdate,
		audit.ActionRoleChange,
		audit.ActionUserDelete,
	}, f.actions())
}

func TestUsers_UpdateWithoutRoleChange(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("root", rbac.RoleSuperAdmin)
	target, _ := f.addUser("erin", rbac.RoleAdmin)

	rec := f.do("PUT", "/api/admin/users/"+target.ID, map[string]string{"name": "Erin E."}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []audit.Action{audit.ActionUserUpdate}, f.actions())

	entries, err := f.audit.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	var details map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(entries[0].Details), &details))
	assert.Equal(t, []interface{}{"name"}, details["fields"])
	assert.Equal(t, target.ID, details["targetUserId"])
}

func TestUsers_Errors(t *testing.T) {
	f := newFixture(t)
	root, token := f.addUser("root", rbac.RoleSuperAdmin)
	f.addUser("frank", rbac.RoleAdmin)

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		status  int
		message string
	}{
		{
			name:    "self delete",
			method:  "DELETE",
			path:    "/api/admin/users/" + root.ID,
			status:  http.StatusBadRequest,
			message: "you cannot delete your own account",
		},
		{
			name:    "duplicate username",
			method:  "POST",
			path:    "/api/admin/users",
			body:    map[string]string{"username": "frank", "email": "f2@example.com", "password": "long-enough", "role": rbac.RoleAdmin},
			status:  http.StatusBadRequest,
			message: `username "frank" already exists`,
		},
		{
			name:    "unknown role",
			method:  "POST",
			path:    "/api/admin/users",
			body:    map[string]string{"username": "gina", "email": "gina@example.com", "password": "long-enough", "role": "ghost"},
			status:  http.StatusBadRequest,
			message: `role "ghost" does not exist`,
		},
		{
			name:    "missing user",
			method:  "PUT",
			path:    "/api/admin/users/missing",
			body:    map[string]string{"name": "x"},
			status:  http.StatusNotFound,
			message: `user "missing" not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.body, token)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, errorMessage(t, rec))
		})
	}

	_, err := f.users.Get(context.Background(), root.ID)
	assert.NoError(t, err)
	assert.Empty(t, f.actions())
}

func TestUsers_PermissionGuard(t *testing.T) {
	f := newFixture(t)
	_, adminToken := f.addUser("alice", rbac.RoleAdmin)
	_, contentToken := f.addUser("carol", rbac.RoleContentManager)

	// admin holds users_view but not users_manage
	assert.Equal(t, http.StatusOK, f.do("GET", "/api/admin/users", nil, adminToken).Code)
	rec := f.do("POST", "/api/admin/users", map[string]string{"username": "x"}, adminToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient permissions", errorMessage(t, rec))

	assert.Equal(t, http.StatusForbidden, f.do("GET", "/api/admin/users", nil, contentToken).Code)
}
