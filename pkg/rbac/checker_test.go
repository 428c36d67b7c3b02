package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

func newTestManager(t *testing.T) (*Manager, *Evaluator, storage.Store) {
	t.Helper()
	db := storage.NewMemoryStore()
	store := NewStore(db)
	m := NewManager(db, store)
	m.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return m, NewEvaluator(store), db
}

func TestEvaluator_SeedFallback(t *testing.T) {
	_, eval, _ := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		role string
		perm Permission
		want bool
	}{
		{RoleSuperAdmin, PermissionRolesManage, true},
		{RoleSuperAdmin, PermissionLogsView, true},
		{RoleAdmin, PermissionUsersView, true},
		{RoleAdmin, PermissionUsersManage, false},
		{RoleAdmin, PermissionLogsView, false},
		{RoleContentManager, PermissionBanners, true},
		{RoleContentManager, PermissionLogsView, false},
		{RoleSEOManager, PermissionSEO, true},
		{RoleSEOManager, PermissionBanners, false},
		{"nobody", PermissionSEO, false},
	}

	for _, tt := range tests {
		got, err := eval.HasPermission(ctx, tt.role, tt.perm)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s", tt.role, tt.perm)
	}
}

func TestEvaluator_ReadsLiveRole(t *testing.T) {
	m, eval, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.SeedSystemRoles(ctx)
	require.NoError(t, err)

	ok, err := eval.HasPermission(ctx, RoleSEOManager, PermissionBanners)
	require.NoError(t, err)
	assert.False(t, ok)

	perms := []Permission{PermissionSEO, PermissionBanners}
	_, err = m.Update(ctx, RoleSEOManager, UpdateRoleInput{Permissions: &perms}, "u1")
	require.NoError(t, err)

	ok, err = eval.HasPermission(ctx, RoleSEOManager, PermissionBanners)
	require.NoError(t, err)
	assert.True(t, ok, "permission edits apply on the next check")
}

func TestEvaluator_CustomRole(t *testing.T) {
	m, eval, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateRoleInput{
		Name:        "script_editor",
		DisplayName: "Script Editor",
		Permissions: []Permission{PermissionScripts},
	}, "u1")
	require.NoError(t, err)

	ok, err := eval.HasPermission(ctx, "script_editor", PermissionScripts)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, info := range Catalog() {
		if info.Permission == PermissionScripts {
			continue
		}
		ok, err := eval.HasPermission(ctx, "script_editor", info.Permission)
		require.NoError(t, err)
		assert.False(t, ok, info.Permission)
	}
}

func TestEvaluator_EffectivePermissions(t *testing.T) {
	_, eval, _ := newTestManager(t)
	ctx := context.Background()

	all, err := eval.EffectivePermissions(ctx, RoleSuperAdmin)
	require.NoError(t, err)
	assert.Len(t, all, len(Catalog()))

	seo, err := eval.EffectivePermissions(ctx, RoleSEOManager)
	require.NoError(t, err)
	assert.Equal(t, []Permission{PermissionSEO}, seo)

	none, err := eval.EffectivePermissions(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, none)
}

type failingReader struct {
	storage.Store
}

func (failingReader) Find(context.Context, storage.Collection, storage.Query) ([]storage.Record, error) {
	return nil, errors.New("connection refused")
}

func TestEvaluator_StoreFailure(t *testing.T) {
	eval := NewEvaluator(NewStore(failingReader{storage.NewMemoryStore()}))

	ok, err := eval.HasPermission(context.Background(), RoleAdmin, PermissionSEO)
	assert.Error(t, err)
	assert.False(t, ok)

	// super_admin never needs the store
	ok, err = eval.HasPermission(context.Background(), RoleSuperAdmin, PermissionSEO)
	assert.NoError(t, err)
	assert.True(t, ok)
}
