package rbac

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

var roleNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// CreateRoleInput holds the fields of a new role
type CreateRoleInput struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"displayName"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// UpdateRoleInput holds a partial role update. Nil fields are left unchanged.
type UpdateRoleInput struct {
	DisplayName *string       `json:"displayName,omitempty"`
	Description *string       `json:"description,omitempty"`
	Permissions *[]Permission `json:"permissions,omitempty"`
}

// Manager implements role administration
type Manager struct {
	db    storage.Store
	store *Store
	now   func() time.Time
}

// NewManager creates a new role manager
func NewManager(db storage.Store, store *Store) *Manager {
	return &Manager{db: db, store: store, now: time.Now}
}

// List returns all roles
func (m *Manager) List(ctx context.Context) ([]Role, error) {
	roles, err := m.store.ListRoles(ctx)
	if err != nil {
		return nil, httputil.WrapError(err, "failed to list roles")
	}
	return roles, nil
}

// Create adds a custom role. Name uniqueness is enforced by the store's unique index.
func (m *Manager) Create(ctx context.Context, in CreateRoleInput, updatedBy string) (*Role, error) {
	name := strings.TrimSpace(in.Name)
	if err := httputil.Validate(
		httputil.Required("name", name),
		httputil.Required("displayName", in.DisplayName),
	); err != nil {
		return nil, err
	}
	if !roleNameRe.MatchString(name) {
		return nil, httputil.NewError(httputil.KindValidation,
			"name must start with a letter and contain only lowercase letters, digits and underscores")
	}
	perms, err := normalizePermissions(in.Permissions)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	role := &Role{
		ID:          uuid.NewString(),
		Name:        name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: strings.TrimSpace(in.Description),
		Permissions: perms,
		UpdatedBy:   updatedBy,
		UpdatedAt:   now,
		CreatedAt:   now,
	}

	err = m.db.Update(ctx, func(tx storage.Tx) error {
		return putRole(ctx, tx, role, false)
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, httputil.Errorf(httputil.KindConflict, "role %q already exists", name)
	}
	if err != nil {
		return nil, httputil.WrapError(err, "failed to create role")
	}
	return role, nil
}

// Update applies a partial update to the role with id roleID
func (m *Manager) Update(ctx context.Context, roleID string, in UpdateRoleInput, updatedBy string) (*Role, error) {
	var perms []Permission
	if in.Permissions != nil {
		var err error
		if perms, err = normalizePermissions(*in.Permissions); err != nil {
			return nil, err
		}
	}
	if in.DisplayName != nil && strings.TrimSpace(*in.DisplayName) == "" {
		return nil, httputil.NewError(httputil.KindValidation, "displayName is required")
	}

	var updated *Role
	err := m.db.Update(ctx, func(tx storage.Tx) error {
		role, err := getRole(ctx, tx, roleID)
		if err != nil {
			return err
		}

		if in.Permissions != nil {
			if role.Name == RoleSuperAdmin {
				return httputil.NewError(httputil.KindConflict, "permissions of super_admin cannot be changed")
			}
			role.Permissions = perms
		}
		if in.DisplayName != nil {
			role.DisplayName = strings.TrimSpace(*in.DisplayName)
		}
		if in.Description != nil {
			role.Description = strings.TrimSpace(*in.Description)
		}
		role.UpdatedBy = updatedBy
		role.UpdatedAt = m.now().UTC()

		updated = role
		return putRole(ctx, tx, role, true)
	})
	if err != nil {
		return nil, classify(err, roleID, "failed to update role")
	}
	return updated, nil
}

// Delete removes a custom role that no user references.
// The reference check and the delete run in one atomic update.
func (m *Manager) Delete(ctx context.Context, roleID string) error {
	err := m.db.Update(ctx, func(tx storage.Tx) error {
		role, err := getRole(ctx, tx, roleID)
		if err != nil {
			return err
		}
		if role.IsSystem || IsSystemRole(role.Name) {
			return httputil.Errorf(httputil.KindConflict, "system role %q cannot be deleted", role.Name)
		}

		inUse, err := tx.Count(ctx, storage.CollectionUsers, storage.Filter{"role": role.Name})
		if err != nil {
			return fmt.Errorf("failed to count users with role %q: %w", role.Name, err)
		}
		if inUse > 0 {
			return httputil.Errorf(httputil.KindConflict, "role %q is assigned to %d user(s)", role.Name, inUse)
		}

		return tx.Delete(ctx, storage.CollectionRoles, role.ID)
	})
	if err != nil {
		return classify(err, roleID, "failed to delete role")
	}
	return nil
}

// SeedSystemRoles inserts the built-in roles when none of them exist yet.
// Roles that were customised are never overwritten.
func (m *Manager) SeedSystemRoles(ctx context.Context) (bool, error) {
	seeded := false
	err := m.db.Update(ctx, func(tx storage.Tx) error {
		for _, role := range SystemRoles() {
			if _, err := getRole(ctx, tx, role.ID); err == nil {
				return nil
			} else if !isNotFound(err) {
				return err
			}
		}

		now := m.now().UTC()
		for _, role := range SystemRoles() {
			role := role
			role.CreatedAt = now
			role.UpdatedAt = now
			role.UpdatedBy = "system"
			if err := putRole(ctx, tx, &role, false); err != nil {
				return fmt.Errorf("failed to seed role %q: %w", role.Name, err)
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed system roles: %w", err)
	}
	return seeded, nil
}

// Exists reports whether a role named name can be assigned to a user
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	return m.ExistsIn(ctx, m.db, name)
}

// ExistsIn is Exists reading through r, typically the tx of an enclosing update
func (m *Manager) ExistsIn(ctx context.Context, r storage.Reader, name string) (bool, error) {
	_, err := getRoleByName(ctx, r, name)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return IsSystemRole(name), nil
	}
	return false, err
}

// Catalog returns the permission catalog
func (m *Manager) Catalog() []PermissionInfo {
	return Catalog()
}

func normalizePermissions(in []Permission) ([]Permission, error) {
	if len(in) == 0 {
		return nil, httputil.NewError(httputil.KindValidation, "permissions are required")
	}

	requested := make(map[Permission]bool, len(in))
	for _, p := range in {
		if _, err := ParsePermission(string(p)); err != nil {
			return nil, httputil.Errorf(httputil.KindValidation, "unknown permission %q", p)
		}
		if !IsAssignable(p) {
			return nil, httputil.Errorf(httputil.KindValidation, "permission %q cannot be assigned to a role", p)
		}
		requested[p] = true
	}

	out := make([]Permission, 0, len(requested))
	for _, info := range catalog {
		if requested[info.Permission] {
			out = append(out, info.Permission)
		}
	}
	return out, nil
}

func classify(err error, roleID, message string) error {
	var appErr *httputil.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case isNotFound(err):
		return httputil.Errorf(httputil.KindNotFound, "role %q not found", roleID)
	default:
		return httputil.WrapError(err, message)
	}
}
