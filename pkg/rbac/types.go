package rbac

import (
	"fmt"
	"time"
)

// Permission is a capability granted by a role
type Permission string

const (
	// PermissionAll grants every permission
	PermissionAll Permission = "*"

	PermissionSEO         Permission = "seo"
	PermissionBanners     Permission = "banners"
	PermissionScripts     Permission = "scripts"
	PermissionUsersView   Permission = "users_view"
	PermissionUsersManage Permission = "users_manage"
	PermissionRolesManage Permission = "roles_manage"
	PermissionLogsView    Permission = "logs_view"
)

// PermissionInfo describes a permission for the role editor
type PermissionInfo struct {
	Permission  Permission `json:"id"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Assignable  bool       `json:"assignable"`
}

var catalog = []PermissionInfo{
	{PermissionSEO, "SEO", "Edit SEO fields of content pages", true},
	{PermissionBanners, "Banners", "Manage banner content", true},
	{PermissionScripts, "Scripts", "Manage script snippets", true},
	{PermissionUsersView, "View users", "List admin accounts", true},
	{PermissionUsersManage, "Manage users", "Create, update and delete admin accounts", false},
	{PermissionRolesManage, "Manage roles", "Create, update and delete roles", false},
	{PermissionLogsView, "View audit log", "Read and export the audit log", false},
}

// Catalog returns the recognised permissions in display order
func Catalog() []PermissionInfo {
	out := make([]PermissionInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ParsePermission validates s against the catalog. The wildcard is accepted.
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if p == PermissionAll {
		return p, nil
	}
	for _, info := range catalog {
		if info.Permission == p {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown permission %q", s)
}

// IsAssignable reports whether p may be granted to a custom role
func IsAssignable(p Permission) bool {
	for _, info := range catalog {
		if info.Permission == p {
			return info.Assignable
		}
	}
	return false
}

// System role names
const (
	RoleSuperAdmin     = "super_admin"
	RoleAdmin          = "admin"
	RoleContentManager = "content_manager"
	RoleSEOManager     = "seo_manager"
)

// Role is a named bundle of permissions
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	DisplayName string       `json:"displayName"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	IsSystem    bool         `json:"isSystem"`
	UpdatedBy   string       `json:"updatedBy,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Has reports whether the role grants p, directly or through the wildcard
func (r *Role) Has(p Permission) bool {
	for _, granted := range r.Permissions {
		if granted == PermissionAll || granted == p {
			return true
		}
	}
	return false
}

// SystemRoles returns the seed definitions of the built-in roles
func SystemRoles() []Role {
	return []Role{
		{
			ID:          RoleSuperAdmin,
			Name:        RoleSuperAdmin,
			DisplayName: "Super Admin",
			Description: "Full access, including user and role management",
			Permissions: []Permission{PermissionAll},
			IsSystem:    true,
		},
		{
			ID:          RoleAdmin,
			Name:        RoleAdmin,
			DisplayName: "Admin",
			Description: "Content administration and read access to users",
			Permissions: []Permission{PermissionSEO, PermissionBanners, PermissionScripts, PermissionUsersView},
			IsSystem:    true,
		},
		{
			ID:          RoleContentManager,
			Name:        RoleContentManager,
			DisplayName: "Content Manager",
			Description: "SEO and banner content",
			Permissions: []Permission{PermissionSEO, PermissionBanners},
			IsSystem:    true,
		},
		{
			ID:          RoleSEOManager,
			Name:        RoleSEOManager,
			DisplayName: "SEO Manager",
			Description: "SEO fields only",
			Permissions: []Permission{PermissionSEO},
			IsSystem:    true,
		},
	}
}

// SystemRole returns the seed definition for name
func SystemRole(name string) (Role, bool) {
	for _, r := range SystemRoles() {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// IsSystemRole reports whether name is one of the built-in roles
func IsSystemRole(name string) bool {
	_, ok := SystemRole(name)
	return ok
}
