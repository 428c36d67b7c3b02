// Package rbac implements the admin permission model: a closed set of
// permissions plus the wildcard, the role records that bundle them, the
// Evaluator used by the request guard, and the Manager behind the role
// administration endpoints.
//
// # Permissions
//
//	seo, banners, scripts, users_view    assignable to custom roles
//	users_manage, roles_manage, logs_view  only granted through "*"
//
// # System roles
//
// super_admin, admin, content_manager and seo_manager are seeded with
// id == name. They cannot be deleted and super_admin always resolves to
// the wildcard regardless of what is stored.
//
// # Evaluation
//
//	ok, err := evaluator.HasPermission(ctx, claim.Role, rbac.PermissionLogsView)
//
// Roles are read from the store on every call; nothing is cached across
// requests, so permission edits apply to the next request.
package rbac
