// Package audit records privileged administrative actions.
//
// # Overview
//
// Every entry lands in the admin_logs collection and is never updated or
// deleted. Writes are best effort: a failing store is logged and counted in
// cmsadmin_audit_write_failures_total but does not fail the action being
// recorded.
//
// # Actions
//
// Authentication: login, login_failed, logout, password_change
// Users: user_create, user_update, user_delete
// Roles: role_create, role_update, role_delete, role_change
// Content: content_create, content_update, content_delete
// Custom: custom:<text> where text matches [a-z0-9_.-]{1,64}
//
// # Usage Example
//
//	entry := audit.NewEntry(actor, audit.ActionUserCreate,
//		audit.DetailsOf(map[string]interface{}{"username": "carol"}),
//		audit.Request{IPAddress: ip, UserAgent: ua})
//	logger.Append(ctx, entry)
//
//	entries, err := logger.Recent(ctx, 50)
//
// Export and archive:
//
//	err := audit.Export(w, entries, audit.ExportFormatCSV)
//	result, err := archiver.Archive(ctx, entries, audit.ExportFormatNDJSON)
package audit
