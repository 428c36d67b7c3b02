// Package admin exposes the administrative API over HTTP.
//
// # Overview
//
// Handlers dispatch /api/admin requests to the auth, rbac and audit
// packages. Routes other than login and logout pass through the session
// authenticator; privileged routes additionally pass through a single
// permission guard before the handler runs.
//
// # Routes
//
//	POST   /api/admin/login            public, rate limited per client IP
//	POST   /api/admin/logout           session optional
//	GET    /api/admin/me               authenticated
//	POST   /api/admin/change-password  authenticated
//	GET    /api/admin/logs             logs_view
//	POST   /api/admin/logs             authenticated, content_* and custom: actions only
//	GET    /api/admin/logs/export      logs_view
//	GET    /api/admin/roles            roles_manage
//	POST   /api/admin/roles            roles_manage
//	PUT    /api/admin/roles/{id}       roles_manage
//	DELETE /api/admin/roles/{id}       roles_manage
//	GET    /api/admin/users            users_view
//	POST   /api/admin/users            users_manage
//	PUT    /api/admin/users/{id}       users_manage
//	DELETE /api/admin/users/{id}       users_manage
//
// # Usage
//
//	handlers := admin.NewHandlers(admin.Deps{...})
//	router := mux.NewRouter()
//	handlers.RegisterRoutes(router)
package admin
