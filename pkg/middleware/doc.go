// Package middleware provides HTTP middleware for session authentication,
// permission checks and login rate limiting.
//
// # Middleware Components
//
// Authenticator: admin_session cookie validation
//
//	authn := middleware.NewAuthenticator(sessionCodec, metrics)
//	router.Use(authn.Handler)
//	// Adds *auth.AuthContext to the request; GetAuthContext(r) reads it back
//
// RequirePermission: single permission guard in front of a route
//
//	router.Handle("/roles", middleware.RequirePermission(evaluator, rbac.PermissionRolesManage, metrics)(h))
//
// Login limiters: attempts per client address
//
//	limiter, _ := middleware.NewMemoryLoginLimiter(middleware.DefaultLoginRateLimitConfig())
//	limiter, _ := middleware.NewRedisLoginLimiter(redisClient, cfg, "cmsadmin:login")
//
// # Rate Limiting
//
// Default: 10 login attempts per client per 15 minutes.
// The memory limiter keeps at most 10000 clients and evicts the least recently seen.
// The Redis limiter fails open when Redis is unavailable.
//
// # Related Packages
//
//   - pkg/auth: session validation
//   - pkg/rbac: permission checking
package middleware
