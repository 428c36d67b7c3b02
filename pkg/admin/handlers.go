package admin

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/auth"
	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/middleware"
	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
)

// Deps holds the components the admin API dispatches to
type Deps struct {
	Users         *auth.UserService
	Authenticator *auth.Authenticator
	Sessions      *auth.SessionCodec
	Bootstrapper  *auth.Bootstrapper
	Roles         *rbac.Manager
	Evaluator     *rbac.Evaluator
	Audit         *audit.Logger
	Limiter       middleware.LoginLimiter
	Metrics       *observability.Metrics
	SecureCookies bool
	// ClientIP resolves audit addresses and login limiter keys. Nil trusts no proxy.
	ClientIP *httputil.ClientIPResolver
}

// Handlers serves the /api/admin endpoints
type Handlers struct {
	users         *auth.UserService
	authenticator *auth.Authenticator
	sessions      *auth.SessionCodec
	bootstrapper  *auth.Bootstrapper
	roles         *rbac.Manager
	evaluator     *rbac.Evaluator
	audit         *audit.Logger
	limiter       middleware.LoginLimiter
	metrics       *observability.Metrics
	secureCookies bool
	clientIP      *httputil.ClientIPResolver
}

// NewHandlers creates the admin API handlers
func NewHandlers(deps Deps) *Handlers {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Handlers{
		users:         deps.Users,
		authenticator: deps.Authenticator,
		sessions:      deps.Sessions,
		bootstrapper:  deps.Bootstrapper,
		roles:         deps.Roles,
		evaluator:     deps.Evaluator,
		audit:         deps.Audit,
		limiter:       deps.Limiter,
		metrics:       metrics,
		secureCookies: deps.SecureCookies,
		clientIP:      deps.ClientIP,
	}
}

// RegisterRoutes registers the admin API under /api/admin.
// Every privileged route goes through the same session and permission guard.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/admin").Subrouter()
	api.Use(httputil.ContentTypeMiddleware)

	authn := middleware.NewAuthenticator(h.sessions, h.metrics)
	authenticated := func(fn http.HandlerFunc) http.Handler {
		return authn.Handler(fn)
	}
	guarded := func(perm rbac.Permission, fn http.HandlerFunc) http.Handler {
		return authn.Handler(middleware.RequirePermission(h.evaluator, perm, h.metrics)(fn))
	}

	// Session routes
	api.HandleFunc("/login", h.login).Methods("POST")
	api.Handle("/logout", authn.Optional().Handler(http.HandlerFunc(h.logout))).Methods("POST")
	api.Handle("/me", authenticated(h.me)).Methods("GET")
	api.Handle("/change-password", authenticated(h.changePassword)).Methods("POST")

	// Audit log routes
	api.Handle("/logs", guarded(rbac.PermissionLogsView, h.listLogs)).Methods("GET")
	api.Handle("/logs", authenticated(h.createLog)).Methods("POST")
	api.Handle("/logs/export", guarded(rbac.PermissionLogsView, h.exportLogs)).Methods("GET")

	// Role routes
	api.Handle("/roles", guarded(rbac.PermissionRolesManage, h.listRoles)).Methods("GET")
	api.Handle("/roles", guarded(rbac.PermissionRolesManage, h.createRole)).Methods("POST")
	api.Handle("/roles/{id}", guarded(rbac.PermissionRolesManage, h.updateRole)).Methods("PUT")
	api.Handle("/roles/{id}", guarded(rbac.PermissionRolesManage, h.deleteRole)).Methods("DELETE")

	// User routes
	api.Handle("/users", guarded(rbac.PermissionUsersView, h.listUsers)).Methods("GET")
	api.Handle("/users", guarded(rbac.PermissionUsersManage, h.createUser)).Methods("POST")
	api.Handle("/users/{id}", guarded(rbac.PermissionUsersManage, h.updateUser)).Methods("PUT")
	api.Handle("/users/{id}", guarded(rbac.PermissionUsersManage, h.deleteUser)).Methods("DELETE")
}

// writeError logs internal failures before mapping err to a response
func writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if httputil.KindOf(err) == httputil.KindInternal {
		observability.FromContext(r.Context()).WithError(err).Error(message)
	}
	httputil.WriteAppError(w, err)
}

// record appends an audit entry for the authenticated caller of r
func (h *Handlers) record(r *http.Request, action audit.Action, details map[string]interface{}) bool {
	return h.audit.Append(r.Context(), audit.NewEntry(callerOf(r), action, audit.DetailsOf(details), h.requestOf(r)))
}

func callerOf(r *http.Request) audit.Actor {
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		return audit.Actor{}
	}
	return actorOf(ac.Claim.Identity)
}

func actorOf(id auth.Identity) audit.Actor {
	return audit.Actor{
		UserID: id.ID,
		Name:   id.Name,
		Email:  id.Email,
		Role:   id.Role,
	}
}

func (h *Handlers) requestOf(r *http.Request) audit.Request {
	return audit.Request{
		IPAddress: h.clientIP.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
