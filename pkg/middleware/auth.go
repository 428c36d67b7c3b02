package middleware

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/cmsadmin/pkg/auth"
	"github.com/platinummonkey/cmsadmin/pkg/contextkeys"
	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
)

// SessionValidator validates session tokens. *auth.SessionCodec satisfies it.
type SessionValidator interface {
	Validate(token string) (*auth.Claim, error)
}

// Authenticator resolves the admin_session cookie into an auth context
type Authenticator struct {
	sessions SessionValidator
	metrics  *observability.Metrics
	optional bool // If true, allow requests without a valid session
}

// NewAuthenticator creates middleware that rejects requests without a valid session
func NewAuthenticator(sessions SessionValidator, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{sessions: sessions, metrics: metrics}
}

// Optional returns a copy that lets anonymous requests through
func (m *Authenticator) Optional() *Authenticator {
	cp := *m
	cp.optional = true
	return &cp
}

// Handler wraps an HTTP handler with session authentication.
// The session is decoded locally; no store lookup takes place.
func (m *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.SessionCookieName)
		if err != nil || cookie.Value == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.metrics.SessionRejectsTotal.WithLabelValues("missing").Inc()
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		claim, err := m.sessions.Validate(cookie.Value)
		if err != nil {
			reason, message := "malformed", "invalid session"
			if errors.Is(err, auth.ErrSessionExpired) {
				reason, message = "expired", "session expired"
			}
			m.metrics.SessionRejectsTotal.WithLabelValues(reason).Inc()
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, message)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), &auth.AuthContext{Claim: *claim})
		ctx = contextkeys.WithUserID(ctx, claim.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := contextkeys.GetAuth(r.Context()).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequirePermission creates middleware that checks the session role for perm.
// It must run behind Authenticator.Handler.
func RequirePermission(checker rbac.Checker, perm rbac.Permission, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			ok, err := checker.HasPermission(r.Context(), authCtx.Role(), perm)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).
					WithField("permission", string(perm)).
					Error("permission check failed")
				httputil.WriteInternalError(w)
				return
			}
			if !ok {
				metrics.PermissionDenialsTotal.WithLabelValues(string(perm)).Inc()
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
