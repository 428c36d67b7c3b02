package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/auth"
	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/middleware"
	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
)

// loginResponse is returned by a successful login
type loginResponse struct {
	Success   bool          `json:"success"`
	User      auth.Identity `json:"user"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// meResponse describes the current session
type meResponse struct {
	User        auth.Identity     `json:"user"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	Permissions []rbac.Permission `json:"permissions"`
}

// login handles POST /api/admin/login
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w,
		httputil.Required("username", req.Username),
		httputil.Required("password", req.Password),
	) {
		return
	}

	ctx := r.Context()
	logger := observability.FromContext(ctx)

	if _, err := h.bootstrapper.EnsureSuperAdmin(ctx); err != nil {
		logger.WithError(err).Error("super admin bootstrap failed")
	}

	allowed, err := h.limiter.Allow(ctx, "ip:"+h.clientIP.ClientIP(r))
	if err != nil {
		logger.WithError(err).Warn("login rate limiter unavailable")
	}
	if !allowed {
		h.metrics.RateLimitRejections.WithLabelValues(h.limiter.Backend()).Inc()
		h.metrics.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
		httputil.WriteTooManyRequests(w, "too many login attempts, try again later")
		return
	}

	identity, err := h.authenticator.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
			h.audit.Append(ctx, audit.NewEntry(audit.Actor{}, audit.ActionLoginFailed,
				audit.DetailsOf(map[string]interface{}{"username": req.Username}), h.requestOf(r)))
		} else {
			h.metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		}
		writeError(w, r, err, "login failed")
		return
	}

	token, claim, err := h.sessions.Issue(*identity)
	if err != nil {
		h.metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		writeError(w, r, httputil.WrapError(err, "failed to issue session"), "login failed")
		return
	}

	http.SetCookie(w, auth.SessionCookie(token, h.secureCookies))
	h.audit.Append(ctx, audit.NewEntry(actorOf(*identity), audit.ActionLogin, "", h.requestOf(r)))
	h.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	httputil.WriteSuccess(w, loginResponse{
		Success:   true,
		User:      *identity,
		ExpiresAt: claim.ExpiresAt,
	})
}

// logout handles POST /api/admin/logout
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if middleware.GetAuthContext(r) != nil {
		h.record(r, audit.ActionLogout, nil)
	}
	http.SetCookie(w, auth.ClearSessionCookie(h.secureCookies))
	httputil.WriteSuccess(w, map[string]bool{"success": true})
}

// me handles GET /api/admin/me
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuthContext(r)

	perms, err := h.evaluator.EffectivePermissions(r.Context(), ac.Role())
	if err != nil {
		writeError(w, r, httputil.WrapError(err, "failed to resolve permissions"), "me failed")
		return
	}
	if perms == nil {
		perms = []rbac.Permission{}
	}

	httputil.WriteSuccess(w, meResponse{
		User:        ac.Claim.Identity,
		ExpiresAt:   ac.Claim.ExpiresAt,
		Permissions: perms,
	})
}

// changePassword handles POST /api/admin/change-password
func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ac := middleware.GetAuthContext(r)
	if err := h.users.ChangePassword(r.Context(), ac.UserID(), req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, r, err, "change password failed")
		return
	}

	h.record(r, audit.ActionPasswordChange, nil)
	httputil.WriteSuccess(w, map[string]interface{}{
		"success": true,
		"message": "password updated",
	})
}
