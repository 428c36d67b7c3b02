package admin

import (
	"net/http"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/auth"
	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/middleware"
)

// listUsers handles GET /api/admin/users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, err, "list users failed")
		return
	}
	if users == nil {
		users = []auth.AdminUser{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"users": users})
}

// createUser handles POST /api/admin/users
func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req auth.CreateUserInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	caller := middleware.GetAuthContext(r)
	user, err := h.users.Create(r.Context(), req, caller.UserID())
	if err != nil {
		writeError(w, r, err, "create user failed")
		return
	}

	h.record(r, audit.ActionUserCreate, map[string]interface{}{
		"targetUserId": user.ID,
		"username":     user.Username,
		"role":         user.Role,
	})
	httputil.WriteCreated(w, map[string]interface{}{"user": user})
}

// updateUser handles PUT /api/admin/users/{id}
func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req auth.UpdateUserInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ctx := r.Context()
	before, err := h.users.Get(ctx, id)
	if err != nil {
		writeError(w, r, err, "update user failed")
		return
	}
	user, err := h.users.Update(ctx, id, req)
	if err != nil {
		writeError(w, r, err, "update user failed")
		return
	}

	h.record(r, audit.ActionUserUpdate, map[string]interface{}{
		"targetUserId": user.ID,
		"fields":       changedFields(req),
	})
	if before.Role != user.Role {
		h.record(r, audit.ActionRoleChange, map[string]interface{}{
			"targetUserId": user.ID,
			"from":         before.Role,
			"to":           user.Role,
		})
	}
	httputil.WriteSuccess(w, map[string]interface{}{"user": user})
}

// deleteUser handles DELETE /api/admin/users/{id}
func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	caller := middleware.GetAuthContext(r)
	if err := h.users.Delete(r.Context(), caller.UserID(), id); err != nil {
		writeError(w, r, err, "delete user failed")
		return
	}

	h.record(r, audit.ActionUserDelete, map[string]interface{}{"targetUserId": id})
	httputil.WriteSuccess(w, map[string]bool{"success": true})
}

// changedFields names the fields set in in. Password values are never recorded.
func changedFields(in auth.UpdateUserInput) []string {
	fields := []string{}
	if in.Email != nil {
		fields = append(fields, "email")
	}
	if in.Name != nil {
		fields = append(fields, "name")
	}
	if in.Role != nil {
		fields = append(fields, "role")
	}
	if in.IsActive != nil {
		fields = append(fields, "isActive")
	}
	if in.Password != nil {
		fields = append(fields, "password")
	}
	return fields
}
