package admin

import (
	"net/http"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/middleware"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
)

// listRoles handles GET /api/admin/roles
func (h *Handlers) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, r, err, "list roles failed")
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"roles":       roles,
		"permissions": h.roles.Catalog(),
	})
}

// createRole handles POST /api/admin/roles
func (h *Handlers) createRole(w http.ResponseWriter, r *http.Request) {
	var req rbac.CreateRoleInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	caller := middleware.GetAuthContext(r)
	role, err := h.roles.Create(r.Context(), req, caller.Claim.Username)
	if err != nil {
		writeError(w, r, err, "create role failed")
		return
	}

	h.record(r, audit.ActionRoleCreate, map[string]interface{}{
		"roleId":      role.ID,
		"name":        role.Name,
		"permissions": role.Permissions,
	})
	httputil.WriteCreated(w, map[string]interface{}{"role": role})
}

// updateRole handles PUT /api/admin/roles/{id}
func (h *Handlers) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req rbac.UpdateRoleInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	caller := middleware.GetAuthContext(r)
	role, err := h.roles.Update(r.Context(), id, req, caller.Claim.Username)
	if err != nil {
		writeError(w, r, err, "update role failed")
		return
	}

	h.record(r, audit.ActionRoleUpdate, map[string]interface{}{
		"roleId":      role.ID,
		"name":        role.Name,
		"permissions": role.Permissions,
	})
	httputil.WriteSuccess(w, map[string]interface{}{"role": role})
}

// deleteRole handles DELETE /api/admin/roles/{id}
func (h *Handlers) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "delete role failed")
		return
	}

	h.record(r, audit.ActionRoleDelete, map[string]interface{}{"roleId": id})
	httputil.WriteSuccess(w, map[string]bool{"success": true})
}
