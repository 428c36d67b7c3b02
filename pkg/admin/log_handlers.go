package admin

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/httputil"
)

// listLogs handles GET /api/admin/logs
func (h *Handlers) listLogs(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.readLogs(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"logs":  entries,
		"count": len(entries),
	})
}

// createLog handles POST /api/admin/logs. Any authenticated caller may
// record a content or custom action against their own identity.
func (h *Handlers) createLog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  string        `json:"action"`
		Details audit.Details `json:"details"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.Required("action", req.Action)) {
		return
	}

	action, err := audit.ParseAction(req.Action)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if !action.Reportable() {
		httputil.WriteValidationError(w, fmt.Sprintf("action %q is recorded by the server and cannot be reported", action))
		return
	}

	entry := audit.NewEntry(callerOf(r), action, req.Details, h.requestOf(r))
	if !h.audit.Append(r.Context(), entry) {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, map[string]bool{"success": true})
}

// exportLogs handles GET /api/admin/logs/export
func (h *Handlers) exportLogs(w http.ResponseWriter, r *http.Request) {
	format, err := audit.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	entries, ok := h.readLogs(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := audit.Export(&buf, entries, format); err != nil {
		writeError(w, r, fmt.Errorf("failed to export audit log: %w", err), "export logs failed")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="admin-logs.%s"`, format.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// readLogs loads entries per the userId and limit query parameters
func (h *Handlers) readLogs(w http.ResponseWriter, r *http.Request) ([]audit.Entry, bool) {
	limit, err := httputil.ParseQueryInt(r, "limit", audit.DefaultLimit)
	if err != nil {
		httputil.WriteAppError(w, err)
		return nil, false
	}

	var entries []audit.Entry
	if userID := httputil.ParseQueryString(r, "userId", ""); userID != "" {
		entries, err = h.audit.ByUser(r.Context(), userID, limit)
	} else {
		entries, err = h.audit.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, r, err, "read audit log failed")
		return nil, false
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return entries, true
}
