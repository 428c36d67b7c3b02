package admin

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

type logsResponse struct {
	Logs  []audit.Entry `json:"logs"`
	Count int           `json:"count"`
}

func seedLogs(t *testing.T, f *fixture, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ok := f.audit.Append(context.Background(), audit.NewEntry(
			audit.Actor{UserID: userID, Name: userID},
			audit.ActionContentUpdate,
			audit.DetailsOf(map[string]interface{}{"page": i}),
			audit.Request{IPAddress: "192.0.2.10"},
		))
		require.True(t, ok)
	}
}

func TestLogs_ContentManagerForbidden(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("carol", rbac.RoleContentManager)

	rec := f.do("GET", "/api/admin/logs", nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient permissions", errorMessage(t, rec))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PermissionDenialsTotal.WithLabelValues(string(rbac.PermissionLogsView))))

	export := f.do("GET", "/api/admin/logs/export", nil, token)
	assert.Equal(t, http.StatusForbidden, export.Code)
}

func TestLogs_List(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("root", rbac.RoleSuperAdmin)
	seedLogs(t, f, "u-1", 3)
	seedLogs(t, f, "u-2", 2)

	rec := f.do("GET", "/api/admin/logs", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var all logsResponse
	decode(t, rec, &all)
	assert.Equal(t, 5, all.Count)
	assert.Len(t, all.Logs, 5)
	for i := 1; i < len(all.Logs); i++ {
		assert.False(t, all.Logs[i].Timestamp.After(all.Logs[i-1].Timestamp), "entries must be newest first")
	}

	rec = f.do("GET", "/api/admin/logs?limit=2", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var limited logsResponse
	decode(t, rec, &limited)
	assert.Equal(t, 2, limited.Count)

	rec = f.do("GET", "/api/admin/logs?userId=u-2", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var byUser logsResponse
	decode(t, rec, &byUser)
	require.Equal(t, 2, byUser.Count)
	for _, e := range byUser.Logs {
		assert.Equal(t, "u-2", e.UserID)
	}

	rec = f.do("GET", "/api/admin/logs?limit=lots", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogs_EmptyListIsArray(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("root", rbac.RoleSuperAdmin)

	rec := f.do("GET", "/api/admin/logs", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"logs":[],"count":0}`, rec.Body.String())
}

func TestLogs_Create(t *testing.T) {
	f := newFixture(t)
	user, token := f.addUser("carol", rbac.RoleContentManager)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{"free text details", map[string]interface{}{"action": "content_update", "details": "edited SEO title of page 12"}, http.StatusCreated},
		{"structured details", map[string]interface{}{"action": "content_create", "details": map[string]string{"page": "home"}}, http.StatusCreated},
		{"custom action", map[string]interface{}{"action": "custom:page.publish"}, http.StatusCreated},
		{"user action", map[string]interface{}{"action": "user_delete", "details": "deleted root"}, http.StatusBadRequest},
		{"role action", map[string]interface{}{"action": "role_change"}, http.StatusBadRequest},
		{"failed login", map[string]interface{}{"action": "login_failed"}, http.StatusBadRequest},
		{"unknown action", map[string]interface{}{"action": "drop_tables"}, http.StatusBadRequest},
		{"bad custom text", map[string]interface{}{"action": "custom:Not Allowed"}, http.StatusBadRequest},
		{"missing action", map[string]interface{}{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do("POST", "/api/admin/logs", tt.body, token)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	entries, err := f.audit.ByUser(context.Background(), user.ID, audit.MaxLimit)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	details := map[audit.Action]audit.Details{}
	for _, e := range entries {
		assert.Equal(t, rbac.RoleContentManager, e.UserRole)
		assert.Equal(t, "handlers-test", e.UserAgent)
		details[e.Action] = e.Details
	}
	assert.Equal(t, audit.Details("edited SEO title of page 12"), details[audit.ActionContentUpdate])
	assert.JSONEq(t, `{"page":"home"}`, string(details[audit.ActionContentCreate]))
	assert.Equal(t, audit.Details(""), details["custom:page.publish"])
}

func TestLogs_CreateFreeTextRoundTrip(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("carol", rbac.RoleContentManager)
	_, rootToken := f.addUser("root", rbac.RoleSuperAdmin)

	rec := f.do("POST", "/api/admin/logs", map[string]string{
		"action":  "content_update",
		"details": "edited SEO title of page 12",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do("GET", "/api/admin/logs", nil, rootToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Logs []map[string]interface{} `json:"logs"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Logs, 1)
	assert.Equal(t, "edited SEO title of page 12", body.Logs[0]["details"])
}

type failingInsertStore struct {
	storage.Store
}

func (failingInsertStore) Insert(context.Context, storage.Collection, storage.Record) error {
	return errors.New("disk full")
}

func TestLogs_CreateWriteFailure(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("carol", rbac.RoleContentManager)

	f.deps.Audit = audit.NewLogger(failingInsertStore{f.db}, f.logger, f.metrics)
	f.rebuild()

	rec := f.do("POST", "/api/admin/logs", map[string]string{"action": "content_delete"}, token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", errorMessage(t, rec))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AuditWriteFailuresTotal))
}

func TestLogs_Export(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser("root", rbac.RoleSuperAdmin)
	seedLogs(t, f, "u-1", 3)

	rec := f.do("GET", "/api/admin/logs/export?format=csv&limit=2", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="admin-logs.csv"`, rec.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])

	rec = f.do("GET", "/api/admin/logs/export?format=ndjson", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 3)

	rec = f.do("GET", "/api/admin/logs/export?format=xml", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
