package audit

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for action := range knownActions {
		got, err := ParseAction(string(action))
		require.NoError(t, err)
		assert.Equal(t, action, got)
		assert.False(t, got.IsCustom())
	}

	got, err := ParseAction("custom:seo.bulk-review_2")
	require.NoError(t, err)
	assert.True(t, got.IsCustom())
	assert.Equal(t, "custom", got.Kind())

	rejected := []string{
		"",
		"LOGIN",
		"delete_everything",
		"custom:",
		"custom:Has Spaces",
		"custom:" + strings.Repeat("a", 65),
		"custom:semi;colon",
	}
	for _, s := range rejected {
		_, err := ParseAction(s)
		assert.Error(t, err, s)
	}
}

func TestCustomAction(t *testing.T) {
	a, err := CustomAction(strings.Repeat("x", 64))
	require.NoError(t, err)
	assert.True(t, a.Valid())

	_, err = CustomAction("UPPER")
	assert.Error(t, err)
}

func TestNewEntry(t *testing.T) {
	e := NewEntry(
		Actor{UserID: "u-1", Name: "Alice", Email: "alice@example.com", Role: "admin"},
		ActionUserCreate,
		DetailsOf(map[string]interface{}{"username": "carol"}),
		Request{IPAddress: "192.0.2.1", UserAgent: "curl/8"},
	)

	assert.Empty(t, e.ID)
	assert.True(t, e.Timestamp.IsZero())
	assert.Equal(t, "u-1", e.UserID)
	assert.Equal(t, "Alice", e.UserName)
	assert.Equal(t, "admin", e.UserRole)
	assert.Equal(t, ActionUserCreate, e.Action)
	assert.Equal(t, Details(`{"username":"carol"}`), e.Details)
	assert.Equal(t, "192.0.2.1", e.IPAddress)
}

func TestDetailsOf(t *testing.T) {
	assert.Equal(t, Details(""), DetailsOf(nil))
	assert.Equal(t, Details(`{"a":1,"b":"x"}`), DetailsOf(map[string]interface{}{"b": "x", "a": 1}))
}

func TestDetails_UnmarshalJSON(t *testing.T) {
	tests := map[string]struct {
		body string
		want Details
	}{
		"free text": {`{"details":"edited SEO title of page 12"}`, "edited SEO title of page 12"},
		"object":    {`{"details":{ "page": 12, "field": "title" }}`, `{"page":12,"field":"title"}`},
		"number":    {`{"details":12}`, "12"},
		"null":      {`{"details":null}`, ""},
		"absent":    {`{}`, ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var body struct {
				Details Details `json:"details"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.body), &body))
			assert.Equal(t, tt.want, body.Details)
		})
	}
}

func TestAction_Reportable(t *testing.T) {
	for _, a := range []Action{ActionContentCreate, ActionContentUpdate, ActionContentDelete, "custom:page.publish"} {
		assert.True(t, a.Reportable(), a)
	}
	for _, a := range []Action{
		ActionLogin, ActionLoginFailed, ActionLogout, ActionPasswordChange,
		ActionUserCreate, ActionUserUpdate, ActionUserDelete,
		ActionRoleCreate, ActionRoleUpdate, ActionRoleDelete, ActionRoleChange,
		"custom:Bad Text",
	} {
		assert.False(t, a.Reportable(), a)
	}
}
