package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{name: "valid JSON", body: `{"name": "test"}`},
		{name: "invalid JSON", body: `{invalid}`, expectError: true},
		{name: "empty body", body: ``, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "test", dest["name"])
			}
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`not json`))
	var dest map[string]string

	ok := ParseJSONOrError(w, req, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, w.Body.String())
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/roles/seo_manager", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "seo_manager"})

	val, err := ParsePathString(req, "id")
	require.NoError(t, err)
	assert.Equal(t, "seo_manager", val)

	_, err = ParsePathString(req, "missing")
	assert.Error(t, err)
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/logs?limit=25&bad=x", nil)

	val, err := ParseQueryInt(req, "limit", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, val)

	val, err = ParseQueryInt(req, "absent", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, val)

	_, err = ParseQueryInt(req, "bad", 100)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/export?format=csv", nil)
	assert.Equal(t, "csv", ParseQueryString(req, "format", "json"))
	assert.Equal(t, "json", ParseQueryString(req, "other", "json"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Required("username", "admin"), MinLength("password", "longenough", 8)))

	err := Validate(Required("username", "  "), MinLength("password", "x", 8))
	require.Error(t, err)
	assert.Equal(t, "username is required", err.Error())

	err = Validate(Required("username", "admin"), MinLength("password", "short", 8))
	require.Error(t, err)
	assert.Equal(t, "password must be at least 8 characters", err.Error())
}

func TestValidateAll(t *testing.T) {
	w := httptest.NewRecorder()
	ok := ValidateAll(w, Required("name", ""))

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}
