package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	ts := time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	return []Entry{
		{
			ID:        "e-2",
			Timestamp: ts.Add(time.Minute),
			UserID:    "u-1",
			UserName:  "alice",
			UserEmail: "alice@example.com",
			UserRole:  "admin",
			Action:    ActionUserCreate,
			Details:   "created account for carol, jr",
			IPAddress: "192.0.2.1",
			UserAgent: "Mozilla/5.0",
		},
		{
			ID:        "e-1",
			Timestamp: ts,
			UserID:    "u-1",
			UserName:  "alice",
			Action:    ActionLogin,
		},
	}
}

func TestParseExportFormat(t *testing.T) {
	tests := map[string]ExportFormat{
		"":       ExportFormatJSON,
		"json":   ExportFormatJSON,
		"CSV":    ExportFormatCSV,
		"ndjson": ExportFormatNDJSON,
	}
	for in, want := range tests {
		got, err := ParseExportFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseExportFormat("xml")
	assert.Error(t, err)
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleEntries(), ExportFormatJSON))

	var parsed []Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, sampleEntries(), parsed)
}

func TestExportJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, nil, ExportFormatJSON))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestExportNDJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleEntries(), ExportFormatNDJSON))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "e-2", first.ID)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleEntries(), ExportFormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "e-2", records[1][0])
	assert.Equal(t, "2026-04-01T08:31:00Z", records[1][1])
	assert.Equal(t, "user_create", records[1][6])
	assert.Equal(t, "created account for carol, jr", records[1][7])
	assert.Equal(t, "", records[2][7])
}

func TestExport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Export(&buf, sampleEntries(), "xml"))
}

func TestExportFormat_ContentType(t *testing.T) {
	assert.Equal(t, "application/json", ExportFormatJSON.ContentType())
	assert.Equal(t, "text/csv", ExportFormatCSV.ContentType())
	assert.Equal(t, "application/x-ndjson", ExportFormatNDJSON.ContentType())
}
