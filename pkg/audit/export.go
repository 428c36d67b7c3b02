package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ExportFormat is the serialisation used by Export
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// ParseExportFormat accepts json, csv or ndjson. Empty selects JSON.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ExportFormatJSON, nil
	case ExportFormatJSON, ExportFormatCSV, ExportFormatNDJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of f
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv"
	case ExportFormatNDJSON:
		return "application/x-ndjson"
	default:
		return "application/json"
	}
}

// Extension returns the file extension of f without the dot
func (f ExportFormat) Extension() string {
	return string(f)
}

// Export writes entries to w in format
func Export(w io.Writer, entries []Entry, format ExportFormat) error {
	switch format {
	case ExportFormatJSON:
		return exportJSON(w, entries)
	case ExportFormatCSV:
		return exportCSV(w, entries)
	case ExportFormatNDJSON:
		return exportNDJSON(w, entries)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// exportJSON writes entries as a JSON array
func exportJSON(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

// exportNDJSON writes one JSON entry per line
func exportNDJSON(w io.Writer, entries []Entry) error {
	encoder := json.NewEncoder(w)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
	}
	return nil
}

var csvHeader = []string{
	"ID",
	"Timestamp",
	"UserID",
	"UserName",
	"UserEmail",
	"UserRole",
	"Action",
	"Details",
	"IPAddress",
	"UserAgent",
}

// exportCSV writes entries as CSV with a header row
func exportCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		row := []string{
			entry.ID,
			entry.Timestamp.UTC().Format(time.RFC3339),
			entry.UserID,
			entry.UserName,
			entry.UserEmail,
			entry.UserRole,
			string(entry.Action),
			string(entry.Details),
			entry.IPAddress,
			entry.UserAgent,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}
