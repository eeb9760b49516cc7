// Package tabular turns CSV and Excel uploads into header-keyed rows.
package tabular

import (
	"path/filepath"
	"strings"

	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
)

// Row is one data record. Line counts data rows from 1, so the record right
// under the header is row 1.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed cell for header, or "".
func (r Row) Get(header string) string {
	return strings.TrimSpace(r.Values[header])
}

// Table is a parsed upload.
type Table struct {
	Headers []string
	Rows    []Row
}

// MissingHeaders reports which of want are absent, compared case-insensitively.
func (t Table) MissingHeaders(want ...string) []string {
	present := make(map[string]struct{}, len(t.Headers))
	for _, h := range t.Headers {
		present[strings.ToLower(h)] = struct{}{}
	}
	var missing []string
	for _, w := range want {
		if _, ok := present[strings.ToLower(w)]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

// HeaderIndex maps lower-cased header names to their spelling in the file.
func (t Table) HeaderIndex() map[string]string {
	out := make(map[string]string, len(t.Headers))
	for _, h := range t.Headers {
		key := strings.ToLower(h)
		if _, ok := out[key]; !ok {
			out[key] = h
		}
	}
	return out
}

// DetectFileType infers the upload format from the filename extension.
func DetectFileType(filename string) (enums.FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return enums.FileTypeCSV, nil
	case ".xlsx", ".xlsm":
		return enums.FileTypeXLSX, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported file type").
			WithDetails(map[string]any{"filename": filename, "accepted": []string{".csv", ".txt", ".xlsx", ".xlsm"}})
	}
}

func buildTable(header []string, records [][]string, lines []int) (*Table, error) {
	headers := make([]string, len(header))
	nonEmpty := 0
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
		if headers[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStructural, "header row is empty")
	}

	table := &Table{Headers: compactHeaders(headers)}
	for i, record := range records {
		if isBlank(record) {
			continue
		}
		values := make(map[string]string, len(headers))
		for col, h := range headers {
			if h == "" {
				continue
			}
			if _, dup := values[h]; dup {
				continue
			}
			if col < len(record) {
				values[h] = record[col]
			} else {
				values[h] = ""
			}
		}
		table.Rows = append(table.Rows, Row{Line: lines[i], Values: values})
	}
	return table, nil
}

func compactHeaders(headers []string) []string {
	out := make([]string, 0, len(headers))
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
