package validators

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
)

const multipartMemory = 8 << 20

// Upload is the file part of a multipart import request.
type Upload struct {
	File     multipart.File
	Filename string
	Size     int64
}

// Close releases the underlying multipart file.
func (u *Upload) Close() error {
	if u == nil || u.File == nil {
		return nil
	}
	return u.File.Close()
}

// ParseUpload reads the named file field from a multipart body capped at
// maxBytes. A zero cap disables the limit.
func ParseUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*Upload, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file exceeds upload limit").
				WithDetails(map[string]any{"max_bytes": maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required").
			WithDetails(map[string]any{"field": field})
	}
	return &Upload{File: file, Filename: header.Filename, Size: header.Size}, nil
}

// FormRune parses an optional single-character form value.
func FormRune(r *http.Request, key string) (rune, error) {
	raw := r.FormValue(key)
	if raw == "" {
		return 0, nil
	}
	if raw == `\t` || strings.EqualFold(raw, "tab") {
		return '\t', nil
	}
	runes := []rune(raw)
	if len(runes) != 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "must be a single character").
			WithDetails(map[string]any{"field": key})
	}
	return runes[0], nil
}

// FormJSONMap parses an optional form value holding a JSON object of strings.
func FormJSONMap(r *http.Request, key string) (map[string]string, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "must be a JSON object of strings").
			WithDetails(map[string]any{"field": key})
	}
	return out, nil
}
