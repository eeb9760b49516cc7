package imports

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/materials-ledger/api/middleware"
	"github.com/angelmondragon/materials-ledger/api/responses"
	"github.com/angelmondragon/materials-ledger/api/validators"
	"github.com/angelmondragon/materials-ledger/internal/columnmap"
	internalimports "github.com/angelmondragon/materials-ledger/internal/imports"
	"github.com/angelmondragon/materials-ledger/pkg/config"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
	"github.com/angelmondragon/materials-ledger/pkg/pagination"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SynonymSource exposes the header synonym table.
type SynonymSource interface {
	Synonyms() map[columnmap.Field][]string
}

// DirectImport accepts a multipart upload and runs the create-or-update
// pipeline. Row errors come back on the audit record, not as an HTTP error.
func DirectImport(svc internalimports.Service, cfg config.ImportConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		upload, err := validators.ParseUpload(w, r, "file", cfg.MaxUploadBytes())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer upload.Close()

		delimiter, err := validators.FormRune(r, "delimiter")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode := enums.MappingModeAuto
		if raw := strings.TrimSpace(r.FormValue("mapping_mode")); raw != "" {
			parsed, err := enums.ParseMappingMode(strings.ToLower(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mapping_mode"))
				return
			}
			mode = parsed
		}

		mapping, err := validators.FormJSONMap(r, "mapping")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.ImportDirect(r.Context(), internalimports.ImportInput{
			Filename:  upload.Filename,
			Reader:    upload.File,
			Size:      upload.Size,
			Delimiter: delimiter,
			ActorID:   middleware.ActorIDFromContext(r.Context()),
			Mode:      mode,
			Mapping:   mapping,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, auditResponseFromModel(record))
	}
}

// AuditDetail returns one direct import audit record.
func AuditDetail(svc internalimports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "importId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid import id"))
			return
		}

		record, err := svc.GetAudit(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, auditResponseFromModel(record))
	}
}

// AuditList pages through direct import audit records, newest first.
func AuditList(svc internalimports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListAudits(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := pagination.Page[auditResponse]{
			Items:      make([]auditResponse, 0, len(page.Items)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Items {
			out.Items = append(out.Items, auditResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// Template downloads the import template for a pipeline, as CSV by default
// or as a workbook with ?format=xlsx.
func Template(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := enums.ParseImportKind(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "kind"))))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown template kind"))
			return
		}

		switch strings.ToLower(r.URL.Query().Get("format")) {
		case "", "csv":
			body, err := internalimports.GenerateTemplate(kind)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteAttachment(w, contentTypeCSV, templateFilename(kind, "csv"), []byte(body))
		case "xlsx":
			body, err := internalimports.GenerateTemplateWorkbook(kind)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteAttachment(w, contentTypeXLSX, templateFilename(kind, "xlsx"), body)
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "format must be csv or xlsx"))
		}
	}
}

// Synonyms returns the header synonyms recognised for every ledger field.
func Synonyms(src SynonymSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "column mapper unavailable"))
			return
		}

		table := src.Synonyms()
		out := make([]synonymEntry, 0, len(table))
		for field, synonyms := range table {
			out = append(out, synonymEntry{Field: string(field), Synonyms: synonyms})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
		responses.WriteSuccess(w, out)
	}
}

func templateFilename(kind enums.ImportKind, ext string) string {
	return fmt.Sprintf("%s-import-template.%s", kind, ext)
}

type synonymEntry struct {
	Field    string   `json:"field"`
	Synonyms []string `json:"synonyms"`
}

type auditResponse struct {
	ID            uuid.UUID          `json:"id"`
	Filename      string             `json:"filename"`
	FileType      enums.FileType     `json:"file_type"`
	FileSize      int64              `json:"file_size"`
	Status        enums.ImportStatus `json:"status"`
	MappingMode   enums.MappingMode  `json:"mapping_mode"`
	TotalRows     int                `json:"total_rows"`
	CreatedCount  int                `json:"created_count"`
	UpdatedCount  int                `json:"updated_count"`
	ErrorCount    int                `json:"error_count"`
	Errors        []models.RowError  `json:"errors"`
	ColumnMapping map[string]string  `json:"column_mapping"`
	ActorID       *string            `json:"actor_id,omitempty"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func auditResponseFromModel(m *models.ImportAuditRecord) auditResponse {
	errs := m.Errors.Val
	if errs == nil {
		errs = []models.RowError{}
	}
	return auditResponse{
		ID:            m.ID,
		Filename:      m.Filename,
		FileType:      m.FileType,
		FileSize:      m.FileSize,
		Status:        m.Status,
		MappingMode:   m.MappingMode,
		TotalRows:     m.TotalRows,
		CreatedCount:  m.CreatedCount,
		UpdatedCount:  m.UpdatedCount,
		ErrorCount:    m.ErrorCount,
		Errors:        errs,
		ColumnMapping: m.ColumnMapping.Val,
		ActorID:       m.ActorID,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
		CreatedAt:     m.CreatedAt,
	}
}
