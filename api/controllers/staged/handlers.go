package staged

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/materials-ledger/api/middleware"
	"github.com/angelmondragon/materials-ledger/api/responses"
	"github.com/angelmondragon/materials-ledger/api/validators"
	internalstaged "github.com/angelmondragon/materials-ledger/internal/staged"
	"github.com/angelmondragon/materials-ledger/pkg/config"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
)

// Preview classifies an uploaded catalog file and opens a session.
func Preview(svc internalstaged.Service, cfg config.ImportConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "staged import service unavailable"))
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

		session, err := svc.Preview(r.Context(), internalstaged.PreviewInput{
			Filename:  upload.Filename,
			Reader:    upload.File,
			Delimiter: delimiter,
			ActorID:   middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponseFromModel(session))
	}
}

// Detail returns a session with its classified rows.
func Detail(svc internalstaged.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "staged import service unavailable"))
			return
		}

		id, err := parseSessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.GetSession(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionResponseFromModel(session))
	}
}

// Confirm inserts the session's new rows into the catalog.
func Confirm(svc internalstaged.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "staged import service unavailable"))
			return
		}

		id, err := parseSessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Confirm(r.Context(), id, middleware.ActorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmResponse{
			ID:          session.UUID,
			Status:      session.Status,
			ImportedIDs: session.ImportedIDs.Val,
			Imported:    len(session.ImportedIDs.Val),
			Skipped:     session.SkippedItems,
		})
	}
}

// Cancel closes a session that has not been confirmed.
func Cancel(svc internalstaged.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "staged import service unavailable"))
			return
		}

		id, err := parseSessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cancelled, err := svc.Cancel(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "cancelled": cancelled})
	}
}

func parseSessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "sessionId")))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id")
	}
	return id, nil
}

type confirmResponse struct {
	ID          uuid.UUID                 `json:"id"`
	Status      enums.ImportSessionStatus `json:"status"`
	Imported    int                       `json:"imported"`
	Skipped     int                       `json:"skipped"`
	ImportedIDs []uuid.UUID               `json:"imported_ids"`
}

type sessionResponse struct {
	ID            uuid.UUID                 `json:"id"`
	Filename      string                    `json:"filename"`
	Status        enums.ImportSessionStatus `json:"status"`
	TotalRows     int                       `json:"total_rows"`
	NewItems      int                       `json:"new_items"`
	ExistingItems int                       `json:"existing_items"`
	ErrorItems    int                       `json:"error_items"`
	SkippedItems  int                       `json:"skipped_items"`
	Rows          []models.ClassifiedRow    `json:"rows"`
	Errors        []models.RowError         `json:"errors"`
	ImportedIDs   []uuid.UUID               `json:"imported_ids"`
	ActorID       *string                   `json:"actor_id,omitempty"`
	ConfirmedBy   *string                   `json:"confirmed_by,omitempty"`
	ConfirmedAt   *time.Time                `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time                `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func sessionResponseFromModel(m *models.ImportSession) sessionResponse {
	classification := m.Classification.Val
	out := sessionResponse{
		ID:            m.UUID,
		Filename:      m.Filename,
		Status:        m.Status,
		TotalRows:     m.TotalRows,
		NewItems:      m.NewItems,
		ExistingItems: m.ExistingItems,
		ErrorItems:    m.ErrorItems,
		SkippedItems:  m.SkippedItems,
		Rows:          classification.Rows,
		Errors:        classification.Errors,
		ImportedIDs:   m.ImportedIDs.Val,
		ActorID:       m.ActorID,
		ConfirmedBy:   m.ConfirmedBy,
		ConfirmedAt:   m.ConfirmedAt,
		CancelledAt:   m.CancelledAt,
		CreatedAt:     m.CreatedAt,
	}
	if out.Rows == nil {
		out.Rows = []models.ClassifiedRow{}
	}
	if out.Errors == nil {
		out.Errors = []models.RowError{}
	}
	if out.ImportedIDs == nil {
		out.ImportedIDs = []uuid.UUID{}
	}
	return out
}
