// Package staged implements the two-step catalog import: a preview that
// classifies every row without writing, and a confirm that inserts only the
// rows classified as new.
package staged

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/materials-ledger/internal/reconcile"
	"github.com/angelmondragon/materials-ledger/internal/tabular"
	"github.com/angelmondragon/materials-ledger/pkg/config"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	dbtypes "github.com/angelmondragon/materials-ledger/pkg/db/types"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
	"github.com/angelmondragon/materials-ledger/pkg/metrics"
	"github.com/angelmondragon/materials-ledger/pkg/outbox"
	"github.com/angelmondragon/materials-ledger/pkg/outbox/payloads"
)

const pipelineStaged = "staged"

// RequiredHeaders must all be present, compared case-insensitively.
var RequiredHeaders = []string{"catalog_number", "name", "unit"}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PreviewInput is one uploaded catalog file.
type PreviewInput struct {
	Filename  string
	Reader    io.Reader
	Delimiter rune
	ActorID   string
}

// ServiceParams groups dependencies for the staged import service.
type ServiceParams struct {
	DB      txRunner
	Repo    *Repository
	Outbox  outbox.Emitter
	Config  config.ImportConfig
	Metrics *metrics.ImportMetrics
	Logger  *logger.Logger
}

// Service exposes the staged import lifecycle.
type Service interface {
	Preview(ctx context.Context, input PreviewInput) (*models.ImportSession, error)
	Confirm(ctx context.Context, sessionID uuid.UUID, actorID string) (*models.ImportSession, error)
	Cancel(ctx context.Context, sessionID uuid.UUID) (bool, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.ImportSession, error)
}

type service struct {
	db      txRunner
	repo    *Repository
	outbox  outbox.Emitter
	cfg     config.ImportConfig
	metrics *metrics.ImportMetrics
	logg    *logger.Logger
}

// NewService builds the staged import service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("staged repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:      params.DB,
		repo:    params.Repo,
		outbox:  params.Outbox,
		cfg:     params.Config,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Preview classifies every row of the file into new, existing or error and
// stores the result on a session in preview. The catalog is not written.
func (s *service) Preview(ctx context.Context, input PreviewInput) (*models.ImportSession, error) {
	started := time.Now()
	if strings.TrimSpace(input.Filename) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "filename is required")
	}
	if input.Reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	delimiter := input.Delimiter
	if delimiter == 0 {
		delimiter = s.cfg.StagedDelimiterRune()
	}

	table, _, err := tabular.Read(input.Filename, input.Reader, delimiter)
	var malformed *tabular.MalformedError
	if errors.As(err, &malformed) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, malformed, malformed.Error()).
			WithDetails(map[string]any{"row": malformed.Row})
	}
	if err != nil {
		return nil, err
	}
	if missing := table.MissingHeaders(RequiredHeaders...); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStructural, "missing required headers: "+strings.Join(missing, ", ")).
			WithDetails(map[string]any{"missing_headers": missing, "required": RequiredHeaders})
	}

	existing, err := s.repo.ActiveCatalog(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog keys")
	}
	classification, err := classify(table, existing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "classify rows")
	}

	session := &models.ImportSession{
		Filename:       input.Filename,
		Status:         enums.ImportSessionPreview,
		TotalRows:      len(table.Rows),
		Classification: dbtypes.NewJSON(classification),
		ImportedIDs:    dbtypes.NewJSON([]uuid.UUID{}),
		ActorID:        optional(input.ActorID),
	}
	for _, row := range classification.Rows {
		switch row.Bucket {
		case enums.RowNew:
			session.NewItems++
		case enums.RowExisting:
			session.ExistingItems++
		case enums.RowError:
			session.ErrorItems++
		}
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create import session")
	}

	s.metrics.AddRows(pipelineStaged, string(enums.RowNew), session.NewItems)
	s.metrics.AddRows(pipelineStaged, string(enums.RowExisting), session.ExistingItems)
	s.metrics.AddRows(pipelineStaged, string(enums.RowError), session.ErrorItems)
	s.metrics.ObserveRun(pipelineStaged, string(session.Status), time.Since(started))

	logCtx := s.logg.WithImportRun(s.logg.WithActorID(ctx, input.ActorID), pipelineStaged, session.UUID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"total_rows": session.TotalRows,
		"new":        session.NewItems,
		"existing":   session.ExistingItems,
		"errors":     session.ErrorItems,
	}), "staged import previewed")
	return session, nil
}

// Confirm inserts the rows classified as new. Rows whose key appeared in the
// catalog after preview, active or not, are skipped and counted on the
// session, never updated.
func (s *service) Confirm(ctx context.Context, sessionID uuid.UUID, actorID string) (*models.ImportSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != enums.ImportSessionPreview {
		return nil, wrongState(session, "confirm")
	}

	now := time.Now().UTC()
	var (
		imported []uuid.UUID
		skipped  int
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.Transition(ctx, session.ID,
			[]enums.ImportSessionStatus{enums.ImportSessionPreview},
			enums.ImportSessionCompleted,
			map[string]any{"confirmed_by": optional(actorID), "confirmed_at": now},
		)
		if err != nil {
			return err
		}
		if !ok {
			return wrongState(session, "confirm")
		}

		candidates := pendingRows(session.Classification.Val.Rows)
		keys := make([]string, 0, len(candidates))
		for _, row := range candidates {
			keys = append(keys, models.CatalogKeyOf(row.CatalogNumber))
		}
		present, err := repo.ExistingKeys(ctx, keys)
		if err != nil {
			return err
		}

		items := make([]*models.CatalogItem, 0, len(candidates))
		for _, row := range candidates {
			if _, taken := present[models.CatalogKeyOf(row.CatalogNumber)]; taken {
				skipped++
				continue
			}
			items = append(items, catalogItem(row, session.ID))
		}
		if err := repo.CreateCatalogItems(ctx, items, s.cfg.BatchSize); err != nil {
			return err
		}
		imported = make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			imported = append(imported, item.ID)
		}
		if err := repo.SetConfirmResult(ctx, session.ID, imported, skipped); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStagedImportConfirmed,
			AggregateType: enums.AggregateImportSession,
			AggregateID:   session.UUID,
			Actor:         outbox.NewActorRef(actorID),
			Data: payloads.StagedImportConfirmedEvent{
				SessionUUID: session.UUID,
				Filename:    session.Filename,
				ImportedIDs: imported,
				Skipped:     skipped,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm import session")
	}

	session.Status = enums.ImportSessionCompleted
	session.ConfirmedBy = optional(actorID)
	session.ConfirmedAt = &now
	session.ImportedIDs = dbtypes.NewJSON(imported)
	session.SkippedItems = skipped

	logCtx := s.logg.WithImportRun(s.logg.WithActorID(ctx, actorID), pipelineStaged, session.UUID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"imported": len(imported),
		"skipped":  skipped,
	}), "staged import confirmed")
	return session, nil
}

// Cancel closes a session that has not been confirmed.
func (s *service) Cancel(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !session.Status.CanCancel() {
		return false, wrongState(session, "cancel")
	}
	ok, err := s.repo.Transition(ctx, session.ID,
		[]enums.ImportSessionStatus{enums.ImportSessionPending, enums.ImportSessionPreview},
		enums.ImportSessionCancelled,
		map[string]any{"cancelled_at": time.Now().UTC()},
	)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel import session")
	}
	if !ok {
		return false, wrongState(session, "cancel")
	}
	s.logg.Info(s.logg.WithImportRun(ctx, pipelineStaged, session.UUID.String()), "staged import cancelled")
	return true, nil
}

func (s *service) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.ImportSession, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	session, err := s.repo.FindSession(ctx, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "import session not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load import session")
	}
	return session, nil
}

func wrongState(session *models.ImportSession, action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s session in status %s", action, session.Status)).
		WithDetails(map[string]any{"session_id": session.UUID, "status": session.Status})
}

func pendingRows(rows []models.ClassifiedRow) []models.ClassifiedRow {
	out := make([]models.ClassifiedRow, 0, len(rows))
	for _, row := range rows {
		if row.Bucket == enums.RowNew {
			out = append(out, row)
		}
	}
	return out
}

func catalogItem(row models.ClassifiedRow, sessionID uint64) *models.CatalogItem {
	id := sessionID
	return &models.CatalogItem{
		CatalogNumber:   row.CatalogNumber,
		CatalogKey:      models.CatalogKeyOf(row.CatalogNumber),
		Name:            row.Name,
		Unit:            row.Unit,
		DefaultQuantity: row.DefaultQuantity,
		Category:        optional(row.Category),
		Supplier:        optional(row.Supplier),
		UnitPrice:       row.UnitPrice,
		Active:          true,
		ImportSessionID: &id,
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// classify sorts rows into buckets in file order. A row repeating a key
// classified as new earlier in the file counts as existing.
func classify(table *tabular.Table, existing []*models.CatalogItem) (models.SessionClassification, error) {
	rec, err := reconcile.New(reconcile.Rules[models.CatalogItem, catalogRow]{
		Policy:    reconcile.AdditiveOnly,
		RowKey:    func(r catalogRow) string { return r.catalogNumber },
		EntityKey: func(item *models.CatalogItem) string { return item.CatalogNumber },
		Normalize: models.CatalogKeyOf,
		Create: func(r catalogRow) (*models.CatalogItem, error) {
			return &models.CatalogItem{CatalogNumber: r.catalogNumber}, nil
		},
	}, existing)
	if err != nil {
		return models.SessionClassification{}, err
	}

	headers := table.HeaderIndex()
	out := models.SessionClassification{
		Rows:   make([]models.ClassifiedRow, 0, len(table.Rows)),
		Errors: []models.RowError{},
	}
	for _, row := range table.Rows {
		parsed, problems := parseCatalogRow(row, headers)
		classified := parsed.classified()
		if len(problems) > 0 {
			classified.Bucket = enums.RowError
			out.Errors = append(out.Errors, problems...)
			out.Rows = append(out.Rows, classified)
			continue
		}
		outcome, _, err := rec.Apply(parsed)
		if err != nil {
			return models.SessionClassification{}, err
		}
		if outcome == reconcile.OutcomeCreated {
			classified.Bucket = enums.RowNew
		} else {
			classified.Bucket = enums.RowExisting
		}
		out.Rows = append(out.Rows, classified)
	}
	return out, nil
}
