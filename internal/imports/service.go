// Package imports runs the direct create-or-update stock import and keeps
// its audit trail.
package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/materials-ledger/internal/columnmap"
	"github.com/angelmondragon/materials-ledger/internal/reconcile"
	"github.com/angelmondragon/materials-ledger/internal/stock"
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
	"github.com/angelmondragon/materials-ledger/pkg/pagination"
)

const (
	pipelineDirect = "direct"
	// finalizeTimeout bounds the save of a failed audit record, which runs
	// detached from the caller's context.
	finalizeTimeout = 5 * time.Second
	recheckChunk    = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ImportInput is one uploaded file for the direct pipeline.
type ImportInput struct {
	Filename string
	Reader   io.Reader
	Size     int64
	// Delimiter overrides the configured CSV delimiter when non-zero.
	Delimiter rune
	ActorID   string
	Mode      enums.MappingMode
	// Mapping is the caller supplied field->header table for explicit mode.
	Mapping map[string]string
}

// ServiceParams groups dependencies for the import service.
type ServiceParams struct {
	DB      txRunner
	Stock   *stock.Repository
	Audits  *AuditRepository
	Outbox  outbox.Emitter
	Mapper  *columnmap.Mapper
	Config  config.ImportConfig
	Metrics *metrics.ImportMetrics
	Logger  *logger.Logger
}

// Service exposes the direct import pipeline and its audit log.
type Service interface {
	ImportDirect(ctx context.Context, input ImportInput) (*models.ImportAuditRecord, error)
	GetAudit(ctx context.Context, id uuid.UUID) (*models.ImportAuditRecord, error)
	ListAudits(ctx context.Context, params pagination.Params) (pagination.Page[models.ImportAuditRecord], error)
}

type service struct {
	db      txRunner
	stock   *stock.Repository
	audits  *AuditRepository
	outbox  outbox.Emitter
	mapper  *columnmap.Mapper
	cfg     config.ImportConfig
	metrics *metrics.ImportMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the import service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Audits == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Mapper == nil {
		return nil, fmt.Errorf("column mapper required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:      params.DB,
		stock:   params.Stock,
		audits:  params.Audits,
		outbox:  params.Outbox,
		mapper:  params.Mapper,
		cfg:     params.Config,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// ImportDirect creates or updates ledger rows from an uploaded file. Row
// problems are recorded on the audit record; structural problems abort
// before any record exists. A record that cannot be parsed past the header
// fails the run after the audit record is written.
func (s *service) ImportDirect(ctx context.Context, input ImportInput) (*models.ImportAuditRecord, error) {
	if strings.TrimSpace(input.Filename) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "filename is required")
	}
	if input.Reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	mode := input.Mode
	if mode == "" {
		mode = enums.MappingModeAuto
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported mapping mode")
	}

	var explicit columnmap.Mapping
	if mode == enums.MappingModeExplicit {
		if len(input.Mapping) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "explicit mapping mode requires a mapping")
		}
		parsed, err := s.mapper.ParseExplicit(input.Mapping)
		if err != nil {
			return nil, err
		}
		explicit = parsed
	}

	delimiter := input.Delimiter
	if delimiter == 0 {
		delimiter = s.cfg.DirectDelimiterRune()
	}
	table, fileType, err := tabular.Read(input.Filename, input.Reader, delimiter)
	var malformed *tabular.MalformedError
	if err != nil && !errors.As(err, &malformed) {
		return nil, err
	}

	mapping, err := s.resolveMapping(mode, explicit, table.Headers)
	if err != nil {
		return nil, err
	}

	started := s.now()
	ctx = s.logg.WithActorID(ctx, input.ActorID)
	record := &models.ImportAuditRecord{
		Filename:      input.Filename,
		FileType:      fileType,
		FileSize:      input.Size,
		Status:        enums.ImportStatusPending,
		MappingMode:   mode,
		TotalRows:     len(table.Rows),
		Errors:        dbtypes.NewJSON([]models.RowError{}),
		ColumnMapping: dbtypes.NewJSON(mapping.Strings()),
		ActorID:       optional(input.ActorID),
	}
	if err := s.audits.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create import audit record")
	}
	ctx = s.logg.WithImportRun(ctx, pipelineDirect, record.ID.String())

	record.Status = enums.ImportStatusProcessing
	record.StartedAt = &started
	if err := s.audits.Save(ctx, record); err != nil {
		return s.fail(ctx, record, started, err)
	}
	s.logg.Info(s.logg.WithField(ctx, "total_rows", record.TotalRows), "direct import started")
	if malformed != nil {
		return s.fail(ctx, record, started, pkgerrors.Wrap(pkgerrors.CodeValidation, malformed, malformed.Error()).
			WithDetails(map[string]any{"row": malformed.Row}))
	}

	existing, err := s.stock.LoadActive(ctx)
	if err != nil {
		return s.fail(ctx, record, started, err)
	}

	st := stamp{source: sourceFor(fileType), filename: input.Filename, at: started}
	rec, err := reconcile.New(reconcile.Rules[models.StockItem, stockRow]{
		Policy:    reconcile.CreateOrUpdate,
		RowKey:    func(r stockRow) string { return r.partNumber },
		EntityKey: func(item *models.StockItem) string { return item.PartNumber },
		Create:    func(r stockRow) (*models.StockItem, error) { return st.newItem(r), nil },
		Merge:     st.merge,
	}, existing)
	if err != nil {
		return s.fail(ctx, record, started, err)
	}

	var (
		rowErrors []models.RowError
		errorRows int
		created   int
		updated   int
		logged    error
		lastRow   = make(map[*models.StockItem]stockRow)
	)
	for _, row := range table.Rows {
		parsed, problems := parseStockRow(row, mapping)
		if len(problems) == 0 {
			outcome, entity, applyErr := rec.Apply(parsed)
			var rowErr *rowError
			switch {
			case errors.As(applyErr, &rowErr):
				problems = append(problems, rowErr.RowError)
			case applyErr != nil:
				return s.fail(ctx, record, started, applyErr)
			case outcome == reconcile.OutcomeCreated:
				created++
			case outcome == reconcile.OutcomeUpdated:
				updated++
				lastRow[entity] = parsed
			}
		}
		if len(problems) > 0 {
			errorRows++
			rowErrors = append(rowErrors, problems...)
			for _, p := range problems {
				logged = multierr.Append(logged, fmt.Errorf("row %d %s: %s", p.Row, p.Field, p.Message))
			}
		}
	}
	if logged != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"error_rows": errorRows,
			"row_errors": logged.Error(),
		}), "direct import rejected rows")
	}

	plan := rec.Plan()
	finished := s.now()
	record.CreatedCount = created
	record.UpdatedCount = updated
	record.ErrorCount = errorRows
	record.Errors = dbtypes.NewJSON(nonNil(rowErrors))
	record.Status = finalStatus(record.TotalRows, errorRows)
	record.FinishedAt = &finished

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.stock.WithTx(tx)
		update, conflicts, err := reservationConflicts(ctx, repo, plan.Update)
		if err != nil {
			return fmt.Errorf("recheck reservations: %w", err)
		}
		if len(conflicts) > 0 {
			late := make([]string, 0, len(conflicts))
			for _, item := range conflicts {
				row := lastRow[item]
				rowErrors = append(rowErrors, belowReserved(row, item.QuantityReserved).RowError)
				late = append(late, item.PartNumber)
			}
			updated -= len(conflicts)
			errorRows += len(conflicts)
			record.UpdatedCount = updated
			record.ErrorCount = errorRows
			record.Errors = dbtypes.NewJSON(nonNil(rowErrors))
			record.Status = finalStatus(record.TotalRows, errorRows)
			s.logg.Warn(s.logg.WithParts(ctx, late), "direct import rows lost to concurrent reservations")
		}

		if err := repo.CreateBatch(ctx, plan.Create, s.cfg.BatchSize); err != nil {
			return fmt.Errorf("create stock batch: %w", err)
		}
		if err := repo.UpdateBatch(ctx, update); err != nil {
			return fmt.Errorf("update stock batch: %w", err)
		}
		if err := s.audits.WithTx(tx).Save(ctx, record); err != nil {
			return fmt.Errorf("finalize audit record: %w", err)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockImportCompleted,
			AggregateType: enums.AggregateImportAudit,
			AggregateID:   record.ID,
			Actor:         outbox.NewActorRef(input.ActorID),
			Data: payloads.StockImportCompletedEvent{
				AuditID:      record.ID,
				Filename:     record.Filename,
				Status:       record.Status,
				TotalRows:    record.TotalRows,
				CreatedCount: record.CreatedCount,
				UpdatedCount: record.UpdatedCount,
				ErrorCount:   record.ErrorCount,
				PartNumbers:  touchedParts(plan.Create, update),
			},
		})
	})
	if err != nil {
		clearCounts(record)
		return s.fail(ctx, record, started, err)
	}

	s.metrics.AddRows(pipelineDirect, string(reconcile.OutcomeCreated), created)
	s.metrics.AddRows(pipelineDirect, string(reconcile.OutcomeUpdated), updated)
	s.metrics.AddRows(pipelineDirect, "error", errorRows)
	s.metrics.ObserveRun(pipelineDirect, string(record.Status), finished.Sub(started))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"status":  record.Status,
		"created": created,
		"updated": updated,
		"errors":  errorRows,
	}), "direct import finished")
	return record, nil
}

func (s *service) resolveMapping(mode enums.MappingMode, explicit columnmap.Mapping, headers []string) (columnmap.Mapping, error) {
	var mapping columnmap.Mapping
	if mode == enums.MappingModeExplicit {
		if err := s.mapper.Validate(explicit, headers); err != nil {
			return nil, err
		}
		mapping = columnmap.Resolve(explicit, headers)
	} else {
		mapping = s.mapper.Map(headers)
	}

	var missing []string
	for _, f := range []columnmap.Field{columnmap.FieldPartNumber, columnmap.FieldName} {
		if _, ok := mapping.Header(f); !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStructural, "required columns not found: "+strings.Join(missing, ", ")).
			WithDetails(map[string]any{"missing_fields": missing, "headers": headers})
	}
	return mapping, nil
}

// fail finalizes record as failed with a synthetic file-level error and
// returns the cause to the caller.
func (s *service) fail(ctx context.Context, record *models.ImportAuditRecord, started time.Time, cause error) (*models.ImportAuditRecord, error) {
	finished := s.now()
	record.Status = enums.ImportStatusFailed
	record.FinishedAt = &finished
	record.Errors = dbtypes.NewJSON(append(nonNil(record.Errors.Val), models.RowError{
		Row:     0,
		Field:   "file",
		Message: cause.Error(),
	}))
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := s.audits.Save(saveCtx, record); err != nil {
		s.logg.Error(ctx, "failed to finalize import audit record", err)
	}
	s.metrics.ObserveRun(pipelineDirect, string(record.Status), finished.Sub(started))
	s.logg.Error(ctx, "direct import failed", cause)

	if typed := pkgerrors.As(cause); typed != nil {
		return record, cause
	}
	return record, pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "direct import failed")
}

// clearCounts drops the counts of a rolled back run so the failed record
// does not claim writes that never happened.
func clearCounts(record *models.ImportAuditRecord) {
	record.CreatedCount = 0
	record.UpdatedCount = 0
}

func (s *service) GetAudit(ctx context.Context, id uuid.UUID) (*models.ImportAuditRecord, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit id is required")
	}
	record, err := s.audits.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "import audit record not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load import audit record")
	}
	return record, nil
}

func (s *service) ListAudits(ctx context.Context, params pagination.Params) (pagination.Page[models.ImportAuditRecord], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.ImportAuditRecord]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.audits.List(ctx, params)
	if err != nil {
		return pagination.Page[models.ImportAuditRecord]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list import audit records")
	}
	return pagination.Build(rows, params.Limit, func(r models.ImportAuditRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	}), nil
}

func finalStatus(total, errorRows int) enums.ImportStatus {
	switch {
	case errorRows == 0:
		return enums.ImportStatusCompleted
	case errorRows >= total:
		return enums.ImportStatusFailed
	default:
		return enums.ImportStatusPartial
	}
}

func touchedParts(created, updated []*models.StockItem) []string {
	out := make([]string, 0, len(created)+len(updated))
	for _, item := range created {
		out = append(out, item.PartNumber)
	}
	for _, item := range updated {
		out = append(out, item.PartNumber)
	}
	return out
}

// reservationConflicts re-reads the reservation counters of items under row
// locks and splits off every item whose new quantity is now below what is
// reserved. Conflicting items carry the fresh counter.
func reservationConflicts(ctx context.Context, repo *stock.Repository, items []*models.StockItem) (keep, conflicts []*models.StockItem, err error) {
	reserved := make(map[uuid.UUID]decimal.Decimal, len(items))
	for start := 0; start < len(items); start += recheckChunk {
		end := min(start+recheckChunk, len(items))
		parts := make([]string, 0, end-start)
		for _, item := range items[start:end] {
			parts = append(parts, item.PartNumber)
		}
		fresh, err := repo.LoadActiveByPartNumbers(ctx, parts, true)
		if err != nil {
			return nil, nil, err
		}
		for _, row := range fresh {
			reserved[row.ID] = row.QuantityReserved
		}
	}

	keep = make([]*models.StockItem, 0, len(items))
	for _, item := range items {
		current, ok := reserved[item.ID]
		if ok && item.QuantityAvailable.LessThan(current) {
			item.QuantityReserved = current
			conflicts = append(conflicts, item)
			continue
		}
		keep = append(keep, item)
	}
	return keep, conflicts, nil
}

func nonNil(errs []models.RowError) []models.RowError {
	if errs == nil {
		return []models.RowError{}
	}
	return errs
}
