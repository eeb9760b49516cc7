// Package reservation checks, reserves and releases stock against the
// ledger's quantity counters.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/materials-ledger/internal/stock"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
	"github.com/angelmondragon/materials-ledger/pkg/metrics"
	"github.com/angelmondragon/materials-ledger/pkg/outbox"
	"github.com/angelmondragon/materials-ledger/pkg/outbox/payloads"
)

const (
	opCheck   = "check"
	opReserve = "reserve"
	opRelease = "release"
)

// Line is one part and quantity in a reservation request.
type Line struct {
	PartNumber string          `json:"part_number"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// Availability is the result of checking one requested line.
type Availability struct {
	PartNumber string                   `json:"part_number"`
	Requested  decimal.Decimal          `json:"requested"`
	Available  decimal.Decimal          `json:"available"`
	Status     enums.AvailabilityStatus `json:"status"`
}

type txClient interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	SupportsRowLocks() bool
}

// ManagerParams groups dependencies for the reservation manager.
type ManagerParams struct {
	DB      txClient
	Stock   *stock.Repository
	Locker  Locker
	Outbox  outbox.Emitter
	Metrics *metrics.ReservationMetrics
	Logger  *logger.Logger
}

// Manager applies reservations. Every mutating call holds the part locks
// for its duration and guards each counter change with a conditional update.
type Manager struct {
	db      txClient
	stock   *stock.Repository
	locker  Locker
	outbox  outbox.Emitter
	metrics *metrics.ReservationMetrics
	logg    *logger.Logger
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Manager{
		db:      params.DB,
		stock:   params.Stock,
		locker:  params.Locker,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// CheckAvailability classifies every line against free stock in request
// order. It never writes.
func (m *Manager) CheckAvailability(ctx context.Context, lines []Line) ([]Availability, error) {
	if err := validateLines(lines); err != nil {
		m.metrics.Inc(opCheck, "invalid")
		return nil, err
	}
	rows, err := m.stock.LoadActiveByPartNumbers(ctx, partNumbers(lines), false)
	if err != nil {
		m.metrics.Inc(opCheck, "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock items")
	}
	index := indexRows(rows)

	out := make([]Availability, 0, len(lines))
	for _, line := range lines {
		part := strings.TrimSpace(line.PartNumber)
		result := Availability{PartNumber: part, Requested: line.Quantity, Available: decimal.Zero}
		item, ok := index[part]
		if !ok {
			result.Status = enums.AvailabilityNotFound
			out = append(out, result)
			continue
		}
		result.Available = item.Free()
		switch {
		case result.Available.GreaterThanOrEqual(line.Quantity):
			result.Status = enums.AvailabilityAvailable
		case result.Available.IsPositive():
			result.Status = enums.AvailabilityPartial
		default:
			result.Status = enums.AvailabilityUnavailable
		}
		out = append(out, result)
	}
	m.metrics.Inc(opCheck, "ok")
	return out, nil
}

// Reserve holds every line or none. Lines for the same part are summed.
func (m *Manager) Reserve(ctx context.Context, lines []Line, orderID string) error {
	lines, err := aggregate(lines)
	if err != nil {
		m.metrics.Inc(opReserve, "invalid")
		return err
	}
	unlock, err := m.locker.Lock(ctx, partNumbers(lines))
	if err != nil {
		m.metrics.Inc(opReserve, "lock_timeout")
		return lockError(err)
	}
	defer unlock()

	reservationID := uuid.New()
	err = m.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.stock.WithTx(tx)
		index, err := m.preload(ctx, repo, lines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if free := index[line.PartNumber].Free(); free.LessThan(line.Quantity) {
				return insufficient(line, free)
			}
		}
		for _, line := range lines {
			ok, err := repo.Reserve(ctx, line.PartNumber, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
			if !ok {
				// Another writer moved the counters since preload.
				return insufficient(line, index[line.PartNumber].Free())
			}
		}
		return m.emit(ctx, tx, enums.EventStockReserved, reservationID, orderID, lines)
	})
	if err != nil {
		m.metrics.Inc(opReserve, outcome(err))
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit reserve")
		}
		return err
	}

	m.metrics.Inc(opReserve, "ok")
	m.logg.Info(m.logg.WithParts(m.logg.WithFields(ctx, map[string]any{
		"reservation_id": reservationID.String(),
		"order_id":       orderID,
	}), partNumbers(lines)), "stock reserved")
	return nil
}

// Release returns reserved quantity to the free pool. Releasing more than
// is reserved floors the counter at zero without error.
func (m *Manager) Release(ctx context.Context, lines []Line, orderID string) error {
	lines, err := aggregate(lines)
	if err != nil {
		m.metrics.Inc(opRelease, "invalid")
		return err
	}
	unlock, err := m.locker.Lock(ctx, partNumbers(lines))
	if err != nil {
		m.metrics.Inc(opRelease, "lock_timeout")
		return lockError(err)
	}
	defer unlock()

	reservationID := uuid.New()
	var floored []string
	err = m.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.stock.WithTx(tx)
		index, err := m.preload(ctx, repo, lines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if index[line.PartNumber].QuantityReserved.LessThan(line.Quantity) {
				floored = append(floored, line.PartNumber)
			}
			if _, err := repo.Release(ctx, line.PartNumber, line.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
			}
		}
		return m.emit(ctx, tx, enums.EventStockReleased, reservationID, orderID, lines)
	})
	if err != nil {
		m.metrics.Inc(opRelease, outcome(err))
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit release")
		}
		return err
	}

	m.metrics.Inc(opRelease, "ok")
	logCtx := m.logg.WithParts(m.logg.WithFields(ctx, map[string]any{
		"reservation_id": reservationID.String(),
		"order_id":       orderID,
	}), partNumbers(lines))
	if len(floored) > 0 {
		m.logg.Warn(m.logg.WithField(logCtx, "floored_parts", floored), "release exceeded reserved quantity")
	}
	m.logg.Info(logCtx, "stock released")
	return nil
}

// preload loads every referenced row once, locking them where the database
// supports it, and fails on the first unknown part in line order.
func (m *Manager) preload(ctx context.Context, repo *stock.Repository, lines []Line) (map[string]*models.StockItem, error) {
	rows, err := repo.LoadActiveByPartNumbers(ctx, partNumbers(lines), m.db.SupportsRowLocks())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock items")
	}
	index := indexRows(rows)
	for _, line := range lines {
		if _, ok := index[line.PartNumber]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown part number "+line.PartNumber).
				WithDetails(map[string]any{"part_number": line.PartNumber})
		}
	}
	return index, nil
}

func (m *Manager) emit(ctx context.Context, tx *gorm.DB, event enums.OutboxEventType, id uuid.UUID, orderID string, lines []Line) error {
	payloadLines := make([]payloads.ReservationLine, 0, len(lines))
	for _, line := range lines {
		payloadLines = append(payloadLines, payloads.ReservationLine{PartNumber: line.PartNumber, Quantity: line.Quantity})
	}
	var order *string
	if orderID != "" {
		order = &orderID
	}
	if err := m.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateReservation,
		AggregateID:   id,
		Data: payloads.StockReservationEvent{
			ReservationID: id,
			OrderID:       order,
			Lines:         payloadLines,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation event")
	}
	return nil
}

// aggregate validates lines and sums repeated parts, keeping first-seen order.
func aggregate(lines []Line) ([]Line, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(lines))
	pos := make(map[string]int, len(lines))
	for _, line := range lines {
		part := strings.TrimSpace(line.PartNumber)
		if i, ok := pos[part]; ok {
			out[i].Quantity = out[i].Quantity.Add(line.Quantity)
			continue
		}
		pos[part] = len(out)
		out = append(out, Line{PartNumber: part, Quantity: line.Quantity})
	}
	return out, nil
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	for i, line := range lines {
		if strings.TrimSpace(line.PartNumber) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "part number is required").
				WithDetails(map[string]any{"line": i})
		}
		if !line.Quantity.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"line": i, "part_number": line.PartNumber})
		}
	}
	return nil
}

func partNumbers(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimSpace(line.PartNumber))
	}
	return out
}

func indexRows(rows []models.StockItem) map[string]*models.StockItem {
	index := make(map[string]*models.StockItem, len(rows))
	for i := range rows {
		index[rows[i].PartNumber] = &rows[i]
	}
	return index
}

func insufficient(line Line, free decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stock for "+line.PartNumber).
		WithDetails(map[string]any{
			"part_number": line.PartNumber,
			"requested":   line.Quantity.String(),
			"available":   free.String(),
		})
}

func lockError(err error) error {
	if errors.Is(err, ErrLockTimeout) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "parts are locked by another reservation")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire part locks")
}

func outcome(err error) string {
	switch {
	case pkgerrors.Is(err, pkgerrors.CodeInsufficient):
		return "insufficient"
	case pkgerrors.Is(err, pkgerrors.CodeNotFound):
		return "not_found"
	default:
		return "error"
	}
}
