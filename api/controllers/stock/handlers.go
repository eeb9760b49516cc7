package stock

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/materials-ledger/api/responses"
	"github.com/angelmondragon/materials-ledger/api/validators"
	"github.com/angelmondragon/materials-ledger/internal/reservation"
	internalstock "github.com/angelmondragon/materials-ledger/internal/stock"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
	"github.com/angelmondragon/materials-ledger/pkg/pagination"
)

const maxPartNumberLen = 128

// Reserver is the reservation surface the stock routes call.
type Reserver interface {
	CheckAvailability(ctx context.Context, lines []reservation.Line) ([]reservation.Availability, error)
	Reserve(ctx context.Context, lines []reservation.Line, orderID string) error
	Release(ctx context.Context, lines []reservation.Line, orderID string) error
}

type lineRequest struct {
	PartNumber string          `json:"part_number" validate:"required,max=128"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type linesRequest struct {
	OrderID string        `json:"order_id" validate:"max=128"`
	Lines   []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r linesRequest) toLines() []reservation.Line {
	out := make([]reservation.Line, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, reservation.Line{PartNumber: strings.TrimSpace(l.PartNumber), Quantity: l.Quantity})
	}
	return out
}

// Availability reports per-line stock status without changing anything.
func Availability(mgr Reserver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgr == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation manager unavailable"))
			return
		}

		var payload linesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := mgr.CheckAvailability(r.Context(), payload.toLines())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, results)
	}
}

// Reserve holds every requested line or none of them.
func Reserve(mgr Reserver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgr == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation manager unavailable"))
			return
		}

		var payload linesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := payload.toLines()
		if err := mgr.Reserve(r.Context(), lines, validators.SanitizeString(payload.OrderID, 0)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservationResponse{Status: "reserved", OrderID: payload.OrderID, Lines: lines})
	}
}

// Release returns reserved quantities to free stock.
func Release(mgr Reserver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgr == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation manager unavailable"))
			return
		}

		var payload linesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := payload.toLines()
		if err := mgr.Release(r.Context(), lines, validators.SanitizeString(payload.OrderID, 0)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservationResponse{Status: "released", OrderID: payload.OrderID, Lines: lines})
	}
}

type createRequest struct {
	PartNumber        string           `json:"part_number" validate:"required,max=128"`
	Name              string           `json:"name" validate:"required,max=512"`
	Description       *string          `json:"description"`
	QuantityAvailable decimal.Decimal  `json:"quantity_available"`
	Unit              string           `json:"unit" validate:"max=32"`
	UnitPrice         *decimal.Decimal `json:"unit_price"`
	Currency          string           `json:"currency"`
	WarehouseLocation *string          `json:"warehouse_location"`
	Supplier          *string          `json:"supplier"`
	MinStockLevel     *decimal.Decimal `json:"min_stock_level"`
	Barcode           *string          `json:"barcode"`
	EANCode           *string          `json:"ean_code"`
}

func (r createRequest) toInput() (internalstock.CreateInput, error) {
	input := internalstock.CreateInput{
		PartNumber:        strings.TrimSpace(r.PartNumber),
		Name:              strings.TrimSpace(r.Name),
		Description:       r.Description,
		QuantityAvailable: r.QuantityAvailable,
		Unit:              strings.TrimSpace(r.Unit),
		WarehouseLocation: r.WarehouseLocation,
		Supplier:          r.Supplier,
		Barcode:           r.Barcode,
		EANCode:           r.EANCode,
	}
	if r.UnitPrice != nil {
		input.UnitPrice = decimal.NewNullDecimal(*r.UnitPrice)
	}
	if r.MinStockLevel != nil {
		input.MinStockLevel = decimal.NewNullDecimal(*r.MinStockLevel)
	}
	if raw := strings.ToUpper(strings.TrimSpace(r.Currency)); raw != "" {
		currency, err := enums.ParseCurrency(raw)
		if err != nil {
			return internalstock.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
		input.Currency = currency
	}
	return input, nil
}

// Create adds a manual ledger row.
func Create(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, itemResponseFromModel(item))
	}
}

// List pages through active ledger rows ordered by part number.
func List(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := pagination.Page[itemResponse]{
			Items:      make([]itemResponse, 0, len(page.Items)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Items {
			out.Items = append(out.Items, itemResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// Detail returns the active row for a part number.
func Detail(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		part, err := partNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), part)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, itemResponseFromModel(item))
	}
}

// Deactivate retires the active row for a part number.
func Deactivate(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		part, err := partNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), part); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"part_number": part, "active": false})
	}
}

func partNumberParam(r *http.Request) (string, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "partNumber"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid part number")
	}
	part := validators.SanitizeString(raw, maxPartNumberLen)
	if part == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "part number is required")
	}
	return part, nil
}

type reservationResponse struct {
	Status  string             `json:"status"`
	OrderID string             `json:"order_id,omitempty"`
	Lines   []reservation.Line `json:"lines"`
}

type itemResponse struct {
	ID                uuid.UUID           `json:"id"`
	PartNumber        string              `json:"part_number"`
	Name              string              `json:"name"`
	Description       *string             `json:"description,omitempty"`
	QuantityAvailable decimal.Decimal     `json:"quantity_available"`
	QuantityReserved  decimal.Decimal     `json:"quantity_reserved"`
	QuantityFree      decimal.Decimal     `json:"quantity_free"`
	Unit              string              `json:"unit"`
	UnitPrice         decimal.NullDecimal `json:"unit_price"`
	Currency          enums.Currency      `json:"currency"`
	WarehouseLocation *string             `json:"warehouse_location,omitempty"`
	Supplier          *string             `json:"supplier,omitempty"`
	MinStockLevel     decimal.NullDecimal `json:"min_stock_level"`
	Barcode           *string             `json:"barcode,omitempty"`
	EANCode           *string             `json:"ean_code,omitempty"`
	Source            enums.StockSource   `json:"source"`
	LastImportAt      *time.Time          `json:"last_import_at,omitempty"`
	LastImportFile    *string             `json:"last_import_file,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func itemResponseFromModel(m *models.StockItem) itemResponse {
	return itemResponse{
		ID:                m.ID,
		PartNumber:        m.PartNumber,
		Name:              m.Name,
		Description:       m.Description,
		QuantityAvailable: m.QuantityAvailable,
		QuantityReserved:  m.QuantityReserved,
		QuantityFree:      m.Free(),
		Unit:              m.Unit,
		UnitPrice:         m.UnitPrice,
		Currency:          m.Currency,
		WarehouseLocation: m.WarehouseLocation,
		Supplier:          m.Supplier,
		MinStockLevel:     m.MinStockLevel,
		Barcode:           m.Barcode,
		EANCode:           m.EANCode,
		Source:            m.Source,
		LastImportAt:      m.LastImportAt,
		LastImportFile:    m.LastImportFile,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
