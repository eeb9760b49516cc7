package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/materials-ledger/pkg/db"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
	"github.com/angelmondragon/materials-ledger/pkg/pagination"
)

type stockRepository interface {
	Create(ctx context.Context, item *models.StockItem) error
	FindActive(ctx context.Context, partNumber string) (*models.StockItem, error)
	ListActive(ctx context.Context, params pagination.Params) ([]models.StockItem, error)
	Deactivate(ctx context.Context, partNumber string) (bool, error)
}

// Service exposes manual maintenance of the stock ledger.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.StockItem, error)
	Get(ctx context.Context, partNumber string) (*models.StockItem, error)
	List(ctx context.Context, params pagination.Params) (pagination.Page[models.StockItem], error)
	Deactivate(ctx context.Context, partNumber string) error
}

// CreateInput describes a manually entered ledger row.
type CreateInput struct {
	PartNumber        string
	Name              string
	Description       *string
	QuantityAvailable decimal.Decimal
	Unit              string
	UnitPrice         decimal.NullDecimal
	Currency          enums.Currency
	WarehouseLocation *string
	Supplier          *string
	MinStockLevel     decimal.NullDecimal
	Barcode           *string
	EANCode           *string
}

type service struct {
	repo stockRepository
}

func NewService(repo stockRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.StockItem, error) {
	partNumber := strings.TrimSpace(input.PartNumber)
	if partNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part number is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.QuantityAvailable.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.DefaultCurrency
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = models.DefaultUnit
	}

	if _, err := s.repo.FindActive(ctx, partNumber); err == nil {
		return nil, duplicatePart(partNumber)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup stock item")
	}

	item := &models.StockItem{
		PartNumber:        partNumber,
		Name:              name,
		Description:       input.Description,
		QuantityAvailable: input.QuantityAvailable,
		QuantityReserved:  decimal.Zero,
		Unit:              unit,
		UnitPrice:         input.UnitPrice,
		Currency:          currency,
		WarehouseLocation: input.WarehouseLocation,
		Supplier:          input.Supplier,
		MinStockLevel:     input.MinStockLevel,
		Barcode:           input.Barcode,
		EANCode:           input.EANCode,
		Source:            enums.StockSourceManual,
		Active:            true,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, duplicatePart(partNumber)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock item")
	}
	return item, nil
}

func (s *service) Get(ctx context.Context, partNumber string) (*models.StockItem, error) {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part number is required")
	}
	item, err := s.repo.FindActive(ctx, partNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup stock item")
	}
	return item, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (pagination.Page[models.StockItem], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.StockItem]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListActive(ctx, params)
	if err != nil {
		return pagination.Page[models.StockItem]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock items")
	}
	return pagination.Build(rows, params.Limit, func(item models.StockItem) pagination.Cursor {
		return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
	}), nil
}

// Deactivate soft deletes a row. Rows still holding reservations are kept
// active so the hold can be released.
func (s *service) Deactivate(ctx context.Context, partNumber string) error {
	item, err := s.Get(ctx, partNumber)
	if err != nil {
		return err
	}
	if item.QuantityReserved.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "stock item has active reservations").
			WithDetails(map[string]any{"part_number": item.PartNumber, "reserved": item.QuantityReserved.String()})
	}
	ok, err := s.repo.Deactivate(ctx, item.PartNumber)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate stock item")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	return nil
}

func duplicatePart(partNumber string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "part number already exists").
		WithDetails(map[string]any{"part_number": partNumber})
}
