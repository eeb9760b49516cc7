package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/materials-ledger/pkg/enums"
)

// StockItem is one row of the stock ledger. Part numbers are unique among
// active rows only; deactivated rows are kept for history.
type StockItem struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PartNumber        string              `gorm:"column:part_number;not null;uniqueIndex:ux_stock_items_active_part,where:active"`
	Name              string              `gorm:"column:name;not null"`
	Description       *string             `gorm:"column:description"`
	QuantityAvailable decimal.Decimal     `gorm:"column:quantity_available;type:numeric(14,3);not null;default:0;check:chk_stock_items_available,quantity_available >= 0"`
	QuantityReserved  decimal.Decimal     `gorm:"column:quantity_reserved;type:numeric(14,3);not null;default:0;check:chk_stock_items_reserved,quantity_reserved >= 0 AND quantity_reserved <= quantity_available"`
	Unit              string              `gorm:"column:unit;not null;default:szt"`
	UnitPrice         decimal.NullDecimal `gorm:"column:unit_price;type:numeric(14,2)"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null;default:PLN"`
	WarehouseLocation *string             `gorm:"column:warehouse_location"`
	Supplier          *string             `gorm:"column:supplier"`
	MinStockLevel     decimal.NullDecimal `gorm:"column:min_stock_level;type:numeric(14,3)"`
	Barcode           *string             `gorm:"column:barcode"`
	EANCode           *string             `gorm:"column:ean_code"`
	ExternalID        *string             `gorm:"column:external_id"`
	ExternalIndex     *string             `gorm:"column:external_index"`
	Source            enums.StockSource   `gorm:"column:source;type:text;not null;default:manual"`
	LastImportAt      *time.Time          `gorm:"column:last_import_at"`
	LastImportFile    *string             `gorm:"column:last_import_file"`
	Active            bool                `gorm:"column:active;not null;default:true"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// DefaultUnit is the unit of measure assumed when none is given.
const DefaultUnit = "szt"

func (StockItem) TableName() string { return "stock_items" }

func (s *StockItem) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Free returns the quantity not held by reservations.
func (s StockItem) Free() decimal.Decimal {
	return s.QuantityAvailable.Sub(s.QuantityReserved)
}
