package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogItem is a product definition populated by staged imports.
type CatalogItem struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CatalogNumber   string              `gorm:"column:catalog_number;not null"`
	CatalogKey      string              `gorm:"column:catalog_key;not null;uniqueIndex:ux_catalog_items_key"`
	Name            string              `gorm:"column:name;not null"`
	Unit            string              `gorm:"column:unit;not null"`
	DefaultQuantity decimal.NullDecimal `gorm:"column:default_quantity;type:numeric(14,3)"`
	Category        *string             `gorm:"column:category"`
	Supplier        *string             `gorm:"column:supplier"`
	UnitPrice       decimal.NullDecimal `gorm:"column:unit_price;type:numeric(14,2)"`
	Active          bool                `gorm:"column:active;not null;default:true"`
	ImportSessionID *uint64             `gorm:"column:import_session_id"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (CatalogItem) TableName() string { return "catalog_items" }

func (c *CatalogItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CatalogKey == "" {
		c.CatalogKey = CatalogKeyOf(c.CatalogNumber)
	}
	return nil
}

// CatalogKeyOf normalizes a catalog number for case-insensitive uniqueness.
func CatalogKeyOf(catalogNumber string) string {
	return strings.ToLower(strings.TrimSpace(catalogNumber))
}
