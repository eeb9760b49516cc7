package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/materials-ledger/pkg/db/types"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
)

// ClassifiedRow is a parsed staged-import row and the bucket it landed in.
type ClassifiedRow struct {
	Row             int                     `json:"row"`
	Bucket          enums.RowClassification `json:"bucket"`
	CatalogNumber   string                  `json:"catalogNumber"`
	Name            string                  `json:"name"`
	Unit            string                  `json:"unit"`
	DefaultQuantity decimal.NullDecimal     `json:"defaultQuantity"`
	Category        string                  `json:"category,omitempty"`
	Supplier        string                  `json:"supplier,omitempty"`
	UnitPrice       decimal.NullDecimal     `json:"unitPrice"`
}

// SessionClassification is the snapshot confirm replays without re-parsing.
type SessionClassification struct {
	Rows   []ClassifiedRow `json:"rows"`
	Errors []RowError      `json:"errors"`
}

// ImportSession is a staged import awaiting confirmation or cancellation.
type ImportSession struct {
	ID             uint64                              `gorm:"column:id;primaryKey;autoIncrement"`
	UUID           uuid.UUID                           `gorm:"column:uuid;type:uuid;not null;uniqueIndex:ux_import_sessions_uuid"`
	Filename       string                              `gorm:"column:filename;not null"`
	Status         enums.ImportSessionStatus           `gorm:"column:status;type:text;not null;default:pending"`
	TotalRows      int                                 `gorm:"column:total_rows;not null;default:0"`
	NewItems       int                                 `gorm:"column:new_items;not null;default:0"`
	ExistingItems  int                                 `gorm:"column:existing_items;not null;default:0"`
	ErrorItems     int                                 `gorm:"column:error_items;not null;default:0"`
	// SkippedItems counts new rows confirm left out because their key was
	// taken after preview.
	SkippedItems   int                                 `gorm:"column:skipped_items;not null;default:0"`
	Classification dbtypes.JSON[SessionClassification] `gorm:"column:classification;type:jsonb;not null"`
	ImportedIDs    dbtypes.JSON[[]uuid.UUID]           `gorm:"column:imported_ids;type:jsonb;not null"`
	ActorID        *string                             `gorm:"column:actor_id"`
	ConfirmedBy    *string                             `gorm:"column:confirmed_by"`
	ConfirmedAt    *time.Time                          `gorm:"column:confirmed_at"`
	CancelledAt    *time.Time                          `gorm:"column:cancelled_at"`
	CreatedAt      time.Time                           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                           `gorm:"column:updated_at;autoUpdateTime"`
}

func (ImportSession) TableName() string { return "import_sessions" }

func (s *ImportSession) BeforeCreate(*gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	return nil
}
