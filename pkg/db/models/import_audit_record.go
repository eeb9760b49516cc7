package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/materials-ledger/pkg/db/types"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
)

// RowError describes one rejected input row. Row 0 is reserved for
// file-level failures.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// ImportAuditRecord is the audit trail of a single direct import run.
type ImportAuditRecord struct {
	ID            uuid.UUID                       `gorm:"column:id;type:uuid;primaryKey"`
	Filename      string                          `gorm:"column:filename;not null"`
	FileType      enums.FileType                  `gorm:"column:file_type;type:text;not null"`
	FileSize      int64                           `gorm:"column:file_size;not null;default:0"`
	Status        enums.ImportStatus              `gorm:"column:status;type:text;not null;default:pending"`
	MappingMode   enums.MappingMode               `gorm:"column:mapping_mode;type:text;not null;default:auto"`
	TotalRows     int                             `gorm:"column:total_rows;not null;default:0"`
	CreatedCount  int                             `gorm:"column:created_count;not null;default:0"`
	UpdatedCount  int                             `gorm:"column:updated_count;not null;default:0"`
	ErrorCount    int                             `gorm:"column:error_count;not null;default:0"`
	Errors        dbtypes.JSON[[]RowError]        `gorm:"column:errors;type:jsonb;not null"`
	ColumnMapping dbtypes.JSON[map[string]string] `gorm:"column:column_mapping;type:jsonb;not null"`
	ActorID       *string                         `gorm:"column:actor_id"`
	StartedAt     *time.Time                      `gorm:"column:started_at"`
	FinishedAt    *time.Time                      `gorm:"column:finished_at"`
	CreatedAt     time.Time                       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                       `gorm:"column:updated_at;autoUpdateTime"`
}

func (ImportAuditRecord) TableName() string { return "import_audit_records" }

func (r *ImportAuditRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
