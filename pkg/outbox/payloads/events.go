package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/materials-ledger/pkg/enums"
)

// StockImportCompletedEvent is emitted when a direct import commits its batch writes.
type StockImportCompletedEvent struct {
	AuditID      uuid.UUID          `json:"audit_id"`
	Filename     string             `json:"filename"`
	Status       enums.ImportStatus `json:"status"`
	TotalRows    int                `json:"total_rows"`
	CreatedCount int                `json:"created_count"`
	UpdatedCount int                `json:"updated_count"`
	ErrorCount   int                `json:"error_count"`
	PartNumbers  []string           `json:"part_numbers"`
}

// StagedImportConfirmedEvent is emitted when a staged session inserts its new rows.
type StagedImportConfirmedEvent struct {
	SessionUUID uuid.UUID   `json:"session_uuid"`
	Filename    string      `json:"filename"`
	ImportedIDs []uuid.UUID `json:"imported_ids"`
	Skipped     int         `json:"skipped"`
}

// ReservationLine mirrors one reserved or released part.
type ReservationLine struct {
	PartNumber string          `json:"part_number"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// StockReservationEvent is shared by stock_reserved and stock_released.
type StockReservationEvent struct {
	ReservationID uuid.UUID         `json:"reservation_id"`
	OrderID       *string           `json:"order_id,omitempty"`
	Lines         []ReservationLine `json:"lines"`
}
