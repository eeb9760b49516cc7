package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateStockItem     OutboxAggregateType = "stock_item"
	AggregateImportAudit   OutboxAggregateType = "import_audit"
	AggregateImportSession OutboxAggregateType = "import_session"
	AggregateReservation   OutboxAggregateType = "reservation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateStockItem,
	AggregateImportAudit,
	AggregateImportSession,
	AggregateReservation,
}

// IsValid reports whether the value is a known aggregate type.
func (o OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventStockImportCompleted  OutboxEventType = "stock_import_completed"
	EventStagedImportConfirmed OutboxEventType = "staged_import_confirmed"
	EventStockReserved         OutboxEventType = "stock_reserved"
	EventStockReleased         OutboxEventType = "stock_released"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStockImportCompleted,
	EventStagedImportConfirmed,
	EventStockReserved,
	EventStockReleased,
}

// IsValid reports whether the value is a known event type.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
