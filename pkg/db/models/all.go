package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&StockItem{},
		&ImportAuditRecord{},
		&ImportSession{},
		&CatalogItem{},
		&OutboxEvent{},
	}
}
