package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/pagination"
)

// updateChunk bounds the number of rows per batched UPDATE statement.
const updateChunk = 100

// importColumns are the ledger columns an import may overwrite. Reservation
// counters are never written by imports.
var importColumns = []string{
	"name",
	"description",
	"quantity_available",
	"unit",
	"unit_price",
	"currency",
	"warehouse_location",
	"supplier",
	"barcode",
	"ean_code",
	"external_id",
	"external_index",
	"source",
	"last_import_at",
	"last_import_file",
}

func importValues(item *models.StockItem) []any {
	return []any{
		item.Name,
		item.Description,
		item.QuantityAvailable,
		item.Unit,
		item.UnitPrice,
		item.Currency,
		item.WarehouseLocation,
		item.Supplier,
		item.Barcode,
		item.EANCode,
		item.ExternalID,
		item.ExternalIndex,
		item.Source,
		item.LastImportAt,
		item.LastImportFile,
	}
}

// Repository persists stock ledger rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, item *models.StockItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindActive returns the active row for partNumber or gorm.ErrRecordNotFound.
func (r *Repository) FindActive(ctx context.Context, partNumber string) (*models.StockItem, error) {
	var item models.StockItem
	err := r.db.WithContext(ctx).
		Where("part_number = ? AND active = ?", partNumber, true).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LoadActive preloads the whole active ledger in one query.
func (r *Repository) LoadActive(ctx context.Context) ([]*models.StockItem, error) {
	var rows []*models.StockItem
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("part_number ASC").
		Find(&rows).Error
	return rows, err
}

// LoadActiveByPartNumbers fetches the referenced active rows in one query.
// With lock set the rows are locked FOR UPDATE until the transaction ends.
func (r *Repository) LoadActiveByPartNumbers(ctx context.Context, partNumbers []string, lock bool) ([]models.StockItem, error) {
	if len(partNumbers) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("part_number IN ?", partNumbers).
		Order("part_number ASC")
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []models.StockItem
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActive returns a page of active rows, newest first.
func (r *Repository) ListActive(ctx context.Context, params pagination.Params) ([]models.StockItem, error) {
	query, err := pagination.Apply(r.db.WithContext(ctx).Model(&models.StockItem{}).Where("active = ?", true), params)
	if err != nil {
		return nil, err
	}
	var rows []models.StockItem
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Deactivate soft deletes the active row for partNumber and reports whether
// a row was affected.
func (r *Repository) Deactivate(ctx context.Context, partNumber string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("part_number = ? AND active = ?", partNumber, true).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// Reserve adds qty to the reservation counter in a single guarded statement.
// It reports false, leaving the row unchanged, when the result would exceed
// the available quantity.
func (r *Repository) Reserve(ctx context.Context, partNumber string, qty decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("part_number = ? AND active = ?", partNumber, true).
		Where("quantity_reserved + ? <= quantity_available", qty).
		UpdateColumns(map[string]any{
			"quantity_reserved": gorm.Expr("quantity_reserved + ?", qty),
			"updated_at":        time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// Release subtracts qty from the reservation counter, flooring at zero.
func (r *Repository) Release(ctx context.Context, partNumber string, qty decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("part_number = ? AND active = ?", partNumber, true).
		UpdateColumns(map[string]any{
			"quantity_reserved": gorm.Expr("CASE WHEN quantity_reserved > ? THEN quantity_reserved - ? ELSE 0 END", qty, qty),
			"updated_at":        time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// CreateBatch inserts new rows with multi-row INSERT statements.
func (r *Repository) CreateBatch(ctx context.Context, items []*models.StockItem, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = updateChunk
	}
	return r.db.WithContext(ctx).CreateInBatches(items, batchSize).Error
}

// UpdateBatch writes the import-owned columns of items with one UPDATE per
// chunk, leaving quantity_reserved untouched.
func (r *Repository) UpdateBatch(ctx context.Context, items []*models.StockItem) error {
	now := time.Now().UTC()
	for start := 0; start < len(items); start += updateChunk {
		end := min(start+updateChunk, len(items))
		sql, args := buildBatchUpdate(items[start:end], now)
		res := r.db.WithContext(ctx).Exec(sql, args...)
		if res.Error != nil {
			return res.Error
		}
		if int(res.RowsAffected) != end-start {
			return fmt.Errorf("batch update touched %d of %d stock rows", res.RowsAffected, end-start)
		}
	}
	return nil
}

func buildBatchUpdate(items []*models.StockItem, now time.Time) (string, []any) {
	var (
		b    strings.Builder
		args []any
		ids  = make([]any, len(items))
	)
	values := make([][]any, len(items))
	for i, item := range items {
		ids[i] = item.ID
		values[i] = importValues(item)
	}

	b.WriteString("UPDATE stock_items SET ")
	for col, name := range importColumns {
		b.WriteString(name)
		b.WriteString(" = CASE id")
		for i := range items {
			b.WriteString(" WHEN ? THEN ?")
			args = append(args, ids[i], values[i][col])
		}
		b.WriteString(" ELSE ")
		b.WriteString(name)
		b.WriteString(" END, ")
	}
	b.WriteString("updated_at = ? WHERE id IN ?")
	args = append(args, now, ids)
	return b.String(), args
}
