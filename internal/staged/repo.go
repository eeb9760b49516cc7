package staged

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	dbtypes "github.com/angelmondragon/materials-ledger/pkg/db/types"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
)

// Repository persists import sessions and the catalog they feed.
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

func (r *Repository) CreateSession(ctx context.Context, session *models.ImportSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *Repository) FindSession(ctx context.Context, id uuid.UUID) (*models.ImportSession, error) {
	var session models.ImportSession
	if err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Transition moves a session to status only if it is currently in one of
// from. It reports whether this call performed the transition.
func (r *Repository) Transition(ctx context.Context, id uint64, from []enums.ImportSessionStatus, status enums.ImportSessionStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.ImportSession{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// SetConfirmResult records the catalog rows a confirm inserted and how many
// new rows it had to skip.
func (r *Repository) SetConfirmResult(ctx context.Context, id uint64, ids []uuid.UUID, skipped int) error {
	return r.db.WithContext(ctx).
		Model(&models.ImportSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"imported_ids":  dbtypes.NewJSON(ids),
			"skipped_items": skipped,
		}).Error
}

// ActiveCatalog loads the keys of every active catalog row.
func (r *Repository) ActiveCatalog(ctx context.Context) ([]*models.CatalogItem, error) {
	var rows []*models.CatalogItem
	err := r.db.WithContext(ctx).
		Select("id", "catalog_number", "catalog_key").
		Where("active = ?", true).
		Find(&rows).Error
	return rows, err
}

// ExistingKeys returns which of keys already have a catalog row, active or
// not, since the key index spans both.
func (r *Repository) ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var found []string
	err := r.db.WithContext(ctx).
		Model(&models.CatalogItem{}).
		Where("catalog_key IN ?", keys).
		Pluck("catalog_key", &found).Error
	if err != nil {
		return nil, err
	}
	for _, k := range found {
		out[k] = struct{}{}
	}
	return out, nil
}

func (r *Repository) CreateCatalogItems(ctx context.Context, items []*models.CatalogItem, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return r.db.WithContext(ctx).CreateInBatches(items, batchSize).Error
}
