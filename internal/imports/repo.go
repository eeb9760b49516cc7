package imports

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/pagination"
)

// AuditRepository persists import audit records.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx binds the repository to an open transaction.
func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	if tx == nil {
		return r
	}
	return &AuditRepository{db: tx}
}

func (r *AuditRepository) Create(ctx context.Context, record *models.ImportAuditRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Save writes every column of record.
func (r *AuditRepository) Save(ctx context.Context, record *models.ImportAuditRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *AuditRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ImportAuditRecord, error) {
	var record models.ImportAuditRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns audit records newest first.
func (r *AuditRepository) List(ctx context.Context, params pagination.Params) ([]models.ImportAuditRecord, error) {
	query, err := pagination.Apply(r.db.WithContext(ctx).Model(&models.ImportAuditRecord{}), params)
	if err != nil {
		return nil, err
	}
	var rows []models.ImportAuditRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
