package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSyncRuleRepository implements paymentsync.RuleRepository using GORM
type GormSyncRuleRepository struct {
	db *gorm.DB
}

// NewGormSyncRuleRepository creates a new GormSyncRuleRepository
func NewGormSyncRuleRepository(db *gorm.DB) *GormSyncRuleRepository {
	return &GormSyncRuleRepository{db: db}
}

// FindByID finds a rule by ID
func (r *GormSyncRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentsync.SyncRule, error) {
	var model models.SyncRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindActive lists active rules for (source, trigger)
func (r *GormSyncRuleRepository) FindActive(ctx context.Context, source payment.Kind, trigger paymentsync.Trigger) ([]paymentsync.SyncRule, error) {
	var rows []models.SyncRuleModel
	if err := r.db.WithContext(ctx).
		Where("source_model = ? AND trigger_event = ? AND is_active = ?", source, trigger, true).
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return rulesToDomain(rows), nil
}

// FindByName finds a rule by its unique name; nil when absent
func (r *GormSyncRuleRepository) FindByName(ctx context.Context, name string) (*paymentsync.SyncRule, error) {
	var model models.SyncRuleModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists every rule ordered by source, trigger and priority
func (r *GormSyncRuleRepository) FindAll(ctx context.Context) ([]paymentsync.SyncRule, error) {
	var rows []models.SyncRuleModel
	if err := r.db.WithContext(ctx).
		Order("source_model ASC").
		Order("trigger_event ASC").
		Order("priority DESC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return rulesToDomain(rows), nil
}

// Save creates or updates a rule
func (r *GormSyncRuleRepository) Save(ctx context.Context, rule *paymentsync.SyncRule) error {
	model := &models.SyncRuleModel{}
	model.FromDomain(rule)
	return dbError(r.db.WithContext(ctx).Save(model).Error)
}

func rulesToDomain(rows []models.SyncRuleModel) []paymentsync.SyncRule {
	out := make([]paymentsync.SyncRule, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormSyncRuleRepository implements RuleRepository
var _ paymentsync.RuleRepository = (*GormSyncRuleRepository)(nil)

// GormSyncOperationRepository implements paymentsync.OperationRepository using GORM
type GormSyncOperationRepository struct {
	db *gorm.DB
}

// NewGormSyncOperationRepository creates a new GormSyncOperationRepository
func NewGormSyncOperationRepository(db *gorm.DB) *GormSyncOperationRepository {
	return &GormSyncOperationRepository{db: db}
}

// FindByID finds an operation by ID
func (r *GormSyncOperationRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentsync.SyncOperation, error) {
	var model models.SyncOperationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	op, err := model.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to decode sync operation %s: %w", id, err)
	}
	return op, nil
}

func (r *GormSyncOperationRepository) filtered(ctx context.Context, filter paymentsync.OperationFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.SyncOperationModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentID != nil {
		query = query.Where("payment_id = ?", *filter.PaymentID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	return query
}

// FindAll lists operations matching the filter
func (r *GormSyncOperationRepository) FindAll(ctx context.Context, filter paymentsync.OperationFilter) ([]paymentsync.SyncOperation, error) {
	query := applyFilter(r.filtered(ctx, filter), filter.Filter, SyncOperationSortFields, "created_at")

	var rows []models.SyncOperationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	out := make([]paymentsync.SyncOperation, 0, len(rows))
	for i := range rows {
		op, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode sync operation %s: %w", rows[i].ID, err)
		}
		out = append(out, *op)
	}
	return out, nil
}

// Count counts operations matching the filter
func (r *GormSyncOperationRepository) Count(ctx context.Context, filter paymentsync.OperationFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, filter).Count(&count).Error; err != nil {
		return 0, dbError(err)
	}
	return count, nil
}

// Save creates or updates an operation
func (r *GormSyncOperationRepository) Save(ctx context.Context, op *paymentsync.SyncOperation) error {
	model := &models.SyncOperationModel{}
	if err := model.FromDomain(op); err != nil {
		return fmt.Errorf("failed to encode sync operation %s: %w", op.ID, err)
	}
	return dbError(r.db.WithContext(ctx).Save(model).Error)
}

// Ensure GormSyncOperationRepository implements OperationRepository
var _ paymentsync.OperationRepository = (*GormSyncOperationRepository)(nil)

// GormSyncLogRepository implements paymentsync.LogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// SaveBatch appends log rows in one insert
func (r *GormSyncLogRepository) SaveBatch(ctx context.Context, logs []paymentsync.SyncLog) error {
	if len(logs) == 0 {
		return nil
	}
	rows := make([]models.SyncLogModel, len(logs))
	for i := range logs {
		rows[i].FromDomain(logs[i])
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	return dbError(r.db.WithContext(ctx).CreateInBatches(rows, 100).Error)
}

// FindByOperation lists the log rows of an operation in write order
func (r *GormSyncLogRepository) FindByOperation(ctx context.Context, opID uuid.UUID) ([]paymentsync.SyncLog, error) {
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("operation_id = ?", opID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	out := make([]paymentsync.SyncLog, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Ensure GormSyncLogRepository implements LogRepository
var _ paymentsync.LogRepository = (*GormSyncLogRepository)(nil)

// GormSyncErrorRepository implements paymentsync.ErrorRepository using GORM
type GormSyncErrorRepository struct {
	db *gorm.DB
}

// NewGormSyncErrorRepository creates a new GormSyncErrorRepository
func NewGormSyncErrorRepository(db *gorm.DB) *GormSyncErrorRepository {
	return &GormSyncErrorRepository{db: db}
}

// FindByID finds a sync error by ID
func (r *GormSyncErrorRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentsync.SyncError, error) {
	var model models.SyncErrorModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByOperation lists the errors recorded for an operation
func (r *GormSyncErrorRepository) FindByOperation(ctx context.Context, opID uuid.UUID) ([]paymentsync.SyncError, error) {
	var rows []models.SyncErrorModel
	if err := r.db.WithContext(ctx).
		Where("operation_id = ?", opID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return syncErrorsToDomain(rows), nil
}

// FindUnresolved lists errors awaiting resolution
func (r *GormSyncErrorRepository) FindUnresolved(ctx context.Context, filter shared.Filter) ([]paymentsync.SyncError, error) {
	query := applyFilter(r.db.WithContext(ctx).Where("resolved = ?", false), filter, SyncErrorSortFields, "created_at")

	var rows []models.SyncErrorModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return syncErrorsToDomain(rows), nil
}

// Save creates or updates a sync error
func (r *GormSyncErrorRepository) Save(ctx context.Context, e *paymentsync.SyncError) error {
	model := &models.SyncErrorModel{}
	model.FromDomain(e)
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
		e.ID = model.ID
	}
	return dbError(r.db.WithContext(ctx).Save(model).Error)
}

func syncErrorsToDomain(rows []models.SyncErrorModel) []paymentsync.SyncError {
	out := make([]paymentsync.SyncError, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormSyncErrorRepository implements ErrorRepository
var _ paymentsync.ErrorRepository = (*GormSyncErrorRepository)(nil)
