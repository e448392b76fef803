package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountRepository implements ledger.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByID finds an account by ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByCode finds an account by its code
func (r *GormAccountRepository) FindByCode(ctx context.Context, code string) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDs finds a set of accounts keyed by ID
func (r *GormAccountRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ledger.Account, error) {
	result := make(map[uuid.UUID]*ledger.Account, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.AccountModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	for i := range rows {
		a := rows[i].ToDomain()
		result[a.ID] = a
	}
	return result, nil
}

// FindChildren lists the direct children of an account ordered by code
func (r *GormAccountRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]ledger.Account, error) {
	var rows []models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return accountsToDomain(rows), nil
}

// FindRoots lists top-level accounts ordered by code
func (r *GormAccountRepository) FindRoots(ctx context.Context) ([]ledger.Account, error) {
	var rows []models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return accountsToDomain(rows), nil
}

// FindDescendantIDs walks the hierarchy below id with a recursive CTE
func (r *GormAccountRepository) FindDescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var raw []string
	err := r.db.WithContext(ctx).Raw(`
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM accounts WHERE parent_id = ?
			UNION ALL
			SELECT a.id FROM accounts a JOIN descendants d ON a.parent_id = d.id
		)
		SELECT id FROM descendants`, id).Scan(&raw).Error
	if err != nil {
		return nil, dbError(err)
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse account id %q: %w", s, err)
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}

// CountChildren counts the direct children of an account
func (r *GormAccountRepository) CountChildren(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("parent_id = ?", parentID).
		Count(&count).Error; err != nil {
		return 0, dbError(err)
	}
	return count, nil
}

// Save creates or updates an account
func (r *GormAccountRepository) Save(ctx context.Context, account *ledger.Account) error {
	return dbError(r.db.WithContext(ctx).Save(models.AccountModelFromDomain(account)).Error)
}

// Delete removes an account
func (r *GormAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AccountModel{}, "id = ?", id)
	if result.Error != nil {
		return dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound)
	}
	return nil
}

func accountsToDomain(rows []models.AccountModel) []ledger.Account {
	out := make([]ledger.Account, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormAccountRepository implements AccountRepository
var _ ledger.AccountRepository = (*GormAccountRepository)(nil)

// GormPeriodRepository implements ledger.PeriodRepository using GORM
type GormPeriodRepository struct {
	db *gorm.DB
}

// NewGormPeriodRepository creates a new GormPeriodRepository
func NewGormPeriodRepository(db *gorm.DB) *GormPeriodRepository {
	return &GormPeriodRepository{db: db}
}

// FindByID finds a period by ID
func (r *GormPeriodRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.AccountingPeriod, error) {
	var model models.AccountingPeriodModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindContaining lists every period whose range contains date
func (r *GormPeriodRepository) FindContaining(ctx context.Context, date time.Time) ([]ledger.AccountingPeriod, error) {
	d := ledger.DateOf(date)
	return r.find(ctx, r.db.WithContext(ctx).Where("start_date <= ? AND end_date >= ?", d, d))
}

// FindOverlapping lists periods sharing a day with [start, end]
func (r *GormPeriodRepository) FindOverlapping(ctx context.Context, start, end time.Time) ([]ledger.AccountingPeriod, error) {
	return r.find(ctx, r.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", ledger.DateOf(end), ledger.DateOf(start)))
}

// FindAll lists every period ordered by start date
func (r *GormPeriodRepository) FindAll(ctx context.Context) ([]ledger.AccountingPeriod, error) {
	return r.find(ctx, r.db.WithContext(ctx))
}

func (r *GormPeriodRepository) find(_ context.Context, query *gorm.DB) ([]ledger.AccountingPeriod, error) {
	var rows []models.AccountingPeriodModel
	if err := query.Order("start_date ASC").Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	out := make([]ledger.AccountingPeriod, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a period
func (r *GormPeriodRepository) Save(ctx context.Context, period *ledger.AccountingPeriod) error {
	model := &models.AccountingPeriodModel{}
	model.FromDomain(period)
	return dbError(r.db.WithContext(ctx).Save(model).Error)
}

// Ensure GormPeriodRepository implements PeriodRepository
var _ ledger.PeriodRepository = (*GormPeriodRepository)(nil)
