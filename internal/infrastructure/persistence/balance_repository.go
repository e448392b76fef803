package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBalanceRepository implements ledger.BalanceRepository using GORM
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewGormBalanceRepository creates a new GormBalanceRepository
func NewGormBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// Find returns the cached balance row or nil when absent
func (r *GormBalanceRepository) Find(ctx context.Context, accountID uuid.UUID, asOf time.Time) (*ledger.AccountBalance, error) {
	var model models.AccountBalanceModel
	err := r.db.WithContext(ctx).
		First(&model, "account_id = ? AND as_of = ?", accountID, ledger.DateOf(asOf)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err)
	}
	return model.ToDomain(), nil
}

// FindByAccount lists every cached row of an account, latest first
func (r *GormBalanceRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]ledger.AccountBalance, error) {
	var rows []models.AccountBalanceModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("as_of DESC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	out := make([]ledger.AccountBalance, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Upsert stores a freshly computed balance
func (r *GormBalanceRepository) Upsert(ctx context.Context, balance *ledger.AccountBalance) error {
	model := &models.AccountBalanceModel{}
	model.FromDomain(balance)
	model.AsOf = ledger.DateOf(model.AsOf)
	return dbError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "as_of"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "total_debit", "total_credit", "needs_refresh", "computed_at"}),
		}).
		Create(model).Error)
}

// MarkNeedsRefresh flips needs_refresh on every cached row of the accounts
func (r *GormBalanceRepository) MarkNeedsRefresh(ctx context.Context, accountIDs []uuid.UUID) (int64, error) {
	if len(accountIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.AccountBalanceModel{}).
		Where("account_id IN ?", accountIDs).
		Update("needs_refresh", true)
	if result.Error != nil {
		return 0, dbError(result.Error)
	}
	return result.RowsAffected, nil
}

// FindStaleAccountIDs lists accounts holding rows flagged needs_refresh
func (r *GormBalanceRepository) FindStaleAccountIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AccountBalanceModel{}).
		Distinct("account_id").
		Where("needs_refresh = ?", true).
		Order("account_id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []uuid.UUID
	if err := query.Pluck("account_id", &ids).Error; err != nil {
		return nil, dbError(err)
	}
	return ids, nil
}

// Ensure GormBalanceRepository implements BalanceRepository
var _ ledger.BalanceRepository = (*GormBalanceRepository)(nil)

// GormSequenceRepository implements shared.SequenceRepository on the
// sequences table. The increment is a single upsert so concurrent callers
// serialise on the row lock.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Next returns the next number for key, starting at 1
func (r *GormSequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO sequences (name, seq, updated_at) VALUES (?, 1, ?)
		ON CONFLICT (name) DO UPDATE SET seq = sequences.seq + 1, updated_at = excluded.updated_at
		RETURNING seq`, key, time.Now().UTC()).Scan(&seq).Error
	if err != nil {
		return 0, dbError(err)
	}
	return seq, nil
}

// Ensure GormSequenceRepository implements SequenceRepository
var _ shared.SequenceRepository = (*GormSequenceRepository)(nil)
