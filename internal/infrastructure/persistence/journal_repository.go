package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormJournalEntryRepository implements ledger.JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db *gorm.DB
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

func (r *GormJournalEntryRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no ASC")
	})
}

// FindByID loads an entry with its lines
func (r *GormJournalEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	var model models.JournalEntryModel
	if err := r.withLines(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByNumber loads an entry by its number
func (r *GormJournalEntryRepository) FindByNumber(ctx context.Context, number string) (*ledger.JournalEntry, error) {
	var model models.JournalEntryModel
	if err := r.withLines(ctx).First(&model, "number = ?", number).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByReference lists entries carrying the reference, oldest first
func (r *GormJournalEntryRepository) FindByReference(ctx context.Context, ref ledger.Reference) ([]ledger.JournalEntry, error) {
	var rows []models.JournalEntryModel
	if err := r.withLines(ctx).
		Where("reference_type = ? AND reference_id = ?", ref.Type, ref.ID).
		Order("created_at ASC").
		Order("number ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return entriesToDomain(rows), nil
}

// FindAll lists entries matching the filter
func (r *GormJournalEntryRepository) FindAll(ctx context.Context, filter ledger.JournalEntryFilter) ([]ledger.JournalEntry, error) {
	query := r.withLines(ctx)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.AccountID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.JournalLineModel{}).
			Select("entry_id").
			Where("account_id = ?", *filter.AccountID))
	}
	if filter.FromDate != nil {
		query = query.Where("date >= ?", ledger.DateOf(*filter.FromDate))
	}
	if filter.ToDate != nil {
		query = query.Where("date <= ?", ledger.DateOf(*filter.ToDate))
	}

	query = applyFilter(query, filter.Filter, JournalEntrySortFields, "date")

	var rows []models.JournalEntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return entriesToDomain(rows), nil
}

// CountPostedLines counts posted or cancelled lines referencing any of the accounts
func (r *GormJournalEntryRepository) CountPostedLines(ctx context.Context, accountIDs []uuid.UUID) (int64, error) {
	if len(accountIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Table("journal_lines AS l").
		Joins("JOIN journal_entries AS e ON e.id = l.entry_id").
		Where("l.account_id IN ?", accountIDs).
		Where("e.status IN ?", []ledger.EntryStatus{ledger.EntryStatusPosted, ledger.EntryStatusCancelled}).
		Count(&count).Error; err != nil {
		return 0, dbError(err)
	}
	return count, nil
}

// CountLines counts lines of any status referencing the account
func (r *GormJournalEntryRepository) CountLines(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.JournalLineModel{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		return 0, dbError(err)
	}
	return count, nil
}

type lineTotalsRow struct {
	AccountID uuid.UUID
	Debit     decimal.NullDecimal
	Credit    decimal.NullDecimal
}

// SumPostedLines aggregates lines of posted and cancelled entries per account
func (r *GormJournalEntryRepository) SumPostedLines(ctx context.Context, accountIDs []uuid.UUID, asOf time.Time) ([]ledger.LineTotals, error) {
	if accountIDs != nil && len(accountIDs) == 0 {
		return []ledger.LineTotals{}, nil
	}

	query := r.db.WithContext(ctx).
		Table("journal_lines AS l").
		Select("l.account_id AS account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit").
		Joins("JOIN journal_entries AS e ON e.id = l.entry_id").
		Where("e.status IN ?", []ledger.EntryStatus{ledger.EntryStatusPosted, ledger.EntryStatusCancelled}).
		Where("e.date <= ?", ledger.DateOf(asOf))
	if accountIDs != nil {
		query = query.Where("l.account_id IN ?", accountIDs)
	}

	var rows []lineTotalsRow
	if err := query.Group("l.account_id").Order("l.account_id").Scan(&rows).Error; err != nil {
		return nil, dbError(err)
	}

	out := make([]ledger.LineTotals, len(rows))
	for i, row := range rows {
		// SQLite sums NUMERIC columns as floating point
		out[i] = ledger.LineTotals{
			AccountID: row.AccountID,
			Debit:     row.Debit.Decimal.Round(2),
			Credit:    row.Credit.Decimal.Round(2),
		}
	}
	return out, nil
}

// Save creates or updates an entry and replaces its lines
func (r *GormJournalEntryRepository) Save(ctx context.Context, entry *ledger.JournalEntry) error {
	model := models.JournalEntryModelFromDomain(entry)
	db := r.db.WithContext(ctx)

	if err := db.Omit(clause.Associations).Save(model).Error; err != nil {
		return dbError(err)
	}
	if err := db.Where("entry_id = ?", model.ID).Delete(&models.JournalLineModel{}).Error; err != nil {
		return dbError(err)
	}
	if len(model.Lines) == 0 {
		return nil
	}
	if err := db.Create(&model.Lines).Error; err != nil {
		return dbError(err)
	}
	for i := range entry.Lines {
		entry.Lines[i].ID = model.Lines[i].ID
		entry.Lines[i].EntryID = model.ID
	}
	return nil
}

// Delete physically removes an entry and its lines
func (r *GormJournalEntryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("entry_id = ?", id).Delete(&models.JournalLineModel{}).Error; err != nil {
		return dbError(err)
	}
	result := db.Delete(&models.JournalEntryModel{}, "id = ?", id)
	if result.Error != nil {
		return dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound)
	}
	return nil
}

func entriesToDomain(rows []models.JournalEntryModel) []ledger.JournalEntry {
	out := make([]ledger.JournalEntry, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormJournalEntryRepository implements JournalEntryRepository
var _ ledger.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
