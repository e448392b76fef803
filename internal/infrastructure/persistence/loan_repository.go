package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/loan"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLoanRepository implements loan.Repository using GORM
type GormLoanRepository struct {
	db *gorm.DB
}

// NewGormLoanRepository creates a new GormLoanRepository
func NewGormLoanRepository(db *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: db}
}

func (r *GormLoanRepository) withPayments(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("payment_number ASC")
	})
}

// FindByID loads a loan with its payments
func (r *GormLoanRepository) FindByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	var model models.LoanModel
	if err := r.withPayments(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByNumber loads a loan by its number
func (r *GormLoanRepository) FindByNumber(ctx context.Context, number string) (*loan.Loan, error) {
	var model models.LoanModel
	if err := r.withPayments(ctx).First(&model, "loan_number = ?", number).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists loans matching the filter
func (r *GormLoanRepository) FindAll(ctx context.Context, filter loan.Filter) ([]loan.Loan, error) {
	query := r.withPayments(ctx)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	query = applyFilter(query, filter.Filter, LoanSortFields, "start_date")

	var rows []models.LoanModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return loansToDomain(rows), nil
}

// FindWithOpenPaymentsBefore lists active loans with scheduled payments before date
func (r *GormLoanRepository) FindWithOpenPaymentsBefore(ctx context.Context, date time.Time) ([]loan.Loan, error) {
	open := r.db.Model(&models.LoanPaymentModel{}).
		Select("loan_id").
		Where("status = ? AND scheduled_date < ?", loan.PaymentStatusScheduled, dateOnly(date))

	var rows []models.LoanModel
	if err := r.withPayments(ctx).
		Where("status = ?", loan.StatusActive).
		Where("id IN (?)", open).
		Order("loan_number ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return loansToDomain(rows), nil
}

// Save creates or updates a loan and upserts its payments
func (r *GormLoanRepository) Save(ctx context.Context, l *loan.Loan) error {
	model := models.LoanModelFromDomain(l)
	db := r.db.WithContext(ctx)

	if err := db.Omit(clause.Associations).Save(model).Error; err != nil {
		return dbError(err)
	}
	if len(model.Payments) == 0 {
		return nil
	}
	now := time.Now()
	for i := range model.Payments {
		if model.Payments[i].CreatedAt.IsZero() {
			model.Payments[i].CreatedAt = now
		}
		model.Payments[i].UpdatedAt = now
	}
	return dbError(db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model.Payments).Error)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func loansToDomain(rows []models.LoanModel) []loan.Loan {
	out := make([]loan.Loan, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormLoanRepository implements Repository
var _ loan.Repository = (*GormLoanRepository)(nil)
