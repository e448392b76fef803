package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements payment.Repository using GORM. All
// payment variants share one table discriminated by kind.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindBySyncReference finds a ledger row by its mirror reference
func (r *GormPaymentRepository) FindBySyncReference(ctx context.Context, kind payment.Kind, reference string) (*payment.Payment, error) {
	var model models.PaymentModel
	err := r.db.WithContext(ctx).
		First(&model, "kind = ? AND sync_reference = ?", kind, reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err)
	}
	return model.ToDomain(), nil
}

// FindByDocument lists payments settling a document, oldest first
func (r *GormPaymentRepository) FindByDocument(ctx context.Context, kind payment.Kind, documentID uuid.UUID) ([]payment.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND document_id = ?", kind, documentID).
		Order("date ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	out := make([]payment.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	return dbError(r.db.WithContext(ctx).Save(models.PaymentModelFromDomain(p)).Error)
}

// Delete physically removes a payment
func (r *GormPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.PaymentModel{}, "id = ?", id)
	if result.Error != nil {
		return dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound)
	}
	return nil
}

// Ensure GormPaymentRepository implements Repository
var _ payment.Repository = (*GormPaymentRepository)(nil)
