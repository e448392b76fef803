package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for payment persistence across all variants
type Repository interface {
	// FindByID finds a payment by ID; returns shared.ErrNotFound when missing
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindBySyncReference finds a ledger row by its mirror reference; nil when absent
	FindBySyncReference(ctx context.Context, kind Kind, reference string) (*Payment, error)

	// FindByDocument lists payments settling a document
	FindByDocument(ctx context.Context, kind Kind, documentID uuid.UUID) ([]Payment, error)

	// Save creates or updates a payment
	Save(ctx context.Context, p *Payment) error

	// Delete physically removes a payment
	Delete(ctx context.Context, id uuid.UUID) error
}
