package loan

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Filter defines filtering options for loan queries
type Filter struct {
	shared.Filter
	Status *Status
}

// Repository defines the interface for loan persistence. A loan is loaded
// and saved together with its payments.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	FindByNumber(ctx context.Context, number string) (*Loan, error)
	FindAll(ctx context.Context, filter Filter) ([]Loan, error)

	// FindWithOpenPaymentsBefore lists active loans with scheduled payments before date
	FindWithOpenPaymentsBefore(ctx context.Context, date time.Time) ([]Loan, error)

	Save(ctx context.Context, l *Loan) error
}
