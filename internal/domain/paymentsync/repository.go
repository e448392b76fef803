package paymentsync

import (
	"context"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// RuleRepository defines the interface for sync rule persistence
type RuleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRule, error)

	// FindActive lists active rules for (source, trigger) in no particular order
	FindActive(ctx context.Context, source payment.Kind, trigger Trigger) ([]SyncRule, error)

	// FindByName finds a rule by its unique name; nil when absent
	FindByName(ctx context.Context, name string) (*SyncRule, error)

	FindAll(ctx context.Context) ([]SyncRule, error)

	Save(ctx context.Context, rule *SyncRule) error
}

// OperationFilter defines filtering options for sync operation queries
type OperationFilter struct {
	shared.Filter
	Status    *OperationStatus
	PaymentID *uuid.UUID
	Type      *OperationType
}

// OperationRepository defines the interface for sync operation persistence
type OperationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SyncOperation, error)
	FindAll(ctx context.Context, filter OperationFilter) ([]SyncOperation, error)
	Count(ctx context.Context, filter OperationFilter) (int64, error)
	Save(ctx context.Context, op *SyncOperation) error
}

// LogRepository defines the interface for sync log persistence
type LogRepository interface {
	SaveBatch(ctx context.Context, logs []SyncLog) error
	FindByOperation(ctx context.Context, opID uuid.UUID) ([]SyncLog, error)
}

// ErrorRepository defines the interface for sync error persistence
type ErrorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SyncError, error)
	FindByOperation(ctx context.Context, opID uuid.UUID) ([]SyncError, error)
	FindUnresolved(ctx context.Context, filter shared.Filter) ([]SyncError, error)
	Save(ctx context.Context, e *SyncError) error
}
