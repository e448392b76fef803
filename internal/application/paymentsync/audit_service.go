package paymentsync

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditService persists and queries sync operations, logs and errors
type AuditService struct {
	scope  accounting.TransactionScope
	logger *zap.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(scope accounting.TransactionScope, logger *zap.Logger) *AuditService {
	return &AuditService{scope: scope, logger: logger}
}

// SaveOperation stores the current state of an operation
func (s *AuditService) SaveOperation(ctx context.Context, op *paymentsync.SyncOperation) error {
	return s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		return repos.SyncOperations().Save(ctx, op)
	})
}

// Settle stores the final state of an operation with its logs and error in
// one transaction
func (s *AuditService) Settle(ctx context.Context, op *paymentsync.SyncOperation, logs []paymentsync.SyncLog, syncErr *paymentsync.SyncError) error {
	return s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		if err := repos.SyncOperations().Save(ctx, op); err != nil {
			return fmt.Errorf("failed to save sync operation: %w", err)
		}
		if len(logs) > 0 {
			if err := repos.SyncLogs().SaveBatch(ctx, logs); err != nil {
				return fmt.Errorf("failed to save sync logs: %w", err)
			}
		}
		if syncErr != nil {
			if err := repos.SyncErrors().Save(ctx, syncErr); err != nil {
				return fmt.Errorf("failed to save sync error: %w", err)
			}
		}
		return nil
	})
}

// GetOperation loads an operation by ID
func (s *AuditService) GetOperation(ctx context.Context, id uuid.UUID) (*paymentsync.SyncOperation, error) {
	var op *paymentsync.SyncOperation
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		op, err = repos.SyncOperations().FindByID(ctx, id)
		return err
	})
	return op, err
}

// ListOperations lists operations matching the filter
func (s *AuditService) ListOperations(ctx context.Context, filter paymentsync.OperationFilter) (shared.Paginated[paymentsync.SyncOperation], error) {
	var ops []paymentsync.SyncOperation
	var total int64
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		if ops, err = repos.SyncOperations().FindAll(ctx, filter); err != nil {
			return err
		}
		total, err = repos.SyncOperations().Count(ctx, filter)
		return err
	})
	if err != nil {
		return shared.Paginated[paymentsync.SyncOperation]{}, err
	}
	return shared.NewPaginated(ops, total, filter.Page, filter.PageSize), nil
}

// LogsFor lists the logs of an operation in creation order
func (s *AuditService) LogsFor(ctx context.Context, opID uuid.UUID) ([]paymentsync.SyncLog, error) {
	var logs []paymentsync.SyncLog
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		logs, err = repos.SyncLogs().FindByOperation(ctx, opID)
		return err
	})
	return logs, err
}

// ErrorsFor lists the errors of an operation
func (s *AuditService) ErrorsFor(ctx context.Context, opID uuid.UUID) ([]paymentsync.SyncError, error) {
	var errs []paymentsync.SyncError
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		errs, err = repos.SyncErrors().FindByOperation(ctx, opID)
		return err
	})
	return errs, err
}

// UnresolvedErrors lists errors still awaiting resolution
func (s *AuditService) UnresolvedErrors(ctx context.Context, filter shared.Filter) ([]paymentsync.SyncError, error) {
	var errs []paymentsync.SyncError
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		errs, err = repos.SyncErrors().FindUnresolved(ctx, filter)
		return err
	})
	return errs, err
}

// MarkResolved flags a sync error as resolved. The operation and the
// mirrored data are not changed.
func (s *AuditService) MarkResolved(ctx context.Context, errorID uuid.UUID, user, notes string) (*paymentsync.SyncError, error) {
	var syncErr *paymentsync.SyncError
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		if syncErr, err = repos.SyncErrors().FindByID(ctx, errorID); err != nil {
			return err
		}
		if err := syncErr.MarkResolved(user, notes); err != nil {
			return err
		}
		return repos.SyncErrors().Save(ctx, syncErr)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("sync error resolved",
		zap.String("error_id", errorID.String()),
		zap.String("operation_id", syncErr.OperationID.String()),
		zap.String("resolved_by", user),
	)
	return syncErr, nil
}
