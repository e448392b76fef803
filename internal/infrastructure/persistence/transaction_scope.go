package persistence

import (
	"context"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/loan"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

type txKey struct{}

// txState is one transaction level. Hooks queued in a save-point move to
// the parent when the save-point is released and are dropped on rollback.
type txState struct {
	tx          *gorm.DB
	afterCommit []func(context.Context)
}

// GormTransactionScope implements TransactionScope using GORM transactions.
// The open transaction travels in the context: a nested Execute with that
// context runs in a save-point of the outer transaction instead of a new
// transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction (or save-point) is
// rolled back. If the function succeeds, it is committed or released.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, repos accounting.Repositories) error) error {
	if parent, ok := ctx.Value(txKey{}).(*txState); ok {
		child := &txState{}
		err := parent.tx.Transaction(func(sp *gorm.DB) error {
			child.tx = sp
			return fn(context.WithValue(ctx, txKey{}, child), &gormRepositories{tx: sp})
		})
		if err == nil {
			parent.afterCommit = append(parent.afterCommit, child.afterCommit...)
		}
		return err
	}

	state := &txState{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state.tx = tx
		return fn(context.WithValue(ctx, txKey{}, state), &gormRepositories{tx: tx})
	})
	if err != nil {
		return err
	}
	for _, hook := range state.afterCommit {
		hook(ctx)
	}
	return nil
}

// InTransaction reports whether ctx carries an open transaction
func (s *GormTransactionScope) InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// AfterCommit runs fn once the outermost transaction of ctx commits, or
// right away when ctx carries no transaction
func (s *GormTransactionScope) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		fn(ctx)
		return
	}
	state.afterCommit = append(state.afterCommit, fn)
}

// gormRepositories provides access to all repositories within a transaction.
type gormRepositories struct {
	tx *gorm.DB
}

func (r *gormRepositories) Accounts() ledger.AccountRepository {
	return NewGormAccountRepository(r.tx)
}

func (r *gormRepositories) Periods() ledger.PeriodRepository {
	return NewGormPeriodRepository(r.tx)
}

func (r *gormRepositories) Journals() ledger.JournalEntryRepository {
	return NewGormJournalEntryRepository(r.tx)
}

func (r *gormRepositories) Balances() ledger.BalanceRepository {
	return NewGormBalanceRepository(r.tx)
}

func (r *gormRepositories) Sequences() shared.SequenceRepository {
	return NewGormSequenceRepository(r.tx)
}

func (r *gormRepositories) Payments() payment.Repository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormRepositories) SyncRules() paymentsync.RuleRepository {
	return NewGormSyncRuleRepository(r.tx)
}

func (r *gormRepositories) SyncOperations() paymentsync.OperationRepository {
	return NewGormSyncOperationRepository(r.tx)
}

func (r *gormRepositories) SyncLogs() paymentsync.LogRepository {
	return NewGormSyncLogRepository(r.tx)
}

func (r *gormRepositories) SyncErrors() paymentsync.ErrorRepository {
	return NewGormSyncErrorRepository(r.tx)
}

func (r *gormRepositories) Loans() loan.Repository {
	return NewGormLoanRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ accounting.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormRepositories implements Repositories
var _ accounting.Repositories = (*gormRepositories)(nil)
