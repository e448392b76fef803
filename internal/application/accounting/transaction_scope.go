package accounting

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/loan"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/erp/ledger/internal/domain/shared"
)

// TransactionScope provides transactional access to the core repositories.
// Execute calls nested inside another Execute (through the ctx handed to fn)
// run as save-points of the enclosing transaction.
type TransactionScope interface {
	// Execute runs fn within a database transaction. If fn returns an
	// error, the transaction (or save-point) is rolled back.
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// InTransaction reports whether ctx carries an open transaction
	InTransaction(ctx context.Context) bool

	// AfterCommit runs fn after the outermost transaction of ctx commits.
	// It is dropped when that transaction or its save-point rolls back.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}

// Repositories provides access to every repository within one transaction.
//
// Aggregate boundaries:
//   - Journals owns journal lines; lines are saved with their entry.
//   - Loans owns loan payments; payments are saved with their loan.
//   - SyncOperations owns nothing directly; logs and errors are appended
//     through their own repositories keyed by operation.
type Repositories interface {
	Accounts() ledger.AccountRepository
	Periods() ledger.PeriodRepository
	Journals() ledger.JournalEntryRepository
	Balances() ledger.BalanceRepository
	Sequences() shared.SequenceRepository
	Payments() payment.Repository
	SyncRules() paymentsync.RuleRepository
	SyncOperations() paymentsync.OperationRepository
	SyncLogs() paymentsync.LogRepository
	SyncErrors() paymentsync.ErrorRepository
	Loans() loan.Repository
}
