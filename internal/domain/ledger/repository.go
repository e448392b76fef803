package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountRepository defines the interface for chart of accounts persistence
type AccountRepository interface {
	// FindByID finds an account by ID; returns shared.ErrNotFound when missing
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// FindByCode finds an account by its code; returns shared.ErrNotFound when missing
	FindByCode(ctx context.Context, code string) (*Account, error)

	// FindByIDs finds a set of accounts keyed by ID
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Account, error)

	// FindChildren lists the direct children of an account ordered by code
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]Account, error)

	// FindRoots lists top-level accounts ordered by code
	FindRoots(ctx context.Context) ([]Account, error)

	// FindDescendantIDs returns the IDs of all accounts below id
	FindDescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)

	// CountChildren counts the direct children of an account
	CountChildren(ctx context.Context, parentID uuid.UUID) (int64, error)

	// Save creates or updates an account
	Save(ctx context.Context, account *Account) error

	// Delete removes an account
	Delete(ctx context.Context, id uuid.UUID) error
}

// PeriodRepository defines the interface for accounting period persistence
type PeriodRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*AccountingPeriod, error)

	// FindContaining lists every period whose range contains date
	FindContaining(ctx context.Context, date time.Time) ([]AccountingPeriod, error)

	// FindOverlapping lists periods sharing a day with [start, end]
	FindOverlapping(ctx context.Context, start, end time.Time) ([]AccountingPeriod, error)

	FindAll(ctx context.Context) ([]AccountingPeriod, error)

	Save(ctx context.Context, period *AccountingPeriod) error
}

// JournalEntryFilter defines filtering options for journal entry queries
type JournalEntryFilter struct {
	shared.Filter
	Status    *EntryStatus
	Type      *EntryType
	AccountID *uuid.UUID
	FromDate  *time.Time
	ToDate    *time.Time
}

// JournalEntryRepository defines the interface for journal persistence
type JournalEntryRepository interface {
	// FindByID loads an entry with its lines; returns shared.ErrNotFound when missing
	FindByID(ctx context.Context, id uuid.UUID) (*JournalEntry, error)

	// FindByNumber loads an entry by its number
	FindByNumber(ctx context.Context, number string) (*JournalEntry, error)

	// FindByReference lists entries carrying the reference, oldest first
	FindByReference(ctx context.Context, ref Reference) ([]JournalEntry, error)

	// FindAll lists entries matching the filter
	FindAll(ctx context.Context, filter JournalEntryFilter) ([]JournalEntry, error)

	// CountPostedLines counts posted or cancelled lines referencing any of the accounts
	CountPostedLines(ctx context.Context, accountIDs []uuid.UUID) (int64, error)

	// CountLines counts lines of any status referencing the account
	CountLines(ctx context.Context, accountID uuid.UUID) (int64, error)

	// SumPostedLines aggregates lines of posted and cancelled entries per
	// account with entry date <= asOf. Cancelled entries count because their
	// posted reversal offsets them. A nil accountIDs aggregates every account.
	SumPostedLines(ctx context.Context, accountIDs []uuid.UUID, asOf time.Time) ([]LineTotals, error)

	// Save creates or updates an entry and replaces its lines
	Save(ctx context.Context, entry *JournalEntry) error

	// Delete physically removes an entry and its lines
	Delete(ctx context.Context, id uuid.UUID) error
}

// BalanceRepository defines the interface for the balance cache table
type BalanceRepository interface {
	// Find returns the cached balance row or nil when absent
	Find(ctx context.Context, accountID uuid.UUID, asOf time.Time) (*AccountBalance, error)

	// FindByAccount lists every cached row of an account
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]AccountBalance, error)

	// Upsert stores a freshly computed balance
	Upsert(ctx context.Context, balance *AccountBalance) error

	// MarkNeedsRefresh flips needs_refresh on every cached row of the accounts
	MarkNeedsRefresh(ctx context.Context, accountIDs []uuid.UUID) (int64, error)

	// FindStaleAccountIDs lists up to limit accounts holding at least one
	// row flagged needs_refresh. A limit <= 0 lists all of them.
	FindStaleAccountIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}
