package accounting

import (
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Ledger bundles the accounting services sharing one scope and event bus
type Ledger struct {
	Accounts *AccountService
	Journals *JournalService
	Balances *BalanceService
}

// NewLedger wires the accounting services and subscribes balance
// invalidation to journal events on bus. hot and authorizer may be nil.
func NewLedger(scope TransactionScope, bus shared.EventBus, hot BalanceHotCache, authorizer Authorizer, logger *zap.Logger) *Ledger {
	balances := NewBalanceService(scope, hot, logger.Named("balance"))
	bus.Subscribe(NewBalanceInvalidationHandler(balances, logger.Named("balance")))
	return &Ledger{
		Accounts: NewAccountService(scope, logger.Named("account")),
		Journals: NewJournalService(scope, bus, authorizer, logger.Named("journal")),
		Balances: balances,
	}
}
