package accounting

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// BalanceInvalidationHandler flags cached balances of every account touched
// by a journal change
type BalanceInvalidationHandler struct {
	balances *BalanceService
	logger   *zap.Logger
}

// NewBalanceInvalidationHandler creates a new BalanceInvalidationHandler
func NewBalanceInvalidationHandler(balances *BalanceService, logger *zap.Logger) *BalanceInvalidationHandler {
	return &BalanceInvalidationHandler{balances: balances, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *BalanceInvalidationHandler) EventTypes() []string {
	return []string{
		ledger.EventTypeJournalEntryPosted,
		ledger.EventTypeJournalEntryCancelled,
		ledger.EventTypeJournalEntryDeleted,
		ledger.EventTypeJournalEntryRewritten,
	}
}

// Handle invalidates the touched accounts. Invalidation never fails the
// journal change that raised the event.
func (h *BalanceInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	touched, ok := event.(ledger.AccountsTouched)
	if !ok {
		h.logger.Warn("event does not carry touched accounts",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
		)
		return nil
	}
	rows := h.balances.Invalidate(ctx, touched.TouchedAccounts())
	h.logger.Debug("balances invalidated for journal event",
		zap.String("event_type", event.EventType()),
		zap.String("entry_id", event.AggregateID().String()),
		zap.Int64("rows", rows),
	)
	return nil
}

// Ensure BalanceInvalidationHandler implements shared.EventHandler
var _ shared.EventHandler = (*BalanceInvalidationHandler)(nil)
