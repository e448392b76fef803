package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types published by the journal engine
const (
	EventTypeJournalEntryPosted    = "JournalEntryPosted"
	EventTypeJournalEntryCancelled = "JournalEntryCancelled"
	EventTypeJournalEntryDeleted   = "JournalEntryDeleted"
	EventTypeJournalEntryRewritten = "JournalEntryRewritten"
)

const aggregateTypeJournalEntry = "JournalEntry"

// AccountsTouched is implemented by events that change account balances
type AccountsTouched interface {
	TouchedAccounts() []uuid.UUID
}

// JournalEntryPostedEvent is raised when an entry is posted
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryID    uuid.UUID       `json:"entry_id"`
	Number     string          `json:"number"`
	AccountIDs []uuid.UUID     `json:"account_ids"`
	Amount     decimal.Decimal `json:"amount"`
	PostedBy   string          `json:"posted_by"`
}

// NewJournalEntryPostedEvent creates a new JournalEntryPostedEvent
func NewJournalEntryPostedEvent(je *JournalEntry) *JournalEntryPostedEvent {
	return &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryPosted, aggregateTypeJournalEntry, je.ID),
		EntryID:         je.ID,
		Number:          je.Number,
		AccountIDs:      je.AccountIDs(),
		Amount:          je.TotalDebit(),
		PostedBy:        je.PostedBy,
	}
}

// TouchedAccounts implements AccountsTouched
func (e *JournalEntryPostedEvent) TouchedAccounts() []uuid.UUID {
	return e.AccountIDs
}

// JournalEntryCancelledEvent is raised when a posted entry is reversed
type JournalEntryCancelledEvent struct {
	shared.BaseDomainEvent
	EntryID     uuid.UUID   `json:"entry_id"`
	ReversalID  uuid.UUID   `json:"reversal_id"`
	AccountIDs  []uuid.UUID `json:"account_ids"`
	CancelledBy string      `json:"cancelled_by"`
	Reason      string      `json:"reason"`
}

// NewJournalEntryCancelledEvent creates a new JournalEntryCancelledEvent
func NewJournalEntryCancelledEvent(je, reversal *JournalEntry) *JournalEntryCancelledEvent {
	return &JournalEntryCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryCancelled, aggregateTypeJournalEntry, je.ID),
		EntryID:         je.ID,
		ReversalID:      reversal.ID,
		AccountIDs:      je.AccountIDs(),
		CancelledBy:     je.CancelledBy,
		Reason:          je.CancelReason,
	}
}

// TouchedAccounts implements AccountsTouched
func (e *JournalEntryCancelledEvent) TouchedAccounts() []uuid.UUID {
	return e.AccountIDs
}

// JournalEntryDeletedEvent is raised when an entry is physically removed.
// Only drafts and sync rollbacks delete entries.
type JournalEntryDeletedEvent struct {
	shared.BaseDomainEvent
	EntryID    uuid.UUID   `json:"entry_id"`
	WasPosted  bool        `json:"was_posted"`
	AccountIDs []uuid.UUID `json:"account_ids"`
}

// NewJournalEntryDeletedEvent creates a new JournalEntryDeletedEvent
func NewJournalEntryDeletedEvent(je *JournalEntry) *JournalEntryDeletedEvent {
	return &JournalEntryDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryDeleted, aggregateTypeJournalEntry, je.ID),
		EntryID:         je.ID,
		WasPosted:       je.Status != EntryStatusDraft,
		AccountIDs:      je.AccountIDs(),
	}
}

// TouchedAccounts implements AccountsTouched
func (e *JournalEntryDeletedEvent) TouchedAccounts() []uuid.UUID {
	return e.AccountIDs
}

// JournalEntryRewrittenEvent is raised when an entry's lines are replaced
// or restored in place
type JournalEntryRewrittenEvent struct {
	shared.BaseDomainEvent
	EntryID    uuid.UUID   `json:"entry_id"`
	AccountIDs []uuid.UUID `json:"account_ids"`
}

// NewJournalEntryRewrittenEvent creates a new JournalEntryRewrittenEvent
func NewJournalEntryRewrittenEvent(je *JournalEntry, accountIDs []uuid.UUID) *JournalEntryRewrittenEvent {
	return &JournalEntryRewrittenEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryRewritten, aggregateTypeJournalEntry, je.ID),
		EntryID:         je.ID,
		AccountIDs:      accountIDs,
	}
}

// TouchedAccounts implements AccountsTouched
func (e *JournalEntryRewrittenEvent) TouchedAccounts() []uuid.UUID {
	return e.AccountIDs
}
