package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the frozen state of a payment captured when a sync is requested
type Snapshot struct {
	ID             uuid.UUID       `json:"id"`
	Kind           Kind            `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Method         Method          `json:"method"`
	Reference      string          `json:"reference"`
	Notes          string          `json:"notes,omitempty"`
	DocumentID     *uuid.UUID      `json:"document_id,omitempty"`
	DocumentNumber string          `json:"document_number,omitempty"`
	CounterpartyID *uuid.UUID      `json:"counterparty_id,omitempty"`
	SyncReference  string          `json:"sync_reference,omitempty"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id,omitempty"`
}

// Snapshot captures the current state of the payment
func (p *Payment) Snapshot() Snapshot {
	return Snapshot{
		ID:             p.ID,
		Kind:           p.Kind,
		Amount:         p.Amount,
		Date:           p.Date,
		Method:         p.Method,
		Reference:      p.Reference,
		Notes:          p.Notes,
		DocumentID:     p.DocumentID,
		DocumentNumber: p.DocumentNumber,
		CounterpartyID: p.CounterpartyID,
		SyncReference:  p.SyncReference,
		JournalEntryID: p.JournalEntryID,
	}
}

// Restore rebuilds a detached payment from the snapshot
func (s Snapshot) Restore() *Payment {
	p := &Payment{
		Kind:           s.Kind,
		Amount:         s.Amount,
		Date:           s.Date,
		Method:         s.Method,
		Reference:      s.Reference,
		Notes:          s.Notes,
		DocumentID:     s.DocumentID,
		DocumentNumber: s.DocumentNumber,
		CounterpartyID: s.CounterpartyID,
		SyncReference:  s.SyncReference,
		JournalEntryID: s.JournalEntryID,
	}
	p.ID = s.ID
	p.Version = 1
	return p
}

// Marshal encodes the snapshot as JSON
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes a JSON snapshot
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	err := json.Unmarshal(data, &s)
	return s, err
}
