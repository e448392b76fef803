package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for payments of every kind.
// Ledger mirrors carry a sync reference that is unique per kind.
type PaymentModel struct {
	AggregateModel
	Kind           payment.Kind    `gorm:"type:varchar(30);not null;index;uniqueIndex:idx_payments_kind_sync_reference,priority:1"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Date           time.Time       `gorm:"type:date;not null;index"`
	Method         payment.Method  `gorm:"type:varchar(30);not null"`
	Reference      string          `gorm:"type:varchar(100)"`
	Notes          string          `gorm:"type:text"`
	DocumentID     *uuid.UUID      `gorm:"type:uuid;index"`
	DocumentNumber string          `gorm:"type:varchar(50)"`
	CounterpartyID *uuid.UUID      `gorm:"type:uuid;index"`
	SyncReference  *string         `gorm:"type:varchar(200);uniqueIndex:idx_payments_kind_sync_reference,priority:2"`
	JournalEntryID *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *payment.Payment {
	p := &payment.Payment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Kind:              m.Kind,
		Amount:            m.Amount,
		Date:              m.Date.UTC(),
		Method:            m.Method,
		Reference:         m.Reference,
		Notes:             m.Notes,
		DocumentID:        m.DocumentID,
		DocumentNumber:    m.DocumentNumber,
		CounterpartyID:    m.CounterpartyID,
		JournalEntryID:    m.JournalEntryID,
	}
	if m.SyncReference != nil {
		p.SyncReference = *m.SyncReference
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment.
// An empty sync reference is stored as NULL so the unique index only
// covers ledger mirrors.
func (m *PaymentModel) FromDomain(p *payment.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Kind = p.Kind
	m.Amount = p.Amount
	m.Date = p.Date
	m.Method = p.Method
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.DocumentID = p.DocumentID
	m.DocumentNumber = p.DocumentNumber
	m.CounterpartyID = p.CounterpartyID
	m.SyncReference = nil
	if p.SyncReference != "" {
		ref := p.SyncReference
		m.SyncReference = &ref
	}
	m.JournalEntryID = p.JournalEntryID
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *payment.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
