package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountModel is the persistence model for the Account aggregate root.
type AccountModel struct {
	AggregateModel
	Code           string                 `gorm:"type:varchar(8);not null;uniqueIndex"`
	Name           string                 `gorm:"type:varchar(200);not null"`
	TypeCode       string                 `gorm:"type:varchar(50);not null"`
	TypeName       string                 `gorm:"type:varchar(100);not null"`
	Category       ledger.AccountCategory `gorm:"type:varchar(20);not null;index"`
	Nature         ledger.AccountNature   `gorm:"type:varchar(10);not null"`
	ParentID       *uuid.UUID             `gorm:"type:uuid;index"`
	Level          int                    `gorm:"not null"`
	IsLeaf         bool                   `gorm:"not null"`
	IsActive       bool                   `gorm:"not null"`
	IsBank         bool                   `gorm:"not null"`
	IsCash         bool                   `gorm:"not null"`
	IsReconcilable bool                   `gorm:"not null"`
	IsSystem       bool                   `gorm:"not null"`
	Description    string                 `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account entity.
func (m *AccountModel) ToDomain() *ledger.Account {
	return &ledger.Account{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		Type: ledger.AccountType{
			Code:     m.TypeCode,
			Name:     m.TypeName,
			Category: m.Category,
			Nature:   m.Nature,
		},
		ParentID: m.ParentID,
		Level:    m.Level,
		IsLeaf:   m.IsLeaf,
		IsActive: m.IsActive,
		Flags: ledger.AccountFlags{
			Bank:         m.IsBank,
			Cash:         m.IsCash,
			Reconcilable: m.IsReconcilable,
			System:       m.IsSystem,
		},
		Description: m.Description,
	}
}

// FromDomain populates the persistence model from a domain Account entity.
func (m *AccountModel) FromDomain(a *ledger.Account) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.Code = a.Code
	m.Name = a.Name
	m.TypeCode = a.Type.Code
	m.TypeName = a.Type.Name
	m.Category = a.Type.Category
	m.Nature = a.Type.Nature
	m.ParentID = a.ParentID
	m.Level = a.Level
	m.IsLeaf = a.IsLeaf
	m.IsActive = a.IsActive
	m.IsBank = a.Flags.Bank
	m.IsCash = a.Flags.Cash
	m.IsReconcilable = a.Flags.Reconcilable
	m.IsSystem = a.Flags.System
	m.Description = a.Description
}

// AccountModelFromDomain creates a new persistence model from a domain Account.
func AccountModelFromDomain(a *ledger.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// AccountingPeriodModel is the persistence model for accounting periods.
type AccountingPeriodModel struct {
	AggregateModel
	Name      string              `gorm:"type:varchar(100);not null"`
	StartDate time.Time           `gorm:"type:date;not null;index"`
	EndDate   time.Time           `gorm:"type:date;not null;index"`
	Status    ledger.PeriodStatus `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (AccountingPeriodModel) TableName() string {
	return "accounting_periods"
}

// ToDomain converts the persistence model to a domain AccountingPeriod.
func (m *AccountingPeriodModel) ToDomain() *ledger.AccountingPeriod {
	return &ledger.AccountingPeriod{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		StartDate:         ledger.DateOf(m.StartDate),
		EndDate:           ledger.DateOf(m.EndDate),
		Status:            m.Status,
	}
}

// FromDomain populates the persistence model from a domain AccountingPeriod.
func (m *AccountingPeriodModel) FromDomain(p *ledger.AccountingPeriod) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Name = p.Name
	m.StartDate = p.StartDate
	m.EndDate = p.EndDate
	m.Status = p.Status
}

// JournalEntryModel is the persistence model for the JournalEntry aggregate root.
type JournalEntryModel struct {
	AggregateModel
	Number        string             `gorm:"type:varchar(30);not null;uniqueIndex"`
	Date          time.Time          `gorm:"type:date;not null;index"`
	Type          ledger.EntryType   `gorm:"type:varchar(20);not null"`
	Status        ledger.EntryStatus `gorm:"type:varchar(20);not null;index"`
	Description   string             `gorm:"type:text"`
	ReferenceType string             `gorm:"type:varchar(50);index:idx_journal_entries_reference,priority:1"`
	ReferenceID   string             `gorm:"type:varchar(200);index:idx_journal_entries_reference,priority:2"`
	PeriodID      uuid.UUID          `gorm:"type:uuid;not null;index"`
	PostedAt      *time.Time
	PostedBy      string `gorm:"type:varchar(100)"`
	CancelledAt   *time.Time
	CancelledBy   string             `gorm:"type:varchar(100)"`
	CancelReason  string             `gorm:"type:varchar(500)"`
	ReversalOf    *uuid.UUID         `gorm:"type:uuid;index"`
	ReversedBy    *uuid.UUID         `gorm:"type:uuid"`
	Lines         []JournalLineModel `gorm:"foreignKey:EntryID;references:ID"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// ToDomain converts the persistence model to a domain JournalEntry.
func (m *JournalEntryModel) ToDomain() *ledger.JournalEntry {
	je := &ledger.JournalEntry{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		Date:              ledger.DateOf(m.Date),
		Type:              m.Type,
		Status:            m.Status,
		Description:       m.Description,
		Reference:         ledger.Reference{Type: m.ReferenceType, ID: m.ReferenceID},
		PeriodID:          m.PeriodID,
		PostedAt:          m.PostedAt,
		PostedBy:          m.PostedBy,
		CancelledAt:       m.CancelledAt,
		CancelledBy:       m.CancelledBy,
		CancelReason:      m.CancelReason,
		ReversalOf:        m.ReversalOf,
		ReversedBy:        m.ReversedBy,
		Lines:             make([]ledger.JournalLine, len(m.Lines)),
	}
	for i := range m.Lines {
		je.Lines[i] = m.Lines[i].ToDomain()
	}
	return je
}

// FromDomain populates the persistence model from a domain JournalEntry.
func (m *JournalEntryModel) FromDomain(je *ledger.JournalEntry) {
	m.FromDomainAggregateRoot(je.BaseAggregateRoot)
	m.Number = je.Number
	m.Date = je.Date
	m.Type = je.Type
	m.Status = je.Status
	m.Description = je.Description
	m.ReferenceType = je.Reference.Type
	m.ReferenceID = je.Reference.ID
	m.PeriodID = je.PeriodID
	m.PostedAt = je.PostedAt
	m.PostedBy = je.PostedBy
	m.CancelledAt = je.CancelledAt
	m.CancelledBy = je.CancelledBy
	m.CancelReason = je.CancelReason
	m.ReversalOf = je.ReversalOf
	m.ReversedBy = je.ReversedBy
	m.Lines = make([]JournalLineModel, len(je.Lines))
	for i, l := range je.Lines {
		m.Lines[i].FromDomain(l, je.ID)
	}
}

// JournalEntryModelFromDomain creates a new persistence model from a domain JournalEntry.
func JournalEntryModelFromDomain(je *ledger.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{}
	m.FromDomain(je)
	return m
}

// JournalLineModel is the persistence model for journal lines.
type JournalLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntryID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo      int             `gorm:"not null"`
	AccountID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountCode string          `gorm:"type:varchar(8);not null"`
	Debit       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Credit      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Description string          `gorm:"type:varchar(500)"`
	CostCenter  string          `gorm:"type:varchar(50)"`
	Project     string          `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (JournalLineModel) TableName() string {
	return "journal_lines"
}

// ToDomain converts the persistence model to a domain JournalLine.
func (m *JournalLineModel) ToDomain() ledger.JournalLine {
	return ledger.JournalLine{
		ID:          m.ID,
		EntryID:     m.EntryID,
		LineNo:      m.LineNo,
		AccountID:   m.AccountID,
		AccountCode: m.AccountCode,
		Debit:       m.Debit,
		Credit:      m.Credit,
		Description: m.Description,
		CostCenter:  m.CostCenter,
		Project:     m.Project,
	}
}

// FromDomain populates the persistence model from a domain JournalLine.
func (m *JournalLineModel) FromDomain(l ledger.JournalLine, entryID uuid.UUID) {
	m.ID = l.ID
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.EntryID = entryID
	m.LineNo = l.LineNo
	m.AccountID = l.AccountID
	m.AccountCode = l.AccountCode
	m.Debit = l.Debit
	m.Credit = l.Credit
	m.Description = l.Description
	m.CostCenter = l.CostCenter
	m.Project = l.Project
}

// AccountBalanceModel is the persistence model for the balance cache.
// One row exists per account and as-of day.
type AccountBalanceModel struct {
	AccountID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AsOf         time.Time       `gorm:"type:date;primaryKey"`
	Balance      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalDebit   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalCredit  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	NeedsRefresh bool            `gorm:"not null;index"`
	ComputedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AccountBalanceModel) TableName() string {
	return "account_balances"
}

// ToDomain converts the persistence model to a domain AccountBalance.
func (m *AccountBalanceModel) ToDomain() *ledger.AccountBalance {
	return &ledger.AccountBalance{
		AccountID:    m.AccountID,
		AsOf:         ledger.DateOf(m.AsOf),
		Balance:      m.Balance,
		TotalDebit:   m.TotalDebit,
		TotalCredit:  m.TotalCredit,
		NeedsRefresh: m.NeedsRefresh,
		ComputedAt:   m.ComputedAt,
	}
}

// FromDomain populates the persistence model from a domain AccountBalance.
func (m *AccountBalanceModel) FromDomain(b *ledger.AccountBalance) {
	m.AccountID = b.AccountID
	m.AsOf = b.AsOf
	m.Balance = b.Balance
	m.TotalDebit = b.TotalDebit
	m.TotalCredit = b.TotalCredit
	m.NeedsRefresh = b.NeedsRefresh
	m.ComputedAt = b.ComputedAt
}

// SequenceModel holds the last number handed out for a key.
type SequenceModel struct {
	Name      string    `gorm:"type:varchar(100);primaryKey"`
	Seq       int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceModel) TableName() string {
	return "sequences"
}
