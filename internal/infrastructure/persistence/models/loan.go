package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/loan"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanModel is the persistence model for the Loan aggregate root.
type LoanModel struct {
	AggregateModel
	LoanNumber        string             `gorm:"type:varchar(20);not null;uniqueIndex"`
	Lender            string             `gorm:"type:varchar(200);not null"`
	Principal         decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	AnnualRate        decimal.Decimal    `gorm:"type:decimal(7,4);not null"`
	DurationMonths    int                `gorm:"not null"`
	Frequency         loan.Frequency     `gorm:"type:varchar(20);not null"`
	StartDate         time.Time          `gorm:"type:date;not null"`
	EndDate           time.Time          `gorm:"type:date;not null"`
	LiabilityID       uuid.UUID          `gorm:"type:uuid;not null"`
	BankID            uuid.UUID          `gorm:"type:uuid;not null"`
	InterestExpenseID *uuid.UUID         `gorm:"type:uuid"`
	InitialEntryID    *uuid.UUID         `gorm:"type:uuid"`
	Status            loan.Status        `gorm:"type:varchar(20);not null;index"`
	TotalInterest     decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	Description       string             `gorm:"type:text"`
	Payments          []LoanPaymentModel `gorm:"foreignKey:LoanID;references:ID"`
}

// TableName returns the table name for GORM
func (LoanModel) TableName() string {
	return "loans"
}

// ToDomain converts the persistence model to a domain Loan.
func (m *LoanModel) ToDomain() *loan.Loan {
	l := &loan.Loan{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		LoanNumber:        m.LoanNumber,
		Lender:            m.Lender,
		Principal:         m.Principal,
		AnnualRate:        m.AnnualRate,
		DurationMonths:    m.DurationMonths,
		Frequency:         m.Frequency,
		StartDate:         m.StartDate.UTC(),
		EndDate:           m.EndDate.UTC(),
		Accounts: loan.Accounts{
			LiabilityID:       m.LiabilityID,
			BankID:            m.BankID,
			InterestExpenseID: m.InterestExpenseID,
		},
		InitialEntryID: m.InitialEntryID,
		Status:         m.Status,
		TotalInterest:  m.TotalInterest,
		Description:    m.Description,
		Payments:       make([]loan.Payment, len(m.Payments)),
	}
	for i := range m.Payments {
		l.Payments[i] = m.Payments[i].ToDomain()
	}
	return l
}

// FromDomain populates the persistence model from a domain Loan.
func (m *LoanModel) FromDomain(l *loan.Loan) {
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	m.LoanNumber = l.LoanNumber
	m.Lender = l.Lender
	m.Principal = l.Principal
	m.AnnualRate = l.AnnualRate
	m.DurationMonths = l.DurationMonths
	m.Frequency = l.Frequency
	m.StartDate = l.StartDate
	m.EndDate = l.EndDate
	m.LiabilityID = l.Accounts.LiabilityID
	m.BankID = l.Accounts.BankID
	m.InterestExpenseID = l.Accounts.InterestExpenseID
	m.InitialEntryID = l.InitialEntryID
	m.Status = l.Status
	m.TotalInterest = l.TotalInterest
	m.Description = l.Description
	m.Payments = make([]LoanPaymentModel, len(l.Payments))
	for i := range l.Payments {
		m.Payments[i].FromDomain(&l.Payments[i], l.ID)
	}
}

// LoanModelFromDomain creates a new persistence model from a domain Loan.
func LoanModelFromDomain(l *loan.Loan) *LoanModel {
	m := &LoanModel{}
	m.FromDomain(l)
	return m
}

// LoanPaymentModel is the persistence model for loan installments.
type LoanPaymentModel struct {
	ID                uuid.UUID          `gorm:"type:uuid;primary_key"`
	LoanID            uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_loan_payments_number,priority:1"`
	PaymentNumber     int                `gorm:"not null;uniqueIndex:idx_loan_payments_number,priority:2"`
	ScheduledDate     time.Time          `gorm:"type:date;not null;index"`
	ActualPaymentDate *time.Time         `gorm:"type:date"`
	Principal         decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	Interest          decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	PaymentAccountID  *uuid.UUID         `gorm:"type:uuid"`
	JournalEntryID    *uuid.UUID         `gorm:"type:uuid"`
	Status            loan.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	CreatedAt         time.Time          `gorm:"not null"`
	UpdatedAt         time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LoanPaymentModel) TableName() string {
	return "loan_payments"
}

// ToDomain converts the persistence model to a domain loan Payment.
func (m *LoanPaymentModel) ToDomain() loan.Payment {
	p := loan.Payment{
		ID:               m.ID,
		LoanID:           m.LoanID,
		PaymentNumber:    m.PaymentNumber,
		ScheduledDate:    m.ScheduledDate.UTC(),
		Principal:        m.Principal,
		Interest:         m.Interest,
		PaymentAccountID: m.PaymentAccountID,
		JournalEntryID:   m.JournalEntryID,
		Status:           m.Status,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.ActualPaymentDate != nil {
		d := m.ActualPaymentDate.UTC()
		p.ActualPaymentDate = &d
	}
	return p
}

// FromDomain populates the persistence model from a domain loan Payment.
func (m *LoanPaymentModel) FromDomain(p *loan.Payment, loanID uuid.UUID) {
	m.ID = p.ID
	m.LoanID = loanID
	m.PaymentNumber = p.PaymentNumber
	m.ScheduledDate = p.ScheduledDate
	m.ActualPaymentDate = p.ActualPaymentDate
	m.Principal = p.Principal
	m.Interest = p.Interest
	m.PaymentAccountID = p.PaymentAccountID
	m.JournalEntryID = p.JournalEntryID
	m.Status = p.Status
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}
