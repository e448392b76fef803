package loan

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes raised by the loan subsystem
const (
	CodeOverpayment            = "OVERPAYMENT"
	CodeMissingInterestAccount = "MISSING_INTEREST_ACCOUNT"
)

// Reference types written on loan journal entries
const (
	ReferenceTypeLoanInit    = "loan_init"
	ReferenceTypeLoanPayment = "loan_payment"
)

var maxAnnualRate = decimal.NewFromInt(100)

// Status represents the lifecycle state of a loan
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// PaymentStatus represents the state of a single installment
type PaymentStatus string

const (
	PaymentStatusScheduled PaymentStatus = "scheduled"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusOverdue   PaymentStatus = "overdue"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusScheduled, PaymentStatusCompleted, PaymentStatusOverdue, PaymentStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsOpen returns true for installments still awaiting payment
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusScheduled || s == PaymentStatusOverdue
}

// Accounts are the catalog accounts a loan posts to
type Accounts struct {
	LiabilityID       uuid.UUID  `json:"liability_id"`
	BankID            uuid.UUID  `json:"bank_id"`
	InterestExpenseID *uuid.UUID `json:"interest_expense_id"`
}

// Payment is an installment of a loan, scheduled or settled
type Payment struct {
	ID                uuid.UUID       `json:"id"`
	LoanID            uuid.UUID       `json:"loan_id"`
	PaymentNumber     int             `json:"payment_number"`
	ScheduledDate     time.Time       `json:"scheduled_date"`
	ActualPaymentDate *time.Time      `json:"actual_payment_date"`
	Principal         decimal.Decimal `json:"principal"`
	Interest          decimal.Decimal `json:"interest"`
	PaymentAccountID  *uuid.UUID      `json:"payment_account_id"`
	JournalEntryID    *uuid.UUID      `json:"journal_entry_id"`
	Status            PaymentStatus   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Amount returns principal plus interest
func (p *Payment) Amount() decimal.Decimal {
	return p.Principal.Add(p.Interest)
}

// Loan is the aggregate root of the loan subsystem
type Loan struct {
	shared.BaseAggregateRoot
	LoanNumber     string          `json:"loan_number"`
	Lender         string          `json:"lender"`
	Principal      decimal.Decimal `json:"principal"`
	AnnualRate     decimal.Decimal `json:"annual_rate"`
	DurationMonths int             `json:"duration_months"`
	Frequency      Frequency       `json:"frequency"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	Accounts       Accounts        `json:"accounts"`
	InitialEntryID *uuid.UUID      `json:"initial_entry_id"`
	Status         Status          `json:"status"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	Description    string          `json:"description"`
	Payments       []Payment       `json:"payments"`

	// id reserved for an appended installment by NextPaymentID
	pendingPaymentID uuid.UUID
}

// NewLoan creates an active loan and derives its schedule
func NewLoan(lender string, principal, annualRate decimal.Decimal, durationMonths int, frequency Frequency, start time.Time, accounts Accounts) (*Loan, error) {
	if strings.TrimSpace(lender) == "" {
		return nil, shared.NewValidationError("INVALID_LENDER", "Lender cannot be empty")
	}
	if !principal.IsPositive() {
		return nil, shared.NewValidationError("INVALID_PRINCIPAL", "Principal must be positive")
	}
	if annualRate.IsNegative() || annualRate.GreaterThan(maxAnnualRate) {
		return nil, shared.NewValidationError("INVALID_RATE", "Annual rate must be between 0 and 100")
	}
	if durationMonths < 1 {
		return nil, shared.NewValidationError("INVALID_DURATION", "Duration must be at least one month")
	}
	if !frequency.IsValid() {
		return nil, shared.NewValidationError("INVALID_FREQUENCY", fmt.Sprintf("Unknown payment frequency %q", frequency))
	}
	if start.IsZero() {
		return nil, shared.NewValidationError("INVALID_START_DATE", "Start date is required")
	}
	if accounts.LiabilityID == uuid.Nil || accounts.BankID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ACCOUNTS", "Liability and bank accounts are required")
	}
	if annualRate.IsPositive() && (accounts.InterestExpenseID == nil || *accounts.InterestExpenseID == uuid.Nil) {
		return nil, shared.NewValidationError(CodeMissingInterestAccount, "Interest expense account is required for interest-bearing loans")
	}

	start = dateOf(start)
	l := &Loan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Lender:            lender,
		Principal:         principal.Round(2),
		AnnualRate:        annualRate,
		DurationMonths:    durationMonths,
		Frequency:         frequency,
		StartDate:         start,
		// 30-day months, not calendar months
		EndDate:  start.AddDate(0, 0, durationMonths*30),
		Accounts: accounts,
		Status:   StatusActive,
	}
	l.buildSchedule()
	return l, nil
}

func (l *Loan) buildSchedule() {
	now := time.Now()
	l.Payments = l.Payments[:0]
	l.TotalInterest = decimal.Zero
	for _, inst := range BuildSchedule(l.Principal, l.AnnualRate, l.DurationMonths, l.Frequency, l.StartDate) {
		l.TotalInterest = l.TotalInterest.Add(inst.Interest)
		l.Payments = append(l.Payments, Payment{
			ID:            uuid.New(),
			LoanID:        l.ID,
			PaymentNumber: inst.Number,
			ScheduledDate: inst.ScheduledDate,
			Principal:     inst.Principal,
			Interest:      inst.Interest,
			Status:        PaymentStatusScheduled,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
}

// FormatLoanNumber renders LOAN-YY-NNNN
func FormatLoanNumber(year int, seq int64) string {
	return fmt.Sprintf("LOAN-%02d-%04d", year%100, seq)
}

// SequenceKey returns the numbering sequence key for loans starting in year
func SequenceKey(year int) string {
	return fmt.Sprintf("loan:%04d", year)
}

// AssignNumber sets the loan number once
func (l *Loan) AssignNumber(number string) {
	if l.LoanNumber == "" {
		l.LoanNumber = number
	}
}

// LinkInitialEntry records the entry that booked the loan proceeds
func (l *Loan) LinkInitialEntry(entryID uuid.UUID) {
	l.InitialEntryID = &entryID
	l.Touch()
}

// PeriodicRate returns the interest rate applied per installment
func (l *Loan) PeriodicRate() decimal.Decimal {
	return PeriodicRate(l.AnnualRate, l.Frequency)
}

// PaidPrincipal sums the principal of completed payments
func (l *Loan) PaidPrincipal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Payments {
		if p.Status == PaymentStatusCompleted {
			total = total.Add(p.Principal)
		}
	}
	return total
}

// RemainingBalance is principal minus completed principal payments
func (l *Loan) RemainingBalance() decimal.Decimal {
	return l.Principal.Sub(l.PaidPrincipal())
}

// CompletedPayments counts settled installments
func (l *Loan) CompletedPayments() int {
	n := 0
	for _, p := range l.Payments {
		if p.Status == PaymentStatusCompleted {
			n++
		}
	}
	return n
}

// Split divides a payment amount into interest on the remaining balance and principal
func (l *Loan) Split(amount decimal.Decimal) (principal, interest decimal.Decimal, err error) {
	if l.Status != StatusActive {
		return decimal.Zero, decimal.Zero, shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot record payment on %s loan", l.Status))
	}
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	amount = amount.Round(2)
	remaining := l.RemainingBalance()
	interest = decimal.Zero
	if l.AnnualRate.IsPositive() {
		interest = remaining.Mul(l.PeriodicRate()).Round(2)
	}
	principal = amount.Sub(interest)
	if principal.IsNegative() {
		return decimal.Zero, decimal.Zero, shared.NewValidationError("INVALID_AMOUNT",
			fmt.Sprintf("Payment %s does not cover interest %s", amount.StringFixed(2), interest.StringFixed(2)))
	}
	if principal.GreaterThan(remaining) {
		return decimal.Zero, decimal.Zero, shared.NewValidationError(CodeOverpayment,
			fmt.Sprintf("Principal %s exceeds remaining balance %s", principal.StringFixed(2), remaining.StringFixed(2)))
	}
	return principal, interest, nil
}

// nextOpen returns the open installment carrying the next payment number
func (l *Loan) nextOpen() *Payment {
	next := l.CompletedPayments() + 1
	for i := range l.Payments {
		if l.Payments[i].PaymentNumber == next && l.Payments[i].Status.IsOpen() {
			return &l.Payments[i]
		}
	}
	return nil
}

// NextPaymentID returns the ID the installment settled by the next
// ApplyPayment will carry
func (l *Loan) NextPaymentID() uuid.UUID {
	if open := l.nextOpen(); open != nil {
		return open.ID
	}
	if l.pendingPaymentID == uuid.Nil {
		l.pendingPaymentID = uuid.New()
	}
	return l.pendingPaymentID
}

// ApplyPayment settles the next installment. An open scheduled row with
// the next number is completed in place; otherwise a new row is appended.
func (l *Loan) ApplyPayment(date time.Time, principal, interest decimal.Decimal, accountID, entryID uuid.UUID) *Payment {
	now := time.Now()
	date = dateOf(date)

	target := l.nextOpen()
	if target == nil {
		number := 0
		for _, p := range l.Payments {
			if p.PaymentNumber > number {
				number = p.PaymentNumber
			}
		}
		l.Payments = append(l.Payments, Payment{
			ID:            l.NextPaymentID(),
			LoanID:        l.ID,
			PaymentNumber: number + 1,
			ScheduledDate: date,
			CreatedAt:     now,
		})
		target = &l.Payments[len(l.Payments)-1]
		l.pendingPaymentID = uuid.Nil
	}

	target.ActualPaymentDate = &date
	target.Principal = principal
	target.Interest = interest
	target.PaymentAccountID = &accountID
	target.JournalEntryID = &entryID
	target.Status = PaymentStatusCompleted
	target.UpdatedAt = now

	if !l.RemainingBalance().IsPositive() {
		l.Status = StatusCompleted
		for i := range l.Payments {
			if l.Payments[i].Status.IsOpen() {
				l.Payments[i].Status = PaymentStatusCancelled
				l.Payments[i].UpdatedAt = now
			}
		}
	}
	l.Touch()
	l.IncrementVersion()
	return target
}

// MarkOverdue flags open installments scheduled before asOf and returns how many changed
func (l *Loan) MarkOverdue(asOf time.Time) int {
	if l.Status != StatusActive {
		return 0
	}
	asOf = dateOf(asOf)
	changed := 0
	for i := range l.Payments {
		p := &l.Payments[i]
		if p.Status == PaymentStatusScheduled && p.ScheduledDate.Before(asOf) {
			p.Status = PaymentStatusOverdue
			p.UpdatedAt = time.Now()
			changed++
		}
	}
	if changed > 0 {
		l.Touch()
	}
	return changed
}

// Cancel cancels a loan that has no settled installments
func (l *Loan) Cancel() error {
	if l.Status != StatusActive {
		return shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot cancel loan in %s status", l.Status))
	}
	if l.CompletedPayments() > 0 {
		return shared.NewStateError("INVALID_STATE", "Cannot cancel a loan with completed payments")
	}
	now := time.Now()
	l.Status = StatusCancelled
	for i := range l.Payments {
		l.Payments[i].Status = PaymentStatusCancelled
		l.Payments[i].UpdatedAt = now
	}
	l.Touch()
	l.IncrementVersion()
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
