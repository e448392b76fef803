package loan

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccounts() Accounts {
	interest := uuid.New()
	return Accounts{LiabilityID: uuid.New(), BankID: uuid.New(), InterestExpenseID: &interest}
}

func newTestLoan(t *testing.T) *Loan {
	l, err := NewLoan("First Bank", dec("12000"), dec("12"), 12, FrequencyMonthly,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), testAccounts())
	require.NoError(t, err)
	return l
}

// ============================================
// Construction
// ============================================

func TestNewLoan(t *testing.T) {
	l := newTestLoan(t)
	assert.Equal(t, StatusActive, l.Status)
	assert.Len(t, l.Payments, 12)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 360), l.EndDate)
	assert.True(t, l.TotalInterest.Equal(dec("794.23")))
	for _, p := range l.Payments {
		assert.Equal(t, PaymentStatusScheduled, p.Status)
		assert.Equal(t, l.ID, p.LoanID)
	}
	assert.True(t, l.RemainingBalance().Equal(dec("12000")))
}

func TestNewLoan_Validation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	noInterest := testAccounts()
	noInterest.InterestExpenseID = nil

	tests := []struct {
		name      string
		principal decimal.Decimal
		rate      decimal.Decimal
		duration  int
		frequency Frequency
		accounts  Accounts
		code      string
	}{
		{"zero principal", decimal.Zero, dec("5"), 12, FrequencyMonthly, testAccounts(), "INVALID_PRINCIPAL"},
		{"rate above 100", dec("10"), dec("100.5"), 12, FrequencyMonthly, testAccounts(), "INVALID_RATE"},
		{"negative rate", dec("10"), dec("-1"), 12, FrequencyMonthly, testAccounts(), "INVALID_RATE"},
		{"no duration", dec("10"), dec("5"), 0, FrequencyMonthly, testAccounts(), "INVALID_DURATION"},
		{"bad frequency", dec("10"), dec("5"), 12, Frequency("weekly"), testAccounts(), "INVALID_FREQUENCY"},
		{"missing interest account", dec("10"), dec("5"), 12, FrequencyMonthly, noInterest, CodeMissingInterestAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoan("Bank", tt.principal, tt.rate, tt.duration, tt.frequency, start, tt.accounts)
			assert.True(t, shared.HasCode(err, tt.code), "got %v", err)
		})
	}

	_, err := NewLoan("Bank", dec("10"), decimal.Zero, 12, FrequencyMonthly, start, noInterest)
	assert.NoError(t, err, "interest account optional at zero rate")
}

func TestFormatLoanNumber(t *testing.T) {
	assert.Equal(t, "LOAN-24-0001", FormatLoanNumber(2024, 1))
	assert.Equal(t, "LOAN-05-0123", FormatLoanNumber(2005, 123))
	assert.Equal(t, "loan:2024", SequenceKey(2024))
}

// ============================================
// Payments
// ============================================

func TestLoan_SplitAndApply(t *testing.T) {
	l := newTestLoan(t)

	principal, interest, err := l.Split(dec("1066.19"))
	require.NoError(t, err)
	assert.True(t, interest.Equal(dec("120")))
	assert.True(t, principal.Equal(dec("946.19")))

	entryID, accountID := uuid.New(), l.Accounts.BankID
	paid := l.ApplyPayment(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), principal, interest, accountID, entryID)
	assert.Equal(t, 1, paid.PaymentNumber)
	assert.Equal(t, PaymentStatusCompleted, paid.Status)
	assert.Equal(t, entryID, *paid.JournalEntryID)
	assert.Len(t, l.Payments, 12, "scheduled row completed in place")
	assert.True(t, l.RemainingBalance().Equal(dec("11053.81")))
	assert.Equal(t, StatusActive, l.Status)
}

func TestLoan_Overpayment(t *testing.T) {
	l := newTestLoan(t)
	_, _, err := l.Split(dec("12120.01"))
	assert.True(t, shared.HasCode(err, CodeOverpayment))

	_, _, err = l.Split(dec("100"))
	assert.True(t, shared.HasCode(err, "INVALID_AMOUNT"), "does not cover interest")
}

func TestLoan_PayoffCompletesLoan(t *testing.T) {
	l, err := NewLoan("Friend", dec("300"), decimal.Zero, 3, FrequencyMonthly,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Accounts{LiabilityID: uuid.New(), BankID: uuid.New()})
	require.NoError(t, err)

	principal, interest, err := l.Split(dec("300"))
	require.NoError(t, err)
	assert.True(t, interest.IsZero())
	l.ApplyPayment(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), principal, interest, l.Accounts.BankID, uuid.New())

	assert.Equal(t, StatusCompleted, l.Status)
	assert.True(t, l.PaidPrincipal().Equal(l.Principal))
	assert.Equal(t, PaymentStatusCancelled, l.Payments[1].Status)

	_, _, err = l.Split(dec("1"))
	assert.Error(t, err)
}

func TestLoan_ApplyPaymentAppendsWhenNoScheduledRow(t *testing.T) {
	l, err := NewLoan("Friend", dec("300"), decimal.Zero, 1, FrequencyMonthly,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Accounts{LiabilityID: uuid.New(), BankID: uuid.New()})
	require.NoError(t, err)
	require.Len(t, l.Payments, 1)

	l.ApplyPayment(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), dec("100"), decimal.Zero, l.Accounts.BankID, uuid.New())
	second := l.ApplyPayment(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), dec("50"), decimal.Zero, l.Accounts.BankID, uuid.New())
	assert.Equal(t, 2, second.PaymentNumber)
	assert.Len(t, l.Payments, 2)
	assert.True(t, l.RemainingBalance().Equal(dec("150")))
}

func TestLoan_MarkOverdue(t *testing.T) {
	l := newTestLoan(t)
	changed := l.MarkOverdue(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, changed, "installments due 01-31 and 03-01")
	assert.Equal(t, PaymentStatusOverdue, l.Payments[0].Status)
	assert.Equal(t, PaymentStatusScheduled, l.Payments[2].Status)

	principal, interest, err := l.Split(dec("1066.19"))
	require.NoError(t, err)
	paid := l.ApplyPayment(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), principal, interest, l.Accounts.BankID, uuid.New())
	assert.Equal(t, 1, paid.PaymentNumber, "overdue installment settled")
}

func TestLoan_Cancel(t *testing.T) {
	l := newTestLoan(t)
	require.NoError(t, l.Cancel())
	assert.Equal(t, StatusCancelled, l.Status)
	assert.Equal(t, PaymentStatusCancelled, l.Payments[0].Status)
	assert.Error(t, l.Cancel())

	paid := newTestLoan(t)
	principal, interest, err := paid.Split(dec("1066.19"))
	require.NoError(t, err)
	paid.ApplyPayment(time.Now(), principal, interest, paid.Accounts.BankID, uuid.New())
	assert.Error(t, paid.Cancel())
}

func TestLoan_NextPaymentID(t *testing.T) {
	l := newTestLoan(t)
	assert.Equal(t, l.Payments[0].ID, l.NextPaymentID(), "scheduled row is reused")

	free, err := NewLoan("Friend", dec("300"), decimal.Zero, 1, FrequencyMonthly,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Accounts{LiabilityID: uuid.New(), BankID: uuid.New()})
	require.NoError(t, err)
	free.ApplyPayment(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), dec("100"), decimal.Zero, free.Accounts.BankID, uuid.New())

	reserved := free.NextPaymentID()
	assert.Equal(t, reserved, free.NextPaymentID(), "stable until applied")
	appended := free.ApplyPayment(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), dec("50"), decimal.Zero, free.Accounts.BankID, uuid.New())
	assert.Equal(t, reserved, appended.ID)
	assert.NotEqual(t, reserved, free.NextPaymentID())
}
