package loan_test

import (
	"context"
	"testing"

	loanapp "github.com/erp/ledger/internal/application/loan"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/loan"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardLoan() loanapp.CreateLoanInput {
	return loanapp.CreateLoanInput{
		Lender:         "First Bank",
		Principal:      testutil.Dec("12000"),
		AnnualRate:     testutil.Dec("12"),
		DurationMonths: 12,
		Frequency:      string(loan.FrequencyMonthly),
		StartDate:      testutil.Day(2024, 1, 1),
	}
}

func createLoan(t *testing.T, env *testutil.Env, input loanapp.CreateLoanInput) *loan.Loan {
	t.Helper()
	l, err := env.Loans.CreateLoan(context.Background(), input, "treasurer")
	require.NoError(t, err)
	return l
}

func onlyEntry(t *testing.T, env *testutil.Env, ref ledger.Reference) ledger.JournalEntry {
	t.Helper()
	entries, err := env.Ledger.Journals.FindByReference(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return entries[0]
}

// =============================================================================
// CreateLoan
// =============================================================================

func TestService_CreateLoan(t *testing.T) {
	env := testutil.NewEnv(t)
	l := createLoan(t, env, standardLoan())

	assert.Equal(t, "LOAN-24-0001", l.LoanNumber)
	assert.Equal(t, loan.StatusActive, l.Status)
	require.Len(t, l.Payments, 12)

	first := l.Payments[0]
	assert.Equal(t, "1066.19", first.Amount().StringFixed(2))
	assert.Equal(t, "120.00", first.Interest.StringFixed(2))
	assert.Equal(t, "946.19", first.Principal.StringFixed(2))
	assert.Equal(t, loan.PaymentStatusScheduled, first.Status)

	sum := decimal.Zero
	for _, p := range l.Payments {
		sum = sum.Add(p.Principal)
	}
	assert.Equal(t, "12000.00", sum.StringFixed(2))

	require.NotNil(t, l.InitialEntryID)
	entry := onlyEntry(t, env, loanapp.InitReference(l.ID))
	assert.Equal(t, *l.InitialEntryID, entry.ID)
	assert.Equal(t, ledger.EntryStatusPosted, entry.Status)
	assert.Equal(t, "LOAN-INIT-"+l.ID.String(), entry.Reference.ID)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, env.Account(t, ledger.CodePrimaryBank).ID, entry.Lines[0].AccountID)
	assert.Equal(t, "12000.00", entry.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, env.Account(t, ledger.CodeLongTermLoans).ID, entry.Lines[1].AccountID)
	assert.Equal(t, "12000.00", entry.Lines[1].Credit.StringFixed(2))

	assert.Equal(t, "12000.00", env.Balance(t, ledger.CodePrimaryBank).StringFixed(2))
	assert.Equal(t, "12000.00", env.Balance(t, ledger.CodeLongTermLoans).StringFixed(2))

	second := createLoan(t, env, standardLoan())
	assert.Equal(t, "LOAN-24-0002", second.LoanNumber)
}

func TestService_CreateLoanValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*loanapp.CreateLoanInput)
		code   string
	}{
		{
			name:   "missing lender",
			mutate: func(in *loanapp.CreateLoanInput) { in.Lender = "" },
		},
		{
			name:   "zero principal",
			mutate: func(in *loanapp.CreateLoanInput) { in.Principal = decimal.Zero },
			code:   "INVALID_PRINCIPAL",
		},
		{
			name:   "rate above 100",
			mutate: func(in *loanapp.CreateLoanInput) { in.AnnualRate = testutil.Dec("120") },
			code:   "INVALID_RATE",
		},
		{
			name:   "unknown frequency",
			mutate: func(in *loanapp.CreateLoanInput) { in.Frequency = "weekly" },
		},
		{
			name:   "missing interest account",
			mutate: func(in *loanapp.CreateLoanInput) { in.InterestCode = "59999" },
			code:   loan.CodeMissingInterestAccount,
		},
		{
			name:   "start outside any period",
			mutate: func(in *loanapp.CreateLoanInput) { in.StartDate = testutil.Day(2030, 1, 1) },
			code:   ledger.CodeNoPeriod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := standardLoan()
			tt.mutate(&input)
			_, err := env.Loans.CreateLoan(ctx, input, "treasurer")
			require.Error(t, err)
			if tt.code != "" {
				assert.True(t, shared.HasCode(err, tt.code), "got %v", err)
			}
		})
	}

	loans, err := env.Loans.ListLoans(ctx, loan.Filter{})
	require.NoError(t, err)
	assert.Empty(t, loans)
	assert.True(t, env.Balance(t, ledger.CodePrimaryBank).IsZero())
}

// =============================================================================
// RecordPayment
// =============================================================================

func TestService_RecordPayment(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	l := createLoan(t, env, standardLoan())

	paid, err := env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 2, 1),
		Amount: testutil.Dec("1066.19"),
	}, "treasurer")
	require.NoError(t, err)
	assert.Equal(t, 1, paid.PaymentNumber)
	assert.Equal(t, l.Payments[0].ID, paid.ID, "the scheduled installment is settled in place")
	assert.Equal(t, loan.PaymentStatusCompleted, paid.Status)
	assert.Equal(t, "946.19", paid.Principal.StringFixed(2))
	assert.Equal(t, "120.00", paid.Interest.StringFixed(2))
	require.NotNil(t, paid.ActualPaymentDate)
	assert.Equal(t, testutil.Day(2024, 2, 1), *paid.ActualPaymentDate)

	entry := onlyEntry(t, env, loanapp.PaymentReference(paid.ID))
	require.NotNil(t, paid.JournalEntryID)
	assert.Equal(t, *paid.JournalEntryID, entry.ID)
	require.Len(t, entry.Lines, 3)
	assert.Equal(t, env.Account(t, ledger.CodeLongTermLoans).ID, entry.Lines[0].AccountID)
	assert.Equal(t, "946.19", entry.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, env.Account(t, ledger.CodeLoanInterestExpense).ID, entry.Lines[1].AccountID)
	assert.Equal(t, "120.00", entry.Lines[1].Debit.StringFixed(2))
	assert.Equal(t, env.Account(t, ledger.CodePrimaryBank).ID, entry.Lines[2].AccountID)
	assert.Equal(t, "1066.19", entry.Lines[2].Credit.StringFixed(2))

	assert.Equal(t, "11053.81", env.Balance(t, ledger.CodeLongTermLoans).StringFixed(2))
	assert.Equal(t, "120.00", env.Balance(t, ledger.CodeLoanInterestExpense).StringFixed(2))
	assert.Equal(t, "10933.81", env.Balance(t, ledger.CodePrimaryBank).StringFixed(2))

	stored, err := env.Loans.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CompletedPayments())
	assert.Equal(t, "11053.81", stored.RemainingBalance().StringFixed(2))
	assert.Equal(t, loan.StatusActive, stored.Status)
}

func TestService_RecordInterestOnlyPayment(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	l := createLoan(t, env, standardLoan())

	paid, err := env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 2, 1),
		Amount: testutil.Dec("120.00"),
	}, "treasurer")
	require.NoError(t, err)
	assert.True(t, paid.Principal.IsZero())
	assert.Equal(t, "120.00", paid.Interest.StringFixed(2))

	entry := onlyEntry(t, env, loanapp.PaymentReference(paid.ID))
	require.Len(t, entry.Lines, 2, "no liability line for a zero principal")
	assert.Equal(t, env.Account(t, ledger.CodeLoanInterestExpense).ID, entry.Lines[0].AccountID)
	assert.Equal(t, "120.00", entry.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, env.Account(t, ledger.CodePrimaryBank).ID, entry.Lines[1].AccountID)
	assert.Equal(t, "120.00", entry.Lines[1].Credit.StringFixed(2))

	assert.Equal(t, "12000.00", env.Balance(t, ledger.CodeLongTermLoans).StringFixed(2))
	stored, err := env.Loans.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "12000.00", stored.RemainingBalance().StringFixed(2))
	assert.Equal(t, loan.StatusActive, stored.Status)
}

func TestService_RecordPaymentRejections(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	l := createLoan(t, env, standardLoan())

	_, err := env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 2, 1),
		Amount: testutil.Dec("100"),
	}, "treasurer")
	assert.True(t, shared.HasCode(err, "INVALID_AMOUNT"), "payments must cover the interest due")

	_, err = env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 2, 1),
		Amount: testutil.Dec("12120.01"),
	}, "treasurer")
	assert.True(t, shared.HasCode(err, loan.CodeOverpayment))

	_, err = env.Loans.RecordPayment(ctx, uuid.New(), loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 2, 1),
		Amount: testutil.Dec("100"),
	}, "treasurer")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	stored, err := env.Loans.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.CompletedPayments())
	assert.Equal(t, "12000.00", env.Balance(t, ledger.CodePrimaryBank).StringFixed(2))
}

func TestService_RecordPaymentFromOtherAccount(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	l := createLoan(t, env, standardLoan())

	paid, err := env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:        testutil.Day(2024, 2, 1),
		Amount:      testutil.Dec("2000"),
		PaymentCode: ledger.CodeMainCash,
	}, "treasurer")
	require.NoError(t, err)
	assert.Equal(t, "1880.00", paid.Principal.StringFixed(2))
	require.NotNil(t, paid.PaymentAccountID)
	assert.Equal(t, env.Account(t, ledger.CodeMainCash).ID, *paid.PaymentAccountID)
	assert.Equal(t, "-2000.00", env.Balance(t, ledger.CodeMainCash).StringFixed(2))
}

func TestService_ZeroRateLoanPaidOff(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	input := standardLoan()
	input.Principal = testutil.Dec("1000")
	input.AnnualRate = decimal.Zero
	input.DurationMonths = 6
	input.Frequency = string(loan.FrequencyQuarterly)
	l := createLoan(t, env, input)
	require.Len(t, l.Payments, 2)
	assert.True(t, l.TotalInterest.IsZero())

	first, err := env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 4, 1),
		Amount: testutil.Dec("400"),
	}, "treasurer")
	require.NoError(t, err)
	assert.True(t, first.Interest.IsZero())
	assert.Len(t, onlyEntry(t, env, loanapp.PaymentReference(first.ID)).Lines, 2, "no interest line without interest")

	_, err = env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 7, 1),
		Amount: testutil.Dec("600"),
	}, "treasurer")
	require.NoError(t, err)

	stored, err := env.Loans.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusCompleted, stored.Status)
	assert.True(t, stored.RemainingBalance().IsZero())
	assert.True(t, env.Balance(t, ledger.CodeLongTermLoans).IsZero())

	_, err = env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 8, 1),
		Amount: testutil.Dec("1"),
	}, "treasurer")
	assert.True(t, shared.HasCode(err, "INVALID_STATE"))
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestService_MarkOverdue(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	l := createLoan(t, env, standardLoan())

	// installments fall every 30 days: Jan 31, Mar 1, Mar 31...
	changed, err := env.Loans.MarkOverdue(ctx, testutil.Day(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	again, err := env.Loans.MarkOverdue(ctx, testutil.Day(2024, 3, 15))
	require.NoError(t, err)
	assert.Zero(t, again)

	stored, err := env.Loans.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.PaymentStatusOverdue, stored.Payments[0].Status)
	assert.Equal(t, loan.PaymentStatusOverdue, stored.Payments[1].Status)
	assert.Equal(t, loan.PaymentStatusScheduled, stored.Payments[2].Status)

	paid, err := env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 3, 16),
		Amount: testutil.Dec("1066.19"),
	}, "treasurer")
	require.NoError(t, err)
	assert.Equal(t, 1, paid.PaymentNumber, "overdue installments are settled first")
}

func TestService_CancelLoan(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	l := createLoan(t, env, standardLoan())

	cancelled, err := env.Loans.CancelLoan(ctx, l.ID, "treasurer", "signed in error")
	require.NoError(t, err)
	assert.Equal(t, loan.StatusCancelled, cancelled.Status)
	for _, p := range cancelled.Payments {
		assert.Equal(t, loan.PaymentStatusCancelled, p.Status)
	}

	initial, err := env.Ledger.Journals.GetEntry(ctx, *l.InitialEntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusCancelled, initial.Status)
	assert.NotNil(t, initial.ReversedBy)
	assert.True(t, env.Balance(t, ledger.CodePrimaryBank).IsZero())
	assert.True(t, env.Balance(t, ledger.CodeLongTermLoans).IsZero())

	_, err = env.Loans.CancelLoan(ctx, l.ID, "treasurer", "twice")
	assert.True(t, shared.HasCode(err, "INVALID_STATE"))

	status := loan.StatusCancelled
	loans, err := env.Loans.ListLoans(ctx, loan.Filter{Status: &status})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, l.ID, loans[0].ID)
}

func TestService_CancelLoanWithPayments(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	l := createLoan(t, env, standardLoan())
	_, err := env.Loans.RecordPayment(ctx, l.ID, loanapp.RecordPaymentInput{
		Date:   testutil.Day(2024, 2, 1),
		Amount: testutil.Dec("1066.19"),
	}, "treasurer")
	require.NoError(t, err)

	_, err = env.Loans.CancelLoan(ctx, l.ID, "treasurer", "too late")
	assert.True(t, shared.HasCode(err, "INVALID_STATE"))

	initial, err := env.Ledger.Journals.GetEntry(ctx, *l.InitialEntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusPosted, initial.Status)
}
