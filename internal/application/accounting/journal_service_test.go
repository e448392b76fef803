package accounting_test

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Authorizer
// =============================================================================

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) CanPost(ctx context.Context, user string, entry *ledger.JournalEntry) error {
	return m.Called(ctx, user, entry).Error(0)
}

func (m *MockAuthorizer) CanCancel(ctx context.Context, user string, entry *ledger.JournalEntry) error {
	return m.Called(ctx, user, entry).Error(0)
}

func draftLines(debit, credit, debitAmount, creditAmount string) []ledger.LineInput {
	return []ledger.LineInput{
		{AccountCode: debit, Debit: testutil.Dec(debitAmount), Credit: decimal.Zero},
		{AccountCode: credit, Debit: decimal.Zero, Credit: testutil.Dec(creditAmount)},
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestJournalService_CreateDraftAndPost(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	recorder := testutil.NewRecordingHandler(ledger.EventTypeJournalEntryPosted)
	env.Bus.Subscribe(recorder)

	draft, err := env.Ledger.Journals.CreateDraft(ctx, accounting.DraftInput{
		Date:        testutil.Day(2024, 3, 5),
		Description: "Owner contribution",
		Lines:       draftLines(ledger.CodePrimaryBank, "3100", "2500", "2500"),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusDraft, draft.Status)
	assert.Equal(t, "JV-2024-000001", draft.Number)
	assert.Equal(t, env.Period.ID, draft.PeriodID)
	assert.Empty(t, recorder.Handled(), "drafts publish nothing")

	_, err = env.Ledger.Journals.CreateDraft(ctx, accounting.DraftInput{
		Date:  testutil.Day(2024, 3, 6),
		Lines: draftLines(ledger.CodePrimaryBank, "3100", "1", "1"),
	})
	require.NoError(t, err)

	// drafts never count towards balances
	assert.True(t, env.Balance(t, ledger.CodePrimaryBank).IsZero())

	posted, err := env.Ledger.Journals.Post(ctx, draft.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusPosted, posted.Status)
	assert.Equal(t, "alice", posted.PostedBy)
	require.NotNil(t, posted.PostedAt)
	assert.Equal(t, []string{ledger.EventTypeJournalEntryPosted}, recorder.Types())

	assert.Equal(t, "2500.00", env.Balance(t, ledger.CodePrimaryBank).StringFixed(2))
	assert.Equal(t, "2500.00", env.Balance(t, "3100").StringFixed(2), "credit-nature accounts grow with credits")

	_, err = env.Ledger.Journals.Post(ctx, draft.ID, "alice")
	assert.True(t, shared.HasCode(err, ledger.CodeAlreadyPosted))
}

func TestJournalService_CreateDraftValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input accounting.DraftInput
		code  string
	}{
		{
			name:  "unbalanced",
			input: accounting.DraftInput{Date: testutil.Day(2024, 2, 1), Lines: draftLines(ledger.CodeMainCash, ledger.CodeAccountsReceivable, "100", "90")},
			code:  ledger.CodeUnbalancedEntry,
		},
		{
			name:  "non-leaf account",
			input: accounting.DraftInput{Date: testutil.Day(2024, 2, 1), Lines: draftLines("1100", ledger.CodeAccountsReceivable, "100", "100")},
			code:  ledger.CodeNonLeafAccount,
		},
		{
			name:  "unknown account",
			input: accounting.DraftInput{Date: testutil.Day(2024, 2, 1), Lines: draftLines("19999", ledger.CodeAccountsReceivable, "100", "100")},
			code:  ledger.CodeInvalidLine,
		},
		{
			name:  "no period",
			input: accounting.DraftInput{Date: testutil.Day(2025, 2, 1), Lines: draftLines(ledger.CodeMainCash, ledger.CodeAccountsReceivable, "100", "100")},
			code:  ledger.CodeNoPeriod,
		},
		{
			name: "debit and credit on one line",
			input: accounting.DraftInput{Date: testutil.Day(2024, 2, 1), Lines: []ledger.LineInput{
				{AccountCode: ledger.CodeMainCash, Debit: testutil.Dec("10"), Credit: testutil.Dec("10")},
				{AccountCode: ledger.CodeAccountsReceivable, Debit: decimal.Zero, Credit: decimal.Zero},
			}},
			code: ledger.CodeInvalidLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Ledger.Journals.CreateDraft(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, shared.HasCode(err, tt.code), "got %v", err)
		})
	}

	entries, err := env.Ledger.Journals.ListEntries(ctx, ledger.JournalEntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournalService_InactiveAccountRefused(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	draft, err := env.Ledger.Journals.CreateDraft(ctx, accounting.DraftInput{
		Date:  testutil.Day(2024, 4, 1),
		Lines: draftLines(ledger.CodeMainCash, ledger.CodeAccountsReceivable, "40", "40"),
	})
	require.NoError(t, err)

	require.NoError(t, env.Ledger.Accounts.SetActive(ctx, env.Account(t, ledger.CodeAccountsReceivable).ID, false))

	_, err = env.Ledger.Journals.Post(ctx, draft.ID, "alice")
	assert.True(t, shared.HasCode(err, ledger.CodeInactiveAccount))

	stored, err := env.Ledger.Journals.GetEntry(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusDraft, stored.Status)
}

func TestJournalService_ClosedPeriodRefusesPosting(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	draft, err := env.Ledger.Journals.CreateDraft(ctx, accounting.DraftInput{
		Date:  testutil.Day(2024, 6, 30),
		Lines: draftLines(ledger.CodeMainCash, ledger.CodeAccountsReceivable, "75", "75"),
	})
	require.NoError(t, err)

	_, err = env.Ledger.Accounts.ClosePeriod(ctx, env.Period.ID)
	require.NoError(t, err)

	_, err = env.Ledger.Journals.Post(ctx, draft.ID, "alice")
	assert.True(t, shared.HasCode(err, ledger.CodeClosedPeriod))

	_, err = env.Ledger.Accounts.ReopenPeriod(ctx, env.Period.ID)
	require.NoError(t, err)
	_, err = env.Ledger.Journals.Post(ctx, draft.ID, "alice")
	assert.NoError(t, err)
}

// Covers end-to-end scenario 6: cancelling a posted entry books its mirror image
func TestJournalService_Cancel(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	recorder := testutil.NewRecordingHandler()
	env.Bus.Subscribe(recorder)

	cashBefore := env.Balance(t, ledger.CodeMainCash)
	receivableBefore := env.Balance(t, ledger.CodeAccountsReceivable)

	original := env.Post(t, ledger.CodeMainCash, ledger.CodeAccountsReceivable, "100", testutil.Day(2024, 5, 2))
	assert.Equal(t, "100.00", env.Balance(t, ledger.CodeMainCash).Sub(cashBefore).StringFixed(2))

	reversal, err := env.Ledger.Journals.Cancel(ctx, original.ID, "bob", "duplicate receipt")
	require.NoError(t, err)

	assert.Equal(t, ledger.EntryStatusPosted, reversal.Status)
	assert.Equal(t, ledger.EntryTypeAdjustment, reversal.Type)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, original.ID, *reversal.ReversalOf)
	assert.Equal(t, ledger.Reference{Type: ledger.ReferenceTypeJournalEntry, ID: original.ID.String()}, reversal.Reference)
	require.Len(t, reversal.Lines, 2)
	assert.Equal(t, ledger.CodeMainCash, reversal.Lines[0].AccountCode)
	assert.Equal(t, "100.00", reversal.Lines[0].Credit.StringFixed(2))
	assert.Equal(t, ledger.CodeAccountsReceivable, reversal.Lines[1].AccountCode)
	assert.Equal(t, "100.00", reversal.Lines[1].Debit.StringFixed(2))

	cancelled, err := env.Ledger.Journals.GetEntry(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusCancelled, cancelled.Status)
	assert.Equal(t, "bob", cancelled.CancelledBy)
	assert.Equal(t, "duplicate receipt", cancelled.CancelReason)
	require.NotNil(t, cancelled.ReversedBy)
	assert.Equal(t, reversal.ID, *cancelled.ReversedBy)
	assert.Len(t, cancelled.Lines, 2, "the original keeps its lines")

	assert.True(t, env.Balance(t, ledger.CodeMainCash).Equal(cashBefore))
	assert.True(t, env.Balance(t, ledger.CodeAccountsReceivable).Equal(receivableBefore))

	assert.Equal(t, []string{
		ledger.EventTypeJournalEntryPosted,
		ledger.EventTypeJournalEntryPosted,
		ledger.EventTypeJournalEntryCancelled,
	}, recorder.Types())

	_, err = env.Ledger.Journals.Cancel(ctx, original.ID, "bob", "again")
	assert.Error(t, err)
	_, err = env.Ledger.Journals.Cancel(ctx, reversal.ID, "bob", "undo the undo")
	assert.NoError(t, err, "a reversal is an ordinary posted entry")
}

func TestJournalService_DeleteDraft(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	draft, err := env.Ledger.Journals.CreateDraft(ctx, accounting.DraftInput{
		Date:  testutil.Day(2024, 7, 1),
		Lines: draftLines(ledger.CodeMainCash, ledger.CodeAccountsReceivable, "12.5", "12.5"),
	})
	require.NoError(t, err)
	require.NoError(t, env.Ledger.Journals.DeleteDraft(ctx, draft.ID))

	_, err = env.Ledger.Journals.GetEntry(ctx, draft.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	posted := env.Post(t, ledger.CodeMainCash, ledger.CodeAccountsReceivable, "12.5", testutil.Day(2024, 7, 1))
	err = env.Ledger.Journals.DeleteDraft(ctx, posted.ID)
	assert.Error(t, err)
}

func TestJournalService_FindByReference(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ref := ledger.Reference{Type: "sale_payment", ID: "SALE-7-PAY-1"}

	entry, err := env.Ledger.Journals.CreateSimple(ctx, accounting.SimpleInput{
		DebitCode:  ledger.CodeMainCash,
		CreditCode: ledger.CodeAccountsReceivable,
		Amount:     testutil.Dec("30"),
		Date:       testutil.Day(2024, 8, 8),
		Reference:  ref,
		Post:       true,
		User:       "sync",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryTypeAutomatic, entry.Type)
	assert.Equal(t, "AJ-2024-000001", entry.Number)

	found, err := env.Ledger.Journals.FindByReference(ctx, ref)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, entry.ID, found[0].ID)

	_, err = env.Ledger.Journals.CreateSimple(ctx, accounting.SimpleInput{
		DebitCode:  ledger.CodeMainCash,
		CreditCode: ledger.CodeAccountsReceivable,
		Amount:     decimal.Zero,
		Date:       testutil.Day(2024, 8, 8),
	})
	assert.True(t, shared.HasCode(err, ledger.CodeInvalidLine))
}

func TestJournalService_Authorizer(t *testing.T) {
	authorizer := new(MockAuthorizer)
	env := testutil.NewEnv(t, testutil.WithAuthorizer(authorizer))
	ctx := context.Background()
	denied := shared.Errorf(shared.KindPermission, "FORBIDDEN", "user %s may not post", "intern")

	authorizer.On("CanPost", mock.Anything, "intern", mock.Anything).Return(denied)
	authorizer.On("CanPost", mock.Anything, "controller", mock.Anything).Return(nil)

	draft, err := env.Ledger.Journals.CreateDraft(ctx, accounting.DraftInput{
		Date:  testutil.Day(2024, 9, 9),
		Lines: draftLines(ledger.CodeMainCash, ledger.CodeAccountsReceivable, "5", "5"),
	})
	require.NoError(t, err)

	_, err = env.Ledger.Journals.Post(ctx, draft.ID, "intern")
	assert.ErrorIs(t, err, denied)

	posted, err := env.Ledger.Journals.Post(ctx, draft.ID, "controller")
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusPosted, posted.Status)
	authorizer.AssertExpectations(t)
}
