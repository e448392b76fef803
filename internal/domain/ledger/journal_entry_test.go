package ledger

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPeriod(t *testing.T) *AccountingPeriod {
	p, err := NewAccountingPeriod("2024", day(2024, 1, 1), day(2024, 12, 31))
	require.NoError(t, err)
	return p
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func balancedLines(a, b uuid.UUID, v string) []LineInput {
	return []LineInput{
		DebitLine(a, amount(v), "debit"),
		CreditLine(b, amount(v), "credit"),
	}
}

// ============================================
// JournalLine Tests
// ============================================

func TestLineInput_Validate(t *testing.T) {
	acc := uuid.New()
	tests := []struct {
		name  string
		line  LineInput
		valid bool
	}{
		{"debit only", DebitLine(acc, amount("10"), ""), true},
		{"credit only", CreditLine(acc, amount("10"), ""), true},
		{"both sides", LineInput{AccountID: acc, Debit: amount("10"), Credit: amount("10")}, false},
		{"neither side", LineInput{AccountID: acc}, false},
		{"negative", DebitLine(acc, amount("-1"), ""), false},
		{"no account", DebitLine(uuid.Nil, amount("1"), ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, shared.HasCode(err, CodeInvalidLine))
			}
		})
	}
}

// ============================================
// JournalEntry Tests
// ============================================

func TestNewJournalEntry(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	t.Run("balanced draft", func(t *testing.T) {
		je, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "test", balancedLines(a, b, "100"), Reference{})
		require.NoError(t, err)
		assert.Equal(t, EntryStatusDraft, je.Status)
		assert.Len(t, je.Lines, 2)
		assert.Equal(t, je.ID, je.Lines[0].EntryID)
		assert.Equal(t, []uuid.UUID{a, b}, je.AccountIDs())
	})

	t.Run("unbalanced", func(t *testing.T) {
		lines := []LineInput{DebitLine(a, amount("100"), ""), CreditLine(b, amount("99.99"), "")}
		_, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "test", lines, Reference{})
		assert.True(t, shared.HasCode(err, CodeUnbalancedEntry))
	})

	t.Run("sub-cent difference rounds away", func(t *testing.T) {
		lines := []LineInput{DebitLine(a, amount("100.001"), ""), CreditLine(b, amount("100"), "")}
		_, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "test", lines, Reference{})
		assert.NoError(t, err)
	})

	t.Run("single line", func(t *testing.T) {
		_, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "test", []LineInput{DebitLine(a, amount("1"), "")}, Reference{})
		assert.True(t, shared.HasCode(err, CodeInvalidLine))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewJournalEntry(day(2024, 5, 10), EntryType("misc"), "test", balancedLines(a, b, "1"), Reference{})
		assert.Error(t, err)
	})
}

func TestFormatEntryNumber(t *testing.T) {
	assert.Equal(t, "JV-2024-000001", FormatEntryNumber(EntryTypeManual, 2024, 1))
	assert.Equal(t, "AJ-2024-000042", FormatEntryNumber(EntryTypeAutomatic, 2024, 42))
	assert.Equal(t, "ADJ-2025-000007", FormatEntryNumber(EntryTypeAdjustment, 2025, 7))
	assert.Equal(t, "CLS-2024-000001", FormatEntryNumber(EntryTypeClosing, 2024, 1))
	assert.Equal(t, "OPN-2024-000001", FormatEntryNumber(EntryTypeOpening, 2024, 1))
}

func TestReference(t *testing.T) {
	ref := Reference{Type: "sale_payment", ID: "SALE-1001-PAY-1"}
	assert.Equal(t, "sale_payment:SALE-1001-PAY-1", ref.String())
	assert.Equal(t, ref, ParseReference(ref.String()))
	assert.Equal(t, Reference{ID: "plain"}, ParseReference("plain"))
	assert.True(t, Reference{}.IsZero())
}

func TestJournalEntry_Post(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	period := openPeriod(t)

	je, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "test", balancedLines(a, b, "100"), Reference{})
	require.NoError(t, err)

	require.NoError(t, je.Post("alice", period))
	assert.Equal(t, EntryStatusPosted, je.Status)
	assert.Equal(t, "alice", je.PostedBy)
	assert.NotNil(t, je.PostedAt)
	assert.Equal(t, period.ID, je.PeriodID)

	events := je.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeJournalEntryPosted, events[0].EventType())
	assert.ElementsMatch(t, []uuid.UUID{a, b}, events[0].(AccountsTouched).TouchedAccounts())

	err = je.Post("alice", period)
	assert.True(t, shared.HasCode(err, CodeAlreadyPosted))
}

func TestJournalEntry_PostIntoClosedPeriod(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	period := openPeriod(t)
	require.NoError(t, period.Close())

	je, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "test", balancedLines(a, b, "100"), Reference{})
	require.NoError(t, err)
	err = je.Post("alice", period)
	assert.True(t, shared.HasCode(err, CodeClosedPeriod))
	assert.Equal(t, EntryStatusDraft, je.Status)
}

func TestJournalEntry_Reverse(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	period := openPeriod(t)

	je, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "rent", balancedLines(a, b, "100"), Reference{})
	require.NoError(t, err)

	_, err = je.Reverse("bob", "typo", period)
	assert.Error(t, err, "drafts cannot be reversed")

	require.NoError(t, je.Post("alice", period))
	je.ClearDomainEvents()

	originalLines := append([]JournalLine(nil), je.Lines...)
	reversal, err := je.Reverse("bob", "typo", period)
	require.NoError(t, err)

	assert.Equal(t, EntryStatusCancelled, je.Status)
	assert.Equal(t, "bob", je.CancelledBy)
	assert.Equal(t, "typo", je.CancelReason)
	assert.Equal(t, reversal.ID, *je.ReversedBy)
	assert.Equal(t, originalLines, je.Lines)

	assert.Equal(t, EntryStatusPosted, reversal.Status)
	assert.Equal(t, EntryTypeAdjustment, reversal.Type)
	assert.Equal(t, je.ID, *reversal.ReversalOf)
	assert.Equal(t, Reference{Type: ReferenceTypeJournalEntry, ID: je.ID.String()}, reversal.Reference)
	require.Len(t, reversal.Lines, 2)
	assert.Equal(t, a, reversal.Lines[0].AccountID)
	assert.True(t, reversal.Lines[0].Credit.Equal(amount("100")))
	assert.True(t, reversal.Lines[0].Debit.IsZero())
	assert.Equal(t, b, reversal.Lines[1].AccountID)
	assert.True(t, reversal.Lines[1].Debit.Equal(amount("100")))

	events := je.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeJournalEntryCancelled, events[0].EventType())
}

func TestJournalEntry_Clone(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	je, err := NewJournalEntry(day(2024, 5, 10), EntryTypeAutomatic, "sync", balancedLines(a, b, "50"), Reference{})
	require.NoError(t, err)
	require.NoError(t, je.Post("alice", openPeriod(t)))

	c := je.Clone()
	c.Lines[0].Debit = amount("1")

	assert.Equal(t, je.ID, c.ID)
	assert.Empty(t, c.GetDomainEvents())
	assert.Len(t, je.GetDomainEvents(), 1)
	assert.True(t, je.Lines[0].Debit.Equal(amount("50")))
}

func TestJournalEntry_Rewrite(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	period := openPeriod(t)
	je, err := NewJournalEntry(day(2024, 5, 10), EntryTypeAutomatic, "sync", balancedLines(a, b, "50"), Reference{Type: "sale_payment", ID: "SALE-1"})
	require.NoError(t, err)
	require.NoError(t, je.Post("alice", period))
	je.ClearDomainEvents()

	touched, err := je.Rewrite(day(2024, 5, 12), balancedLines(a, c, "75"), period)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{a, b, c}, touched)
	assert.Equal(t, EntryStatusPosted, je.Status)
	assert.Equal(t, day(2024, 5, 12), je.Date)
	assert.True(t, je.TotalDebit().Equal(amount("75")))
	for _, l := range je.Lines {
		assert.Equal(t, je.ID, l.EntryID)
	}
	events := je.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeJournalEntryRewritten, events[0].EventType())

	t.Run("unbalanced lines are rejected", func(t *testing.T) {
		_, err := je.Rewrite(day(2024, 5, 12), []LineInput{DebitLine(a, amount("1"), ""), CreditLine(c, amount("2"), "")}, period)
		assert.True(t, shared.HasCode(err, CodeUnbalancedEntry))
		assert.True(t, je.TotalDebit().Equal(amount("75")))
	})

	t.Run("manual entries are rejected", func(t *testing.T) {
		manual, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "m", balancedLines(a, b, "5"), Reference{})
		require.NoError(t, err)
		_, err = manual.Rewrite(day(2024, 5, 10), balancedLines(a, b, "6"), period)
		assert.True(t, shared.HasCode(err, "INVALID_STATE"))
	})
}

func TestJournalEntry_Rebind(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	je, err := NewJournalEntry(day(2024, 5, 10), EntryTypeAutomatic, "sale_payment SALE-1", balancedLines(a, b, "50"), Reference{Type: "sale_payment", ID: "SALE-1"})
	require.NoError(t, err)

	require.NoError(t, je.Rebind(Reference{Type: "sale_payment", ID: "SALE-2"}, "sale_payment SALE-2"))
	assert.Equal(t, "SALE-2", je.Reference.ID)
	assert.Equal(t, "sale_payment SALE-2", je.Description)

	assert.True(t, shared.HasCode(je.Rebind(Reference{}, ""), "INVALID_REFERENCE"))

	manual, err := NewJournalEntry(day(2024, 5, 10), EntryTypeManual, "m", balancedLines(a, b, "5"), Reference{})
	require.NoError(t, err)
	assert.True(t, shared.HasCode(manual.Rebind(Reference{ID: "x"}, ""), "INVALID_STATE"))
}

func TestTrialBalance_IsBalanced(t *testing.T) {
	tb := &TrialBalance{TotalDebit: amount("10.004"), TotalCredit: amount("10")}
	assert.True(t, tb.IsBalanced())
	tb.TotalCredit = amount("9.99")
	assert.False(t, tb.IsBalanced())
}

func TestAsOfKey(t *testing.T) {
	assert.Equal(t, OpenEndedAsOf, AsOfKey(nil))
	d := day(2024, 5, 10).Add(13 * time.Hour)
	assert.Equal(t, day(2024, 5, 10), AsOfKey(&d))
}
