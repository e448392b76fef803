package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate())
	return db.DB
}

func newTestAccount(t *testing.T, repo *GormAccountRepository, parent *ledger.Account, code string) *ledger.Account {
	t.Helper()
	var (
		acc *ledger.Account
		err error
	)
	if parent == nil {
		accountType, typeErr := ledger.NewAccountType("", "", ledger.CategoryAsset, "")
		require.NoError(t, typeErr)
		acc, err = ledger.NewRootAccount(code, "Account "+code, accountType, ledger.AccountFlags{})
	} else {
		acc, err = ledger.NewChildAccount(parent, code, "Account "+code, nil, ledger.AccountFlags{})
		parent.BecomeParent()
		require.NoError(t, repo.Save(context.Background(), parent))
	}
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), acc))
	return acc
}

func newTestPeriod(t *testing.T, db *gorm.DB) *ledger.AccountingPeriod {
	t.Helper()
	p, err := ledger.NewAccountingPeriod("FY2024",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, NewGormPeriodRepository(db).Save(context.Background(), p))
	return p
}

func postedEntry(t *testing.T, period *ledger.AccountingPeriod, number string, date time.Time, debit, credit uuid.UUID, amount string) *ledger.JournalEntry {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	je, err := ledger.NewJournalEntry(date, ledger.EntryTypeManual, "test",
		[]ledger.LineInput{ledger.DebitLine(debit, amt, ""), ledger.CreditLine(credit, amt, "")},
		ledger.Reference{Type: "test", ID: number})
	require.NoError(t, err)
	je.AssignNumber(number)
	require.NoError(t, je.Post("tester", period))
	return je
}

func TestGormAccountRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormAccountRepository(db)
	ctx := context.Background()

	root := newTestAccount(t, repo, nil, "1000")
	child := newTestAccount(t, repo, root, "1100")
	grandchild := newTestAccount(t, repo, child, "1110")
	other := newTestAccount(t, repo, nil, "2000")

	t.Run("finds by code", func(t *testing.T) {
		found, err := repo.FindByCode(ctx, "1100")
		require.NoError(t, err)
		assert.Equal(t, child.ID, found.ID)
		assert.Equal(t, 2, found.Level)
		require.NotNil(t, found.ParentID)
		assert.Equal(t, root.ID, *found.ParentID)
	})

	t.Run("missing account returns ErrNotFound", func(t *testing.T) {
		_, err := repo.FindByCode(ctx, "9999")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists roots and children in code order", func(t *testing.T) {
		roots, err := repo.FindRoots(ctx)
		require.NoError(t, err)
		require.Len(t, roots, 2)
		assert.Equal(t, "1000", roots[0].Code)
		assert.Equal(t, "2000", roots[1].Code)

		children, err := repo.FindChildren(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, child.ID, children[0].ID)

		count, err := repo.CountChildren(ctx, child.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("walks descendants recursively", func(t *testing.T) {
		ids, err := repo.FindDescendantIDs(ctx, root.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{child.ID, grandchild.ID}, ids)

		ids, err = repo.FindDescendantIDs(ctx, other.ID)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("finds a set by id", func(t *testing.T) {
		found, err := repo.FindByIDs(ctx, []uuid.UUID{root.ID, other.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, found, 2)
		assert.Equal(t, "2000", found[other.ID].Code)
	})

	t.Run("duplicate code is an integrity violation", func(t *testing.T) {
		accountType, err := ledger.NewAccountType("", "", ledger.CategoryAsset, "")
		require.NoError(t, err)
		dup, err := ledger.NewRootAccount("2000", "Duplicate", accountType, ledger.AccountFlags{})
		require.NoError(t, err)

		err = repo.Save(ctx, dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
		domainErr, ok := shared.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, shared.KindDatabase, domainErr.Kind)
		assert.Equal(t, CodeIntegrityViolation, domainErr.Code)
	})

	t.Run("deletes an account", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, other.ID))
		assert.ErrorIs(t, repo.Delete(ctx, other.ID), shared.ErrNotFound)
	})
}

func TestGormPeriodRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPeriodRepository(db)
	ctx := context.Background()
	period := newTestPeriod(t, db)

	containing, err := repo.FindContaining(ctx, time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, containing, 1)
	assert.Equal(t, period.ID, containing[0].ID)

	containing, err = repo.FindContaining(ctx, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, containing, 1, "end date is inclusive")

	containing, err = repo.FindContaining(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, containing)

	overlapping, err := repo.FindOverlapping(ctx,
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, overlapping, 1)

	overlapping, err = repo.FindOverlapping(ctx,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, overlapping)
}

func TestGormJournalEntryRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	accounts := NewGormAccountRepository(db)
	repo := NewGormJournalEntryRepository(db)
	ctx := context.Background()
	period := newTestPeriod(t, db)

	cash := newTestAccount(t, accounts, nil, "1001")
	revenue := newTestAccount(t, accounts, nil, "4001")
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	first := postedEntry(t, period, "JE-2024-000001", jan, cash.ID, revenue.ID, "100.10")
	require.NoError(t, repo.Save(ctx, first))
	second := postedEntry(t, period, "JE-2024-000002", mar, cash.ID, revenue.ID, "0.20")
	require.NoError(t, repo.Save(ctx, second))

	draft, err := ledger.NewJournalEntry(mar, ledger.EntryTypeAutomatic, "draft",
		[]ledger.LineInput{ledger.DebitLine(cash.ID, decimal.NewFromInt(999), ""), ledger.CreditLine(revenue.ID, decimal.NewFromInt(999), "")},
		ledger.Reference{})
	require.NoError(t, err)
	draft.AssignNumber("JE-2024-000003")
	require.NoError(t, draft.AssignPeriod(period))
	require.NoError(t, repo.Save(ctx, draft))

	t.Run("loads lines in order", func(t *testing.T) {
		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, found.Lines, 2)
		assert.Equal(t, 1, found.Lines[0].LineNo)
		assert.True(t, found.Lines[0].Debit.Equal(decimal.RequireFromString("100.10")))
		assert.Equal(t, ledger.EntryStatusPosted, found.Status)
		assert.Equal(t, jan, found.Date)
	})

	t.Run("finds by number and reference", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, "JE-2024-000002")
		require.NoError(t, err)
		assert.Equal(t, second.ID, found.ID)

		byRef, err := repo.FindByReference(ctx, ledger.Reference{Type: "test", ID: "JE-2024-000001"})
		require.NoError(t, err)
		require.Len(t, byRef, 1)
		assert.Equal(t, first.ID, byRef[0].ID)
	})

	t.Run("sums posted lines up to a date", func(t *testing.T) {
		totals, err := repo.SumPostedLines(ctx, []uuid.UUID{cash.ID}, jan)
		require.NoError(t, err)
		require.Len(t, totals, 1)
		assert.True(t, totals[0].Debit.Equal(decimal.RequireFromString("100.10")))

		totals, err = repo.SumPostedLines(ctx, nil, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, totals, 2)
		byAccount := map[uuid.UUID]ledger.LineTotals{}
		for _, tl := range totals {
			byAccount[tl.AccountID] = tl
		}
		assert.True(t, byAccount[cash.ID].Debit.Equal(decimal.RequireFromString("100.30")), "draft lines are excluded")
		assert.True(t, byAccount[revenue.ID].Credit.Equal(decimal.RequireFromString("100.30")))
	})

	t.Run("counts posted and all lines", func(t *testing.T) {
		posted, err := repo.CountPostedLines(ctx, []uuid.UUID{cash.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), posted)

		all, err := repo.CountLines(ctx, cash.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), all)
	})

	t.Run("filters entries", func(t *testing.T) {
		status := ledger.EntryStatusPosted
		from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		entries, err := repo.FindAll(ctx, ledger.JournalEntryFilter{Status: &status, FromDate: &from})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, second.ID, entries[0].ID)

		entries, err = repo.FindAll(ctx, ledger.JournalEntryFilter{AccountID: &cash.ID})
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("save replaces lines", func(t *testing.T) {
		_, err := draft.Rewrite(draft.Date, []ledger.LineInput{
			ledger.DebitLine(cash.ID, decimal.NewFromInt(5), ""),
			ledger.DebitLine(cash.ID, decimal.NewFromInt(5), ""),
			ledger.CreditLine(revenue.ID, decimal.NewFromInt(10), ""),
		}, period)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, draft))

		found, err := repo.FindByID(ctx, draft.ID)
		require.NoError(t, err)
		assert.Len(t, found.Lines, 3)
	})

	t.Run("delete removes entry and lines", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, draft.ID))
		_, err := repo.FindByID(ctx, draft.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		all, err := repo.CountLines(ctx, cash.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), all)
	})
}

func TestGormBalanceRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormBalanceRepository(db)
	ctx := context.Background()
	accountID := uuid.New()
	asOf := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	missing, err := repo.Find(ctx, accountID, asOf)
	require.NoError(t, err)
	assert.Nil(t, missing)

	balance := &ledger.AccountBalance{
		AccountID:   accountID,
		AsOf:        asOf,
		Balance:     decimal.NewFromInt(150),
		TotalDebit:  decimal.NewFromInt(200),
		TotalCredit: decimal.NewFromInt(50),
		ComputedAt:  time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, balance))

	balance.Balance = decimal.NewFromInt(175)
	require.NoError(t, repo.Upsert(ctx, balance))

	found, err := repo.Find(ctx, accountID, asOf)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.IsFresh())
	assert.True(t, found.Balance.Equal(decimal.NewFromInt(175)))

	open := *balance
	open.AsOf = ledger.OpenEndedAsOf
	require.NoError(t, repo.Upsert(ctx, &open))

	rows, err := repo.MarkNeedsRefresh(ctx, []uuid.UUID{accountID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	cached, err := repo.FindByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	for _, c := range cached {
		assert.True(t, c.NeedsRefresh)
	}

	stale, err := repo.FindStaleAccountIDs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{accountID}, stale)

	rows, err = repo.MarkNeedsRefresh(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestGormSequenceRepository_Next(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormSequenceRepository(db)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Next(ctx, "journal:manual:2024")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := repo.Next(ctx, "journal:manual:2025")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "keys are independent")
}
