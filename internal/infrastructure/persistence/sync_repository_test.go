package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSyncRuleRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormSyncRuleRepository(db)
	ctx := context.Background()

	active, err := paymentsync.NewSyncRule("sale-create", payment.KindSalePayment, paymentsync.TriggerOnCreate,
		paymentsync.TargetFlags{CustomerLedger: true, Journal: true}, 10)
	require.NoError(t, err)
	active.WithConditions(map[string]string{"method": "cash"}).WithMapping(map[string]string{"cash": "11011"})
	require.NoError(t, repo.Save(ctx, active))

	inactive, err := paymentsync.NewSyncRule("sale-create-off", payment.KindSalePayment, paymentsync.TriggerOnCreate,
		paymentsync.TargetFlags{Journal: true}, 5)
	require.NoError(t, err)
	inactive.SetActive(false)
	require.NoError(t, repo.Save(ctx, inactive))

	rules, err := repo.FindActive(ctx, payment.KindSalePayment, paymentsync.TriggerOnCreate)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "sale-create", rules[0].Name)
	assert.True(t, rules[0].Targets.CustomerLedger)
	assert.False(t, rules[0].Targets.SupplierLedger)
	assert.Equal(t, "cash", rules[0].Conditions["method"])
	assert.Equal(t, "11011", rules[0].Mapping["cash"])

	none, err := repo.FindActive(ctx, payment.KindSalePayment, paymentsync.TriggerOnDelete)
	require.NoError(t, err)
	assert.Empty(t, none)

	byName, err := repo.FindByName(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, byName)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sale-create", all[0].Name, "higher priority first")
}

func TestGormSyncOperationRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormSyncOperationRepository(db)
	ctx := context.Background()

	current := newSalePayment(t, "SO-2001", 300)
	prior := *current
	prior.Amount = decimal.NewFromInt(299)

	op, err := paymentsync.NewSyncOperation(paymentsync.OperationUpdate, current, &prior, "alice", false, 3)
	require.NoError(t, err)
	require.NoError(t, op.Start([]paymentsync.Target{paymentsync.TargetCustomerLedger, paymentsync.TargetJournal}))
	require.NoError(t, repo.Save(ctx, op))

	t.Run("round-trips snapshots and targets", func(t *testing.T) {
		found, err := repo.FindByID(ctx, op.ID)
		require.NoError(t, err)
		assert.Equal(t, paymentsync.OperationUpdate, found.Type)
		assert.Equal(t, "alice", found.User)
		assert.Equal(t, []paymentsync.Target{paymentsync.TargetCustomerLedger, paymentsync.TargetJournal}, found.Targets)
		require.NotNil(t, found.Prior)
		assert.True(t, found.Payment().Amount.Equal(current.Amount))
		assert.Equal(t, current.DocumentNumber, found.Payment().DocumentNumber)
	})

	t.Run("filters and counts", func(t *testing.T) {
		failed, err := paymentsync.NewSyncOperation(paymentsync.OperationCreate, current, nil, "bob", false, 3)
		require.NoError(t, err)
		require.NoError(t, failed.Start(nil))
		failed.Fail(errors.New("boom"), "", true)
		require.NoError(t, repo.Save(ctx, failed))

		status := failed.Status
		ops, err := repo.FindAll(ctx, paymentsync.OperationFilter{Status: &status})
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, failed.ID, ops[0].ID)
		assert.Nil(t, ops[0].Prior)

		count, err := repo.Count(ctx, paymentsync.OperationFilter{PaymentID: &current.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		page, err := repo.FindAll(ctx, paymentsync.OperationFilter{
			Filter:    shared.Filter{Page: 1, PageSize: 1, OrderBy: "created_at", OrderDir: "asc"},
			PaymentID: &current.ID,
		})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, op.ID, page[0].ID)
	})

	t.Run("missing operation returns ErrNotFound", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSyncLogAndErrorRepositories(t *testing.T) {
	db := setupLedgerTestDB(t)
	logs := NewGormSyncLogRepository(db)
	syncErrors := NewGormSyncErrorRepository(db)
	ctx := context.Background()
	opID := uuid.New()

	require.NoError(t, logs.SaveBatch(ctx, nil))
	require.NoError(t, logs.SaveBatch(ctx, []paymentsync.SyncLog{
		paymentsync.NewSyncLog(opID, "create", "customer_payment", "row-1", map[string]string{"a": "b"}, nil, true, 3*time.Millisecond),
		paymentsync.NewSyncLog(opID, "rollback", "customer_payment", "row-1", nil, nil, true, time.Millisecond),
	}))

	found, err := logs.FindByOperation(ctx, opID)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "create", found[0].Action)
	assert.JSONEq(t, `{"a":"b"}`, string(found[0].Input))
	assert.Equal(t, 3*time.Millisecond, found[0].Duration)

	se := paymentsync.NewSyncError(opID, shared.NewValidationError("UNBALANCED_ENTRY", "debits differ"), "")
	require.NoError(t, syncErrors.Save(ctx, &se))

	unresolved, err := syncErrors.FindUnresolved(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, paymentsync.ErrorKindValidation, unresolved[0].Kind)
	assert.Equal(t, "UNBALANCED_ENTRY", unresolved[0].Code)

	require.NoError(t, se.MarkResolved("ops", "fixed mapping"))
	require.NoError(t, syncErrors.Save(ctx, &se))

	unresolved, err = syncErrors.FindUnresolved(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	byOp, err := syncErrors.FindByOperation(ctx, opID)
	require.NoError(t, err)
	require.Len(t, byOp, 1)
	assert.True(t, byOp[0].Resolved)
	assert.Equal(t, "ops", byOp[0].ResolvedBy)
}
