package persistence

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope(t *testing.T) {
	db := setupLedgerTestDB(t)
	scope := NewGormTransactionScope(db)
	payments := NewGormPaymentRepository(db)
	ctx := context.Background()

	t.Run("outer failure discards everything", func(t *testing.T) {
		p := newSalePayment(t, "SO-1001", 10)
		err := scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
			assert.True(t, scope.InTransaction(ctx))
			if err := repos.Payments().Save(ctx, p); err != nil {
				return err
			}
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		_, err = payments.FindByID(ctx, p.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("inner failure keeps the outer work", func(t *testing.T) {
		outer := newSalePayment(t, "SO-1002", 20)
		inner := newSalePayment(t, "SO-1003", 30)

		err := scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
			if err := repos.Payments().Save(ctx, outer); err != nil {
				return err
			}
			nested := scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
				if err := repos.Payments().Save(ctx, inner); err != nil {
					return err
				}
				return assert.AnError
			})
			assert.ErrorIs(t, nested, assert.AnError)
			return nil
		})
		require.NoError(t, err)

		_, err = payments.FindByID(ctx, outer.ID)
		assert.NoError(t, err)
		_, err = payments.FindByID(ctx, inner.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("nested success commits with the outer", func(t *testing.T) {
		p := newSalePayment(t, "SO-1004", 40)
		err := scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
			return scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
				return repos.Payments().Save(ctx, p)
			})
		})
		require.NoError(t, err)

		_, err = payments.FindByID(ctx, p.ID)
		assert.NoError(t, err)
	})

	t.Run("context without a transaction", func(t *testing.T) {
		assert.False(t, scope.InTransaction(ctx))
	})
}

func TestGormTransactionScope_AfterCommit(t *testing.T) {
	db := setupLedgerTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()

	t.Run("runs immediately outside a transaction", func(t *testing.T) {
		ran := false
		scope.AfterCommit(ctx, func(ctx context.Context) {
			ran = true
			assert.False(t, scope.InTransaction(ctx))
		})
		assert.True(t, ran)
	})

	t.Run("waits for the outermost commit", func(t *testing.T) {
		var order []string
		err := scope.Execute(ctx, func(ctx context.Context, _ accounting.Repositories) error {
			scope.AfterCommit(ctx, func(ctx context.Context) {
				assert.False(t, scope.InTransaction(ctx))
				order = append(order, "outer")
			})
			err := scope.Execute(ctx, func(ctx context.Context, _ accounting.Repositories) error {
				scope.AfterCommit(ctx, func(context.Context) { order = append(order, "released") })
				return nil
			})
			require.NoError(t, err)
			assert.Empty(t, order)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"outer", "released"}, order)
	})

	t.Run("dropped on rollback", func(t *testing.T) {
		var order []string
		err := scope.Execute(ctx, func(ctx context.Context, _ accounting.Repositories) error {
			nested := scope.Execute(ctx, func(ctx context.Context, _ accounting.Repositories) error {
				scope.AfterCommit(ctx, func(context.Context) { order = append(order, "rolled back save-point") })
				return assert.AnError
			})
			assert.ErrorIs(t, nested, assert.AnError)
			scope.AfterCommit(ctx, func(context.Context) { order = append(order, "kept") })
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"kept"}, order)

		err = scope.Execute(ctx, func(ctx context.Context, _ accounting.Repositories) error {
			scope.AfterCommit(ctx, func(context.Context) { order = append(order, "failed outer") })
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, []string{"kept"}, order)
	})
}
