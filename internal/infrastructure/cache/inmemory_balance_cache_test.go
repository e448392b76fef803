package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBalance(accountID uuid.UUID, asOf time.Time, amount int64) *ledger.AccountBalance {
	return &ledger.AccountBalance{
		AccountID:   accountID,
		AsOf:        asOf,
		Balance:     decimal.NewFromInt(amount),
		TotalDebit:  decimal.NewFromInt(amount),
		TotalCredit: decimal.Zero,
		ComputedAt:  time.Now(),
	}
}

func TestInMemoryBalanceCache_GetSet(t *testing.T) {
	c := NewInMemoryBalanceCache()
	ctx := context.Background()
	accountID := uuid.New()
	day := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	_, ok, err := c.Get(ctx, accountID, day)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, newTestBalance(accountID, day, 150)))
	require.NoError(t, c.Set(ctx, newTestBalance(accountID, ledger.OpenEndedAsOf, 400)))

	got, ok, err := c.Get(ctx, accountID, day.Add(15*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(150)))

	got, ok, err = c.Get(ctx, accountID, ledger.OpenEndedAsOf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(400)))

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestInMemoryBalanceCache_ReturnsCopies(t *testing.T) {
	c := NewInMemoryBalanceCache()
	ctx := context.Background()
	b := newTestBalance(uuid.New(), ledger.OpenEndedAsOf, 10)
	require.NoError(t, c.Set(ctx, b))

	b.Balance = decimal.NewFromInt(99)
	got, ok, _ := c.Get(ctx, b.AccountID, ledger.OpenEndedAsOf)
	require.True(t, ok)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(10)))
}

func TestInMemoryBalanceCache_Delete(t *testing.T) {
	c := NewInMemoryBalanceCache()
	ctx := context.Background()
	accountID := uuid.New()
	other := uuid.New()
	day := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Set(ctx, newTestBalance(accountID, day, 1)))
	require.NoError(t, c.Set(ctx, newTestBalance(accountID, ledger.OpenEndedAsOf, 2)))
	require.NoError(t, c.Set(ctx, newTestBalance(other, day, 3)))

	require.NoError(t, c.Delete(ctx, accountID))

	_, ok, _ := c.Get(ctx, accountID, day)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, accountID, ledger.OpenEndedAsOf)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, other, day)
	assert.True(t, ok)
}

func TestInMemoryBalanceCache_Expiry(t *testing.T) {
	c := NewInMemoryBalanceCache(WithTTL(time.Minute))
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	b := newTestBalance(uuid.New(), ledger.OpenEndedAsOf, 5)
	require.NoError(t, c.Set(ctx, b))

	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, b.AccountID, ledger.OpenEndedAsOf)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, b.AccountID, ledger.OpenEndedAsOf)
	assert.False(t, ok)
}

func TestInMemoryBalanceCache_SetNil(t *testing.T) {
	c := NewInMemoryBalanceCache()
	assert.NoError(t, c.Set(context.Background(), nil))
}
