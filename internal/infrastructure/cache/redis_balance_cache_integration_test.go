//go:build integration

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
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisBalanceCache(t *testing.T) {
	c, err := NewRedisBalanceCache(RedisConfig{Addr: startRedis(t), TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	accountID := uuid.New()
	day := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	_, ok, err := c.Get(ctx, accountID, day)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, newTestBalance(accountID, day, 150)))
	require.NoError(t, c.Set(ctx, newTestBalance(accountID, ledger.OpenEndedAsOf, 400)))

	got, ok, err := c.Get(ctx, accountID, day)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, accountID, got.AccountID)

	ttl, err := c.client.TTL(ctx, BalanceKey(accountID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Delete(ctx, accountID))
	_, ok, err = c.Get(ctx, accountID, ledger.OpenEndedAsOf)
	require.NoError(t, err)
	assert.False(t, ok)
}
