package cache

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1, TTL: time.Minute}
}

func TestBalanceCacheFactory_CreateCache(t *testing.T) {
	t.Run("redis disabled uses memory", func(t *testing.T) {
		f := NewBalanceCacheFactory(config.RedisConfig{Enabled: false})
		c, err := f.CreateCache()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryBalanceCache{}, c)
	})

	t.Run("unreachable redis falls back to memory", func(t *testing.T) {
		f := NewBalanceCacheFactory(unreachableRedis())
		c, err := f.CreateCache()
		require.NoError(t, err)
		mem, ok := c.(*InMemoryBalanceCache)
		require.True(t, ok)
		assert.Equal(t, time.Minute, mem.ttl)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		f := NewBalanceCacheFactory(unreachableRedis(), WithInMemoryFallback(false))
		_, err := f.CreateCache()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis required")
	})
}
