package cache

import (
	"fmt"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// BalanceCacheFactory creates balance hot caches based on configuration
type BalanceCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// BalanceCacheFactoryOption is a functional option for configuring the factory
type BalanceCacheFactoryOption func(*BalanceCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) BalanceCacheFactoryOption {
	return func(f *BalanceCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) BalanceCacheFactoryOption {
	return func(f *BalanceCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBalanceCacheFactory creates a new factory
func NewBalanceCacheFactory(cfg config.RedisConfig, opts ...BalanceCacheFactoryOption) *BalanceCacheFactory {
	f := &BalanceCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisCache creates a Redis-backed cache
func (f *BalanceCacheFactory) CreateRedisCache() (*RedisBalanceCache, error) {
	c, err := NewRedisBalanceCache(RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
		TTL:      f.redisConfig.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis balance cache: %w", err)
	}
	return c, nil
}

// CreateInMemoryCache creates an in-memory cache. Instances do not share
// state, so a process only sees its own invalidations.
func (f *BalanceCacheFactory) CreateInMemoryCache() *InMemoryBalanceCache {
	return NewInMemoryBalanceCache(WithTTL(f.redisConfig.TTL), WithInMemoryLogger(f.logger))
}

// CreateCache returns the Redis cache when Redis is enabled and reachable,
// otherwise the in-memory cache when fallback is allowed
func (f *BalanceCacheFactory) CreateCache() (accounting.BalanceHotCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory balance cache")
		return f.CreateInMemoryCache(), nil
	}

	c, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis balance cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for balance cache but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory balance cache",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
