package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BalanceKeyPrefix prefixes the per-account hash of cached balances
const BalanceKeyPrefix = "ledger:balance:"

// RedisBalanceCache implements accounting.BalanceHotCache using Redis.
// Each account is one hash keyed ledger:balance:{account id} with one field
// per as-of day, so invalidation is a single DEL.
type RedisBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisBalanceCache connects to Redis and verifies the connection
func NewRedisBalanceCache(cfg RedisConfig) (*RedisBalanceCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisBalanceCacheWithClient(client, cfg.TTL), nil
}

// NewRedisBalanceCacheWithClient creates a cache with an existing Redis client
func NewRedisBalanceCacheWithClient(client *redis.Client, ttl time.Duration) *RedisBalanceCache {
	if ttl <= 0 {
		ttl = DefaultBalanceTTL
	}
	return &RedisBalanceCache{client: client, ttl: ttl}
}

// BalanceKey returns the Redis key holding the balances of an account
func BalanceKey(accountID uuid.UUID) string {
	return BalanceKeyPrefix + accountID.String()
}

func asOfField(asOf time.Time) string {
	return ledger.DateOf(asOf).Format(time.DateOnly)
}

// Get reads the balance of the account as of asOf
func (c *RedisBalanceCache) Get(ctx context.Context, accountID uuid.UUID, asOf time.Time) (*ledger.AccountBalance, bool, error) {
	data, err := c.client.HGet(ctx, BalanceKey(accountID), asOfField(asOf)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached balance: %w", err)
	}
	var balance ledger.AccountBalance
	if err := json.Unmarshal(data, &balance); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached balance: %w", err)
	}
	return &balance, true, nil
}

// Set stores balance and renews the expiry of the account hash
func (c *RedisBalanceCache) Set(ctx context.Context, balance *ledger.AccountBalance) error {
	if balance == nil {
		return nil
	}
	data, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("failed to encode balance: %w", err)
	}
	key := BalanceKey(balance.AccountID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, asOfField(balance.AsOf), data)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache balance: %w", err)
	}
	return nil
}

// Delete drops every cached as-of date of the account
func (c *RedisBalanceCache) Delete(ctx context.Context, accountID uuid.UUID) error {
	if err := c.client.Del(ctx, BalanceKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to evict cached balance: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisBalanceCache) Close() error {
	return c.client.Close()
}

// Ensure RedisBalanceCache implements BalanceHotCache
var _ accounting.BalanceHotCache = (*RedisBalanceCache)(nil)
