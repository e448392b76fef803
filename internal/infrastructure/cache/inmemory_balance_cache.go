package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBalanceTTL bounds how long a hot balance may be served
const DefaultBalanceTTL = 10 * time.Minute

// cacheEntry wraps a cached value with expiration time
type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *cacheEntry[T]) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// InMemoryBalanceCache implements accounting.BalanceHotCache in process
// memory. It suits single-instance deployments and tests.
type InMemoryBalanceCache struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]map[time.Time]*cacheEntry[ledger.AccountBalance]
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	hits   int64
	misses int64
}

// InMemoryBalanceCacheOption is a functional option for configuring the cache
type InMemoryBalanceCacheOption func(*InMemoryBalanceCache)

// WithTTL sets the entry lifetime; zero keeps the default
func WithTTL(ttl time.Duration) InMemoryBalanceCacheOption {
	return func(c *InMemoryBalanceCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemoryBalanceCacheOption {
	return func(c *InMemoryBalanceCache) {
		c.logger = logger
	}
}

// NewInMemoryBalanceCache creates a new in-memory balance cache
func NewInMemoryBalanceCache(opts ...InMemoryBalanceCacheOption) *InMemoryBalanceCache {
	c := &InMemoryBalanceCache{
		accounts: make(map[uuid.UUID]map[time.Time]*cacheEntry[ledger.AccountBalance]),
		ttl:      DefaultBalanceTTL,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the cached balance of the account as of asOf
func (c *InMemoryBalanceCache) Get(_ context.Context, accountID uuid.UUID, asOf time.Time) (*ledger.AccountBalance, bool, error) {
	asOf = ledger.DateOf(asOf)

	c.mu.RLock()
	entry, ok := c.accounts[accountID][asOf]
	c.mu.RUnlock()

	if !ok || entry.isExpired(c.now()) {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}
	atomic.AddInt64(&c.hits, 1)
	balance := entry.value
	return &balance, true, nil
}

// Set stores a copy of balance
func (c *InMemoryBalanceCache) Set(_ context.Context, balance *ledger.AccountBalance) error {
	if balance == nil {
		return nil
	}
	asOf := ledger.DateOf(balance.AsOf)

	c.mu.Lock()
	defer c.mu.Unlock()
	byDate, ok := c.accounts[balance.AccountID]
	if !ok {
		byDate = make(map[time.Time]*cacheEntry[ledger.AccountBalance])
		c.accounts[balance.AccountID] = byDate
	}
	byDate[asOf] = &cacheEntry[ledger.AccountBalance]{value: *balance, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Delete drops every cached as-of date of the account
func (c *InMemoryBalanceCache) Delete(_ context.Context, accountID uuid.UUID) error {
	c.mu.Lock()
	delete(c.accounts, accountID)
	c.mu.Unlock()
	c.logger.Debug("balance evicted from hot cache", zap.String("account_id", accountID.String()))
	return nil
}

// Stats returns hit and miss counters
func (c *InMemoryBalanceCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Ensure InMemoryBalanceCache implements BalanceHotCache
var _ accounting.BalanceHotCache = (*InMemoryBalanceCache)(nil)
