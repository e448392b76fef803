package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ReleaseFunc gives up a held lock
type ReleaseFunc func(ctx context.Context) error

// Locker hands out named, expiring locks
type Locker interface {
	// Obtain takes the lock or returns ErrLockHeld when another holder has it
	Obtain(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

// RedisLocker implements Locker on redis with redislock
type RedisLocker struct {
	client *redislock.Client
}

// NewRedisLocker creates a Locker backed by the redis client
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(client)}
}

// Obtain takes the lock without waiting
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

var _ Locker = (*RedisLocker)(nil)
