//go:build integration

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
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

func TestRedisLocker(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: startRedis(t)})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	a := NewRedisLocker(client)
	b := NewRedisLocker(client)

	release, err := a.Obtain(ctx, "ledger:maintenance:test", time.Minute)
	require.NoError(t, err)

	_, err = b.Obtain(ctx, "ledger:maintenance:test", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "releasing twice is harmless")

	again, err := b.Obtain(ctx, "ledger:maintenance:test", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))

	short, err := a.Obtain(ctx, "ledger:maintenance:expiring", 100*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(250 * time.Millisecond)
	expired, err := b.Obtain(ctx, "ledger:maintenance:expiring", time.Minute)
	require.NoError(t, err, "an expired lock can be taken over")
	require.NoError(t, short(ctx))
	require.NoError(t, expired(ctx))
}
