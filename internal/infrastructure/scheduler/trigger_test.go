package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func configWith(workers, batch int) config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:              true,
		Workers:              workers,
		JobTimeout:           2 * time.Minute,
		RetryAttempts:        1,
		RetryDelay:           time.Second,
		BatchSize:            batch,
		SyncRetryInterval:    5 * time.Minute,
		BalanceRefreshPeriod: -1,
		OverdueCheckInterval: time.Hour,
	}
}

func TestTriggerConfigFrom(t *testing.T) {
	cfg := TriggerConfigFrom(configWith(1, 10))
	assert.True(t, cfg.RunOnStart)
	assert.Equal(t, 5*time.Minute, cfg.Intervals[JobRetryFailedSyncs])
	assert.Equal(t, time.Duration(-1), cfg.Intervals[JobRefreshStaleBalances])
	assert.Equal(t, time.Hour, cfg.Intervals[JobMarkOverdueLoans])
}

func TestIntervalTrigger_FiresEnabledKinds(t *testing.T) {
	s := NewScheduler(testConfig(), &countingExecutor{}, zap.NewNop())
	done := collect(t, s)

	trigger := NewIntervalTrigger(TriggerConfig{
		Intervals: map[JobKind]time.Duration{
			JobRefreshStaleBalances: 20 * time.Millisecond,
			JobMarkOverdueLoans:     0,
		},
		RunOnStart: true,
	}, s, zap.NewNop())
	require.NoError(t, trigger.Start(context.Background()))

	for i := 0; i < 3; i++ {
		job := next(t, done)
		assert.Equal(t, JobRefreshStaleBalances, job.Kind, "only the enabled kind fires")
	}
	require.NoError(t, trigger.Stop(context.Background()))

	last, ok := trigger.LastRun(JobRefreshStaleBalances)
	assert.True(t, ok)
	assert.False(t, last.IsZero())
	_, ok = trigger.LastRun(JobMarkOverdueLoans)
	assert.False(t, ok)
}

func TestIntervalTrigger_TriggerNow(t *testing.T) {
	s := NewScheduler(testConfig(), &countingExecutor{}, zap.NewNop())
	fixed := time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC)
	trigger := NewIntervalTrigger(TriggerConfig{}, s, zap.NewNop())
	trigger.now = func() time.Time { return fixed }

	assert.ErrorIs(t, trigger.TriggerNow(JobMarkOverdueLoans), ErrSchedulerNotRunning)

	done := collect(t, s)
	require.NoError(t, trigger.TriggerNow())

	seen := map[JobKind]bool{}
	for range AllJobKinds() {
		job := next(t, done)
		assert.Equal(t, fixed, job.AsOf)
		seen[job.Kind] = true
	}
	assert.Len(t, seen, len(AllJobKinds()))

	last, ok := trigger.LastRun(JobRetryFailedSyncs)
	require.True(t, ok)
	assert.Equal(t, fixed, last)
}
