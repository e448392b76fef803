package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// TriggerConfig holds how often each maintenance task is submitted. Kinds
// missing from Intervals, or with a non-positive interval, never fire.
type TriggerConfig struct {
	Intervals  map[JobKind]time.Duration
	RunOnStart bool
}

// TriggerConfigFrom maps the loaded settings onto a TriggerConfig
func TriggerConfigFrom(cfg config.SchedulerConfig) TriggerConfig {
	return TriggerConfig{
		Intervals: map[JobKind]time.Duration{
			JobRetryFailedSyncs:     cfg.SyncRetryInterval,
			JobRefreshStaleBalances: cfg.BalanceRefreshPeriod,
			JobMarkOverdueLoans:     cfg.OverdueCheckInterval,
		},
		RunOnStart: true,
	}
}

// IntervalTrigger submits maintenance jobs to a Scheduler on fixed intervals
type IntervalTrigger struct {
	config    TriggerConfig
	scheduler *Scheduler
	now       func() time.Time
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   map[JobKind]time.Time
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(config TriggerConfig, scheduler *Scheduler, logger *zap.Logger) *IntervalTrigger {
	return &IntervalTrigger{
		config:    config,
		scheduler: scheduler,
		now:       time.Now,
		logger:    logger,
		lastRun:   make(map[JobKind]time.Time),
	}
}

// Start starts one ticker per enabled kind
func (c *IntervalTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	enabled := 0
	for _, kind := range AllJobKinds() {
		interval := c.config.Intervals[kind]
		if interval <= 0 {
			continue
		}
		enabled++
		c.wg.Add(1)
		go c.runLoop(ctx, kind, interval)
	}

	c.logger.Info("Maintenance trigger started",
		zap.Int("tasks", enabled),
		zap.Bool("run_on_start", c.config.RunOnStart),
	)
	return nil
}

// Stop stops the trigger
func (c *IntervalTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Maintenance trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *IntervalTrigger) runLoop(ctx context.Context, kind JobKind, interval time.Duration) {
	defer c.wg.Done()

	if c.config.RunOnStart {
		c.fire(kind)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fire(kind)
		}
	}
}

func (c *IntervalTrigger) fire(kind JobKind) {
	now := c.now()
	if _, err := c.scheduler.Schedule(kind, now); err != nil {
		c.logger.Warn("Failed to schedule maintenance job",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}
	c.mu.Lock()
	c.lastRun[kind] = now
	c.mu.Unlock()
}

// LastRun returns when kind was last submitted
func (c *IntervalTrigger) LastRun(kind JobKind) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastRun[kind]
	return t, ok
}

// TriggerNow submits kinds immediately, every kind when none is given
func (c *IntervalTrigger) TriggerNow(kinds ...JobKind) error {
	if len(kinds) == 0 {
		kinds = AllJobKinds()
	}
	now := c.now()
	for _, kind := range kinds {
		if _, err := c.scheduler.Schedule(kind, now); err != nil {
			return err
		}
		c.mu.Lock()
		c.lastRun[kind] = now
		c.mu.Unlock()
	}
	return nil
}
