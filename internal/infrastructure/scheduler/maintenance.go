package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Task performs one maintenance pass and returns the number of records it
// changed
type Task func(ctx context.Context, job *Job) (int, error)

// MaintenanceExecutor dispatches jobs to the task registered for their kind.
// When a Locker is set, every run holds a lock named after the kind so
// concurrent instances never run the same task at once.
type MaintenanceExecutor struct {
	mu      sync.RWMutex
	tasks   map[JobKind]Task
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
}

// ExecutorOption customizes a MaintenanceExecutor
type ExecutorOption func(*MaintenanceExecutor)

// WithLocker serializes task runs across instances through locker
func WithLocker(locker Locker, ttl time.Duration) ExecutorOption {
	return func(e *MaintenanceExecutor) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// NewMaintenanceExecutor creates an executor with no tasks registered
func NewMaintenanceExecutor(logger *zap.Logger, opts ...ExecutorOption) *MaintenanceExecutor {
	e := &MaintenanceExecutor{
		tasks:   make(map[JobKind]Task),
		lockTTL: 30 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register installs the task run for kind, replacing any previous one
func (e *MaintenanceExecutor) Register(kind JobKind, task Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks[kind] = task
}

// Registered lists the kinds that have a task, in AllJobKinds order
func (e *MaintenanceExecutor) Registered() []JobKind {
	e.mu.RLock()
	defer e.mu.RUnlock()
	kinds := make([]JobKind, 0, len(e.tasks))
	for _, k := range AllJobKinds() {
		if _, ok := e.tasks[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Execute runs the task registered for the job's kind
func (e *MaintenanceExecutor) Execute(ctx context.Context, job *Job) (int, error) {
	e.mu.RLock()
	task, ok := e.tasks[job.Kind]
	e.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTaskNotConfigured, job.Kind)
	}

	if e.locker != nil {
		release, err := e.locker.Obtain(ctx, lockKey(job.Kind), e.lockTTL)
		if errors.Is(err, ErrLockHeld) {
			// another instance is running this pass
			e.logger.Debug("Maintenance task skipped", zap.String("kind", string(job.Kind)))
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("Failed to release maintenance lock",
					zap.String("kind", string(job.Kind)),
					zap.Error(err),
				)
			}
		}()
	}

	var affected int
	var err error
	telemetry.WithJobLabel(ctx, string(job.Kind), func(ctx context.Context) {
		affected, err = task(ctx, job)
	})
	return affected, err
}

func lockKey(kind JobKind) string {
	return "ledger:maintenance:" + string(kind)
}
