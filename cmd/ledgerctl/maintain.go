package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMaintainCommand(opts *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run background maintenance: sync retries, stale balances, overdue loans",
		Long: `Runs every maintenance task on its configured interval until interrupted.
With redis enabled, instances coordinate through a distributed lock so each
task runs on one instance at a time. --once runs every task a single time
and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				executor, closeLocker := a.maintenanceExecutor()
				defer closeLocker()

				if once {
					return runMaintenanceOnce(ctx, cmd, a, executor)
				}
				return runMaintenanceLoop(ctx, a, executor)
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run every task once and exit")
	return cmd
}

// maintenanceExecutor registers the ledger tasks, guarded by a Redis lock
// when Redis is enabled. The returned func closes the lock client.
func (a *app) maintenanceExecutor() (*scheduler.MaintenanceExecutor, func()) {
	log := a.log.Named("maintenance")
	var execOpts []scheduler.ExecutorOption
	closeLocker := func() {}

	if a.cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr(),
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		execOpts = append(execOpts, scheduler.WithLocker(scheduler.NewRedisLocker(client), a.cfg.Scheduler.LockTTL))
		closeLocker = func() {
			if err := client.Close(); err != nil {
				log.Warn("Failed to close lock client", zap.Error(err))
			}
		}
	}

	executor := scheduler.NewMaintenanceExecutor(log, execOpts...)
	executor.Register(scheduler.JobRetryFailedSyncs, scheduler.RetryFailedSyncs(func(ctx context.Context, limit int) (int, error) {
		summary, err := a.sync.RetryFailed(ctx, limit)
		return summary.Completed, err
	}))
	executor.Register(scheduler.JobRefreshStaleBalances, scheduler.RefreshStaleBalances(a.ledger.Balances))
	executor.Register(scheduler.JobMarkOverdueLoans, scheduler.MarkOverdueLoans(a.loans))
	return executor, closeLocker
}

func runMaintenanceOnce(ctx context.Context, cmd *cobra.Command, a *app, executor *scheduler.MaintenanceExecutor) error {
	now := timeNow()
	for _, kind := range executor.Registered() {
		job := scheduler.NewJob(kind, now, a.cfg.Scheduler.BatchSize, 0)
		job.Start()
		affected, err := executor.Execute(ctx, job)
		if err != nil {
			job.Fail(err.Error())
			a.recordJob(*job)
			return fmt.Errorf("maintenance task %s failed: %w", kind, err)
		}
		job.Complete(affected)
		a.recordJob(*job)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", kind, affected)
	}
	return nil
}

func runMaintenanceLoop(ctx context.Context, a *app, executor *scheduler.MaintenanceExecutor) error {
	log := a.log.Named("maintenance")
	cfg := a.cfg.Scheduler
	if !cfg.Enabled {
		log.Warn("Scheduler disabled by configuration; nothing to run")
		return nil
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         a.cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   a.cfg.Telemetry.ProfilingServer,
		ApplicationName: a.cfg.Telemetry.ServiceName,
		ProfileMemory:   true,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Warn("Profiler stop failed", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		a.tracer.EnableSpanProfiles()
	}

	if a.cfg.Sync.SeedDefaultRules {
		if _, err := a.rules.SeedDefaultRules(ctx); err != nil {
			return fmt.Errorf("failed to seed sync rules: %w", err)
		}
	}

	sched := scheduler.NewScheduler(scheduler.ConfigFrom(cfg), executor, log)
	sched.OnJobDone(func(job scheduler.Job) {
		a.recordJob(job)
		if job.Status == scheduler.JobStatusFailed && !job.ShouldRetry() {
			log.Error("Maintenance job gave up",
				zap.String("job_id", job.ID.String()),
				zap.String("kind", string(job.Kind)),
				zap.String("error", job.Error),
			)
		}
	})
	trigger := scheduler.NewIntervalTrigger(scheduler.TriggerConfigFrom(cfg), sched, log)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	if err := trigger.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info("Shutting down maintenance", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := trigger.Stop(stopCtx); err != nil {
		log.Warn("Trigger stop failed", zap.Error(err))
	}
	return sched.Stop(stopCtx)
}

// recordJob reports a finished attempt to the ledger metrics
func (a *app) recordJob(job scheduler.Job) {
	var d time.Duration
	if job.StartedAt != nil && job.CompletedAt != nil {
		d = job.CompletedAt.Sub(*job.StartedAt)
	}
	a.metrics.RecordJob(context.Background(), string(job.Kind), string(job.Status), d, job.Affected)
}
