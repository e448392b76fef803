package paymentsync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds orchestrator settings
type Config struct {
	MaxRetries int
}

// Metrics receives the outcome of every settled operation
type Metrics interface {
	RecordSync(ctx context.Context, operation, paymentKind, status, errorKind string, d time.Duration, inverses int)
}

type noopMetrics struct{}

func (noopMetrics) RecordSync(context.Context, string, string, string, string, time.Duration, int) {}

// SyncRequest asks for a payment change to be mirrored. For update and
// delete requests Payment carries the state to sync and Prior, when known,
// the state before the change.
type SyncRequest struct {
	Payment   *payment.Payment
	Operation paymentsync.OperationType
	User      string
	Force     bool
	Prior     *payment.Payment
}

// Orchestrator runs sync operations. Every target of an operation executes
// in a save-point of one outer transaction; a failing target unwinds the
// inverse actions recorded so far and the outer transaction rolls back.
type Orchestrator struct {
	scope    accounting.TransactionScope
	rules    *RuleService
	journals *accounting.JournalService
	balances *accounting.BalanceService
	audit    *AuditService
	config   Config
	metrics  Metrics
	logger   *zap.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	scope accounting.TransactionScope,
	rules *RuleService,
	journals *accounting.JournalService,
	balances *accounting.BalanceService,
	audit *AuditService,
	config Config,
	logger *zap.Logger,
) *Orchestrator {
	if config.MaxRetries <= 0 {
		config.MaxRetries = paymentsync.DefaultMaxRetries
	}
	return &Orchestrator{
		scope:    scope,
		rules:    rules,
		journals: journals,
		balances: balances,
		audit:    audit,
		config:   config,
		metrics:  noopMetrics{},
		logger:   logger,
	}
}

// WithMetrics installs a recorder for settled operations
func (o *Orchestrator) WithMetrics(m Metrics) *Orchestrator {
	if m != nil {
		o.metrics = m
	}
	return o
}

// Sync records an operation for the payment change and runs it. Target
// failures never surface as an error: they settle the operation as
// rolled_back or failed and callers read op.Status. The error is set only
// when the operation record itself cannot be written.
func (o *Orchestrator) Sync(ctx context.Context, req SyncRequest) (*paymentsync.SyncOperation, error) {
	op, err := paymentsync.NewSyncOperation(req.Operation, req.Payment, req.Prior, req.User, req.Force, o.config.MaxRetries)
	if err != nil {
		return nil, err
	}
	if err := o.audit.SaveOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to record sync operation: %w", err)
	}
	o.logger.Info("sync operation recorded",
		zap.String("operation_id", op.ID.String()),
		zap.String("type", string(op.Type)),
		zap.String("payment_kind", string(op.PaymentKind)),
		zap.String("payment_id", op.PaymentID.String()),
		zap.Bool("force", op.Force),
	)
	return op, o.run(ctx, op)
}

// Retry re-runs a failed operation from the stored snapshot. The payment's
// current state is not consulted.
func (o *Orchestrator) Retry(ctx context.Context, opID uuid.UUID) (*paymentsync.SyncOperation, error) {
	op, err := o.audit.GetOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	if err := op.BeginRetry(); err != nil {
		return op, err
	}
	if err := o.audit.SaveOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to record sync retry: %w", err)
	}
	o.logger.Info("retrying sync operation",
		zap.String("operation_id", op.ID.String()),
		zap.Int("retry_count", op.RetryCount),
		zap.Int("max_retries", op.MaxRetries),
	)
	return op, o.run(ctx, op)
}

// RetrySummary counts the outcomes of a RetryFailed batch
type RetrySummary struct {
	Attempted int
	Completed int
	Failed    int
}

// RetryFailed retries up to limit failed operations that still have retry
// budget, oldest first. A limit <= 0 retries every eligible operation.
func (o *Orchestrator) RetryFailed(ctx context.Context, limit int) (RetrySummary, error) {
	var summary RetrySummary
	status := paymentsync.StatusFailed
	var ops []paymentsync.SyncOperation
	err := o.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		ops, err = repos.SyncOperations().FindAll(ctx, paymentsync.OperationFilter{
			Filter: shared.Filter{OrderBy: "created_at", OrderDir: "asc"},
			Status: &status,
		})
		return err
	})
	if err != nil {
		return summary, fmt.Errorf("failed to list failed sync operations: %w", err)
	}

	for i := range ops {
		if limit > 0 && summary.Attempted >= limit {
			break
		}
		if !ops[i].CanRetry() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Attempted++
		op, err := o.Retry(ctx, ops[i].ID)
		if err != nil {
			summary.Failed++
			o.logger.Warn("sync retry errored",
				zap.String("operation_id", ops[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		if op.Status == paymentsync.StatusCompleted {
			summary.Completed++
		} else {
			summary.Failed++
		}
	}
	o.logger.Info("failed sync operations retried",
		zap.Int("attempted", summary.Attempted),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// execution is the in-memory state of one attempt
type execution struct {
	started time.Time
	op      *paymentsync.SyncOperation
	payment *payment.Payment
	prior   *payment.Payment
	stack   paymentsync.RollbackStack
	logs    []paymentsync.SyncLog
	touched []uuid.UUID
	seen    map[uuid.UUID]bool
}

func (e *execution) touch(ids ...uuid.UUID) {
	for _, id := range ids {
		if !e.seen[id] {
			e.seen[id] = true
			e.touched = append(e.touched, id)
		}
	}
}

func (e *execution) log(action string, target paymentsync.Target, targetID string, input, result any, err error, started time.Time) {
	entry := paymentsync.NewSyncLog(e.op.ID, action, string(target), targetID, input, result, err == nil, time.Since(started))
	if err != nil {
		entry.Message = err.Error()
	}
	e.logs = append(e.logs, entry)
}

// targetFailure carries the cause of a failed attempt out of the transaction
type targetFailure struct {
	target     paymentsync.Target
	cause      error
	stack      string
	rolledBack bool
	unwound    int
	failed     int
}

func (f *targetFailure) Error() string {
	return fmt.Sprintf("target %s failed: %v", f.target, f.cause)
}

func (f *targetFailure) Unwrap() error {
	return f.cause
}

// run executes steps 2 to 6 of an operation and persists the outcome
func (o *Orchestrator) run(ctx context.Context, op *paymentsync.SyncOperation) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "paymentsync", "run",
		telemetry.WithAttribute(telemetry.SpanAttrOperationID, op.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, op.PaymentID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentKind, string(op.PaymentKind)))
	defer span.End()
	ctx, _ = logger.WithOperationID(ctx, o.logger, op.ID.String())

	exec := &execution{started: time.Now(), op: op, payment: op.Payment(), seen: map[uuid.UUID]bool{}}
	if op.Prior != nil {
		exec.prior = op.Prior.Restore()
	}
	trigger := op.Type.Trigger()

	rules, err := o.rules.ApplicableRules(ctx, exec.payment, trigger)
	if err != nil {
		return o.settle(ctx, span, exec, &targetFailure{cause: err, stack: stackOf(err)})
	}
	if len(rules) == 0 {
		if !op.Force {
			o.logger.Info("no sync rules apply, nothing to do",
				zap.String("operation_id", op.ID.String()),
				zap.String("trigger", string(trigger)),
			)
			op.Complete()
			return o.settle(ctx, span, exec, nil)
		}
		rules = []paymentsync.SyncRule{paymentsync.DefaultRule(op.PaymentKind, trigger)}
	}

	if err := op.Start(planTargets(rules)); err != nil {
		return err
	}
	if err := o.audit.SaveOperation(ctx, op); err != nil {
		return fmt.Errorf("failed to record sync start: %w", err)
	}

	err = o.scope.Execute(ctx, func(ctx context.Context, _ accounting.Repositories) error {
		for i := range rules {
			rule := &rules[i]
			for _, target := range rule.Targets.Enabled() {
				if err := o.runTarget(ctx, exec, rule, target); err != nil {
					failure := &targetFailure{target: target, cause: err, stack: stackOf(err)}
					o.unwind(ctx, exec, failure)
					return failure
				}
			}
		}
		o.balances.Invalidate(ctx, exec.touched)
		return nil
	})
	if err == nil {
		op.Complete()
		return o.settle(ctx, span, exec, nil)
	}

	var failure *targetFailure
	if !errors.As(err, &failure) {
		// the commit itself failed; the database discarded every mutation
		// but no inverse was run
		failure = &targetFailure{cause: err, stack: string(debug.Stack())}
	}
	return o.settle(ctx, span, exec, failure)
}

// runTarget executes one target in its own save-point
func (o *Orchestrator) runTarget(ctx context.Context, exec *execution, rule *paymentsync.SyncRule, target paymentsync.Target) error {
	return o.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{value: r, stack: string(debug.Stack())}
			}
		}()
		switch target {
		case paymentsync.TargetCustomerLedger:
			return o.syncLedger(ctx, repos, exec, target, payment.KindSalePayment)
		case paymentsync.TargetSupplierLedger:
			return o.syncLedger(ctx, repos, exec, target, payment.KindPurchasePayment)
		case paymentsync.TargetJournal:
			return o.syncJournal(ctx, repos, exec, rule)
		case paymentsync.TargetBalanceCache:
			return o.syncBalanceCache(ctx, repos, exec, rule)
		}
		return shared.NewValidationError("INVALID_TARGET", fmt.Sprintf("Unknown sync target %q", target))
	})
}

// unwind drains the rollback stack inside the outer transaction
func (o *Orchestrator) unwind(ctx context.Context, exec *execution, failure *targetFailure) {
	results, ok := exec.stack.Unwind(ctx)
	failure.rolledBack = ok
	failure.unwound = len(results)
	for _, r := range results {
		started := time.Now()
		if r.Err != nil {
			failure.failed++
			o.logger.Error("inverse action failed",
				zap.String("operation_id", exec.op.ID.String()),
				zap.String("target", string(r.Action.Target)),
				zap.String("action", r.Action.Action),
				zap.String("target_id", r.Action.TargetID),
				zap.Error(r.Err),
			)
		}
		exec.log("rollback_"+r.Action.Action, r.Action.Target, r.Action.TargetID, r.Action.Captured, nil, r.Err, started)
	}
}

// settle records the terminal state of the operation with its audit trail.
// It runs after the target transaction has committed or rolled back.
func (o *Orchestrator) settle(ctx context.Context, span trace.Span, exec *execution, failure *targetFailure) error {
	op := exec.op
	var syncErr *paymentsync.SyncError
	if failure != nil {
		details := fmt.Sprintf("target=%s unwound=%d inverse_failures=%d", failure.target, failure.unwound, failure.failed)
		op.Fail(failure.cause, details, failure.rolledBack)
		se := paymentsync.NewSyncError(op.ID, failure.cause, failure.stack)
		syncErr = &se
		telemetry.RecordError(span, failure.cause)
	}

	if err := o.audit.Settle(ctx, op, exec.logs, syncErr); err != nil {
		o.logger.Error("failed to persist sync outcome",
			zap.String("operation_id", op.ID.String()),
			zap.String("status", string(op.Status)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to persist sync outcome: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrSyncStatus, string(op.Status))
	var errorKind string
	var inverses int
	if failure != nil {
		errorKind = string(syncErr.Kind)
		inverses = failure.unwound
	}
	o.metrics.RecordSync(ctx, string(op.Type), string(op.PaymentKind), string(op.Status), errorKind, time.Since(exec.started), inverses)

	log := logger.WithLogger(ctx, o.logger)
	if failure == nil {
		log.Info("sync operation completed",
			zap.Int("steps", len(exec.logs)),
			zap.Int("accounts_touched", len(exec.touched)),
		)
		telemetry.SetOK(span)
		return nil
	}
	log.Warn("sync operation failed",
		zap.String("status", string(op.Status)),
		zap.String("error_kind", string(syncErr.Kind)),
		zap.String("target", string(failure.target)),
		zap.Error(failure.cause),
	)
	return nil
}

// planTargets lists the distinct targets of the rules in execution order
func planTargets(rules []paymentsync.SyncRule) []paymentsync.Target {
	seen := map[paymentsync.Target]bool{}
	var targets []paymentsync.Target
	for _, r := range rules {
		for _, t := range r.Targets.Enabled() {
			if !seen[t] {
				seen[t] = true
				targets = append(targets, t)
			}
		}
	}
	return targets
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func stackOf(err error) string {
	var p *panicError
	if errors.As(err, &p) {
		return p.stack
	}
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		if b.Len() > 0 {
			b.WriteString("\n  caused by: ")
		}
		b.WriteString(e.Error())
	}
	return b.String()
}
