package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics holds the instruments for payment sync and maintenance
// activity.
type LedgerMetrics struct {
	syncTotal    *Counter
	syncDuration *Histogram
	syncInverses *Counter
	syncErrors   *Counter
	jobTotal     *Counter
	jobDuration  *Histogram
	jobAffected  *Counter
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	m := &LedgerMetrics{}
	var err error

	if m.syncTotal, err = NewCounter(meter, "ledger_sync_operations_total",
		"Sync operations settled, by operation type and final status", "{operation}"); err != nil {
		return nil, err
	}
	if m.syncDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_sync_duration_seconds",
		Description: "Time from sync start to settled outcome",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.syncInverses, err = NewCounter(meter, "ledger_sync_inverse_actions_total",
		"Inverse actions run while unwinding failed syncs", "{action}"); err != nil {
		return nil, err
	}
	if m.syncErrors, err = NewCounter(meter, "ledger_sync_errors_total",
		"Sync errors recorded, by classified kind", "{error}"); err != nil {
		return nil, err
	}
	if m.jobTotal, err = NewCounter(meter, "ledger_maintenance_jobs_total",
		"Maintenance job attempts, by kind and status", "{job}"); err != nil {
		return nil, err
	}
	if m.jobDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_maintenance_job_duration_seconds",
		Description: "Maintenance job attempt duration",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.jobAffected, err = NewCounter(meter, "ledger_maintenance_records_total",
		"Records changed by maintenance jobs", "{record}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSync records a settled sync operation. errorKind is empty for
// completed operations.
func (m *LedgerMetrics) RecordSync(ctx context.Context, operation, paymentKind, status, errorKind string, d time.Duration, inverses int) {
	if m == nil {
		return
	}
	m.syncTotal.Inc(ctx,
		AttrSyncOperation.String(operation),
		AttrPaymentKind.String(paymentKind),
		AttrSyncStatus.String(status),
	)
	m.syncDuration.RecordDuration(ctx, d, AttrSyncOperation.String(operation), AttrSyncStatus.String(status))
	if inverses > 0 {
		m.syncInverses.Add(ctx, int64(inverses), AttrSyncOperation.String(operation))
	}
	if errorKind != "" {
		m.syncErrors.Inc(ctx, AttrErrorKind.String(errorKind))
	}
}

// RecordJob records one maintenance job attempt
func (m *LedgerMetrics) RecordJob(ctx context.Context, kind, status string, d time.Duration, affected int) {
	if m == nil {
		return
	}
	m.jobTotal.Inc(ctx, AttrJobKind.String(kind), AttrJobStatus.String(status))
	m.jobDuration.RecordDuration(ctx, d, AttrJobKind.String(kind))
	if affected > 0 {
		m.jobAffected.Add(ctx, int64(affected), AttrJobKind.String(kind))
	}
}
