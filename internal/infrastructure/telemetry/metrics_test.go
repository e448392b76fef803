package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
)

func newManualMeter(t *testing.T) (*telemetry.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Minute,
		ServiceName:       "ledger-test",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.Equal(t, "ledger-test", mp.GetConfig().ServiceName)
	assert.NotNil(t, mp.Meter("ledger"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestLedgerMetrics_RecordSync(t *testing.T) {
	mp, reader := newManualMeter(t)
	assert.True(t, mp.IsEnabled())

	m, err := telemetry.NewLedgerMetrics(mp.Meter("ledger"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSync(ctx, "create", "sale_payment", "completed", "", 20*time.Millisecond, 0)
	m.RecordSync(ctx, "create", "sale_payment", "rolled_back", "business", 40*time.Millisecond, 2)
	m.RecordSync(ctx, "update", "sale_payment", "completed", "", 10*time.Millisecond, 0)

	got := collect(t, reader)
	ops := got["ledger_sync_operations_total"]
	assert.EqualValues(t, 3, sumFor(t, ops))
	assert.EqualValues(t, 1, sumFor(t, ops,
		telemetry.AttrSyncOperation.String("create"),
		telemetry.AttrPaymentKind.String("sale_payment"),
		telemetry.AttrSyncStatus.String("rolled_back"),
	))
	assert.EqualValues(t, 2, sumFor(t, got["ledger_sync_inverse_actions_total"]))
	assert.EqualValues(t, 1, sumFor(t, got["ledger_sync_errors_total"], telemetry.AttrErrorKind.String("business")))

	hist, ok := got["ledger_sync_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.EqualValues(t, 3, count)
}

func TestLedgerMetrics_RecordJob(t *testing.T) {
	mp, reader := newManualMeter(t)
	m, err := telemetry.NewLedgerMetrics(mp.Meter("ledger"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordJob(ctx, "refresh_stale_balances", "SUCCESS", time.Second, 4)
	m.RecordJob(ctx, "refresh_stale_balances", "FAILED", time.Second, 0)
	m.RecordJob(ctx, "mark_overdue_loans", "SUCCESS", time.Second, 0)

	got := collect(t, reader)
	jobs := got["ledger_maintenance_jobs_total"]
	assert.EqualValues(t, 3, sumFor(t, jobs))
	assert.EqualValues(t, 1, sumFor(t, jobs,
		telemetry.AttrJobKind.String("refresh_stale_balances"),
		telemetry.AttrJobStatus.String("FAILED"),
	))
	assert.EqualValues(t, 4, sumFor(t, got["ledger_maintenance_records_total"]))
}

func TestLedgerMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.LedgerMetrics
	assert.NotPanics(t, func() {
		m.RecordSync(context.Background(), "create", "sale_payment", "completed", "", time.Millisecond, 0)
		m.RecordJob(context.Background(), "mark_overdue_loans", "SUCCESS", time.Millisecond, 1)
	})
}
