package telemetry

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop(), "stop is idempotent")
}

func TestNewProfiler_RequiresAddressAndName(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "ledger"}, zap.NewNop())
	assert.ErrorContains(t, err, "server address")

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zap.NewNop())
	assert.ErrorContains(t, err, "application name")
}

func TestProfiler_ProfileTypes(t *testing.T) {
	assert.Len(t, (&Profiler{}).profileTypes(), 1)
	assert.Len(t, (&Profiler{config: ProfilerConfig{ProfileMemory: true, ProfileRuntime: true}}).profileTypes(), 6)
}

func TestWithJobLabel(t *testing.T) {
	var got string
	var ok bool
	WithJobLabel(context.Background(), "refresh_stale_balances", func(ctx context.Context) {
		got, ok = pprof.Label(ctx, ProfilingLabelJobKind)
	})
	assert.True(t, ok)
	assert.Equal(t, "refresh_stale_balances", got)
}

func TestEnableSpanProfiles_DisabledTracer(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	tp.EnableSpanProfiles()
	assert.False(t, tp.SpanProfilesEnabled())
}
