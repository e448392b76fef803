package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingProcessor keeps the body of every emitted record
type recordingProcessor struct {
	mu     sync.Mutex
	bodies []string
}

func (p *recordingProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies = append(p.bodies, r.Body().AsString())
	return nil
}

func (p *recordingProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }

func (p *recordingProcessor) Shutdown(context.Context) error   { return nil }
func (p *recordingProcessor) ForceFlush(context.Context) error { return nil }

func (p *recordingProcessor) messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.bodies...)
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := LogsConfig{CollectorEndpoint: "localhost:14317", ServiceName: "ledger-test", Insecure: true}

	lp, err := NewLoggerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.Equal(t, cfg, lp.GetConfig())
	assert.NoError(t, lp.ForceFlush(ctx))
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestNewZapOTELCore_Disabled(t *testing.T) {
	assert.False(t, NewZapOTELCore(nil, zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))

	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, NewZapOTELCore(lp, zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, _ := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	child := core.With([]zapcore.Field{zap.String("k", "v")})
	assert.False(t, child.Enabled(zapcore.InfoLevel))
}

func TestBridge_Disabled(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, Bridge(base, nil, zapcore.InfoLevel))
}

func TestBridge_TeesToProvider(t *testing.T) {
	proc := &recordingProcessor{}
	lp := NewLoggerProviderWithProcessor(LogsConfig{ServiceName: "ledger-test"}, proc, zap.NewNop())
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	observed, logs := observer.New(zapcore.DebugLevel)
	log := Bridge(zap.New(observed), lp, zapcore.InfoLevel)

	log.Debug("below threshold")
	log.Info("sync operation completed", zap.String("operation_id", "op-1"))
	log.Warn("sync operation failed")

	assert.Equal(t, 3, logs.Len(), "base core keeps its own level")
	assert.Equal(t, []string{"sync operation completed", "sync operation failed"}, proc.messages())
}
