package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestProvider_Counts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := NewWithReader(reader)
	require.NoError(t, err)

	ctx := context.Background()
	p.RecordMerged(ctx, 3)
	p.RecordMerged(ctx, 0)
	p.RecordRun(ctx, "ok", 250*time.Millisecond)
	p.RecordDegraded(ctx, "enrich")
	p.RecordDegraded(ctx, "calculate")
	p.RecordVerdict(ctx, "Accept")
	p.RecordWatcherFault(ctx, "mailbox")

	got := collect(t, reader)
	assert.Equal(t, int64(3), got["sentinel.records.merged"])
	assert.Equal(t, int64(1), got["sentinel.pipeline.runs"])
	assert.Equal(t, int64(2), got["sentinel.records.degraded"])
	assert.Equal(t, int64(1), got["sentinel.decisions"])
	assert.Equal(t, int64(1), got["sentinel.watcher.faults"])

	assert.NoError(t, p.Shutdown(ctx))
}

func TestProvider_NilIsNoop(t *testing.T) {
	var p *Provider
	ctx := context.Background()
	p.RecordMerged(ctx, 1)
	p.RecordRun(ctx, "ok", time.Second)
	p.RecordDegraded(ctx, "enrich")
	p.RecordVerdict(ctx, "Decline")
	p.RecordWatcherFault(ctx, "scan")
	assert.NoError(t, p.Shutdown(ctx))
}

func TestNew_InProcess(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)
	p.RecordMerged(context.Background(), 1)
	assert.NoError(t, p.Shutdown(context.Background()))
}
