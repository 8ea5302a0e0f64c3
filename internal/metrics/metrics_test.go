package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dwsmith1983/testgate/pkg/types"
)

func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	r, err := New(mp)
	require.NoError(t, err)
	return r, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumTotal(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecorder_Attempts(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	r.RecordAttempt(ctx, "aws", 1, types.FailureExit, 2*time.Second)
	r.RecordAttempt(ctx, "aws", 2, "", time.Second)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumTotal(t, data[AttemptsTotal]))

	hist, ok := data[AttemptDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestRecorder_OutcomesAndRuns(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	r.RecordOutcome(ctx, "aws", types.OutcomeFailed)
	r.RecordOutcome(ctx, "gcp", types.OutcomeSkipped)
	r.RecordRun(ctx, &types.RunRecord{
		Key:     types.RunKey{Workflow: "integration", Subject: "pr-1"},
		Status:  types.RunCompleted,
		Verdict: types.VerdictFailed,
	})

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumTotal(t, data[JobOutcomes]))
	assert.Equal(t, int64(1), sumTotal(t, data[RunsTotal]))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	ctx := context.Background()
	assert.NotPanics(t, func() {
		r.RecordAttempt(ctx, "aws", 1, "", time.Second)
		r.RecordOutcome(ctx, "aws", types.OutcomeSucceeded)
		r.RecordRun(ctx, &types.RunRecord{})
	})
}

func TestDefault(t *testing.T) {
	assert.NotNil(t, Default())
	assert.NotNil(t, Tracer())
}
