package observability

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestRecordEstimation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		current.Store(nil)
	})

	_, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	RecordEstimation(ctx, "low", 1.2, true)
	RecordEstimation(ctx, "low", 1.25, false)
	RecordEstimation(ctx, "overloaded", math.Inf(1), true)
	RecordRejectedEvent(ctx, "unknown_facility")
	RecordCacheResult(ctx, true)
	RecordCacheResult(ctx, false)
	RecordCacheResult(ctx, false)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(3), sums["waittime.observations.processed"])
	assert.Equal(t, int64(2), sums["waittime.updates.published"])
	assert.Equal(t, int64(1), sums["waittime.updates.suppressed"])
	assert.Equal(t, int64(1), sums["waittime.events.rejected"])
	assert.Equal(t, int64(1), sums["cache.hit.count"])
	assert.Equal(t, int64(2), sums["cache.miss.count"])
}

func TestRecordHelpersWithoutMetrics(t *testing.T) {
	current.Store(nil)
	assert.NotPanics(t, func() {
		RecordEstimation(context.Background(), "low", 0, true)
		RecordRejectedEvent(context.Background(), "invalid_event")
		RecordCacheResult(context.Background(), true)
		RecordDBMetric(context.Background(), "select", 0)
		RecordRequestMetric(context.Background(), nil, "GET", "/health", 200, 0)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}
