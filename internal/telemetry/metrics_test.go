package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordBuild(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	m := GetMetrics()
	require.Same(t, m, GetMetrics())

	ctx := context.Background()
	m.RecordBuild(ctx, 20*time.Millisecond, 1024, nil)
	m.RecordBuild(ctx, 5*time.Millisecond, 0, errors.New("boom"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			if sum, ok := mt.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[mt.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), sums["frontend.builds.total"])
	assert.Equal(t, int64(1), sums["frontend.builds.errors.total"])
}
