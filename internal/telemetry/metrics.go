package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/valderanvvk/frontend-base-template"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram
	OutputBytes      metric.Int64Histogram

	// Static copy metrics
	FilesCopiedTotal  metric.Int64Counter
	FilesSkippedTotal metric.Int64Counter

	// Dev server metrics
	ReloadsTotal     metric.Int64Counter
	ReloadClients    metric.Int64UpDownCounter
	PublishedObjects metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"frontend.builds.total",
		metric.WithDescription("Total number of bundle builds"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"frontend.builds.errors.total",
		metric.WithDescription("Total number of failed bundle builds"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"frontend.builds.duration",
		metric.WithDescription("Duration of bundle builds"),
		metric.WithUnit("ms"),
	)

	m.OutputBytes, _ = meter.Int64Histogram(
		"frontend.builds.output.size",
		metric.WithDescription("Total size of the files emitted by a build"),
		metric.WithUnit("By"),
	)

	m.FilesCopiedTotal, _ = meter.Int64Counter(
		"frontend.copy.files.total",
		metric.WithDescription("Static files copied into the output"),
		metric.WithUnit("{file}"),
	)

	m.FilesSkippedTotal, _ = meter.Int64Counter(
		"frontend.copy.skipped.total",
		metric.WithDescription("Static files skipped because the output was up to date"),
		metric.WithUnit("{file}"),
	)

	m.ReloadsTotal, _ = meter.Int64Counter(
		"frontend.devserver.reloads.total",
		metric.WithDescription("Reload notifications sent to browsers"),
		metric.WithUnit("{reload}"),
	)

	m.ReloadClients, _ = meter.Int64UpDownCounter(
		"frontend.devserver.clients",
		metric.WithDescription("Connected live reload clients"),
		metric.WithUnit("{client}"),
	)

	m.PublishedObjects, _ = meter.Int64Counter(
		"frontend.publish.objects.total",
		metric.WithDescription("Objects uploaded by publish"),
		metric.WithUnit("{object}"),
	)

	return m
}

// RecordBuild records the outcome of one build.
func (m *Metrics) RecordBuild(ctx context.Context, d time.Duration, size int64, err error) {
	status := attribute.String("status", "ok")
	if err != nil {
		status = attribute.String("status", "error")
		m.BuildErrorsTotal.Add(ctx, 1)
	}
	m.BuildsTotal.Add(ctx, 1, metric.WithAttributes(status))
	m.BuildDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(status))
	if err == nil {
		m.OutputBytes.Record(ctx, size)
	}
}
