package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/themepack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal        metric.Int64Counter
	BuildFailuresTotal metric.Int64Counter
	BuildDuration      metric.Float64Histogram

	// Stage metrics
	StageRunsTotal metric.Int64Counter
	StageDuration  metric.Float64Histogram

	// Output metrics
	FilesWrittenTotal metric.Int64Counter
	FilesSkippedTotal metric.Int64Counter
	BytesWrittenTotal metric.Int64Counter

	// Watch metrics
	RebuildsTriggeredTotal metric.Int64Counter
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

// Tracer returns the tracer used for build spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	// Build metrics
	m.BuildsTotal, _ = meter.Int64Counter(
		"themepack.builds.total",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)

	m.BuildFailuresTotal, _ = meter.Int64Counter(
		"themepack.builds.failures.total",
		metric.WithDescription("Total number of failed builds by error kind"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"themepack.builds.duration",
		metric.WithDescription("Duration of complete builds"),
		metric.WithUnit("ms"),
	)

	// Stage metrics
	m.StageRunsTotal, _ = meter.Int64Counter(
		"themepack.stages.runs.total",
		metric.WithDescription("Total number of files run through a stage rule"),
		metric.WithUnit("{file}"),
	)

	m.StageDuration, _ = meter.Float64Histogram(
		"themepack.stages.duration",
		metric.WithDescription("Duration of a stage rule applied to one file"),
		metric.WithUnit("ms"),
	)

	// Output metrics
	m.FilesWrittenTotal, _ = meter.Int64Counter(
		"themepack.outputs.written.total",
		metric.WithDescription("Total number of output files written"),
		metric.WithUnit("{file}"),
	)

	m.FilesSkippedTotal, _ = meter.Int64Counter(
		"themepack.outputs.unchanged.total",
		metric.WithDescription("Total number of output files skipped because they were unchanged"),
		metric.WithUnit("{file}"),
	)

	m.BytesWrittenTotal, _ = meter.Int64Counter(
		"themepack.outputs.bytes.total",
		metric.WithDescription("Total number of bytes written to the output directory"),
		metric.WithUnit("By"),
	)

	// Watch metrics
	m.RebuildsTriggeredTotal, _ = meter.Int64Counter(
		"themepack.watch.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{build}"),
	)

	return m
}
