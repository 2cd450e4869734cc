// Package observe provides observability primitives for slidesense:
// OpenTelemetry metrics and tracing, trace-aware structured logging, and the
// HTTP middleware that serves them.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution; production code uses
// [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all slidesense metrics.
const meterName = "github.com/MrWong99/slidesense"

// Metrics holds the metric instruments of the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// DetectionDuration tracks the time spent classifying one utterance.
	DetectionDuration metric.Float64Histogram

	// Detections counts classified utterances. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("command", ...)
	Detections metric.Int64Counter

	// DetectionConfidence tracks the confidence (0-100) of scored
	// utterances. Use with attribute:
	//   attribute.String("command", ...)
	DetectionConfidence metric.Int64Histogram

	// PendingConfirmations is 1 while a confirmation prompt is open.
	PendingConfirmations metric.Int64UpDownCounter

	// HistoryWrites counts history sink writes. Use with attributes:
	//   attribute.String("sink", ...), attribute.String("status", ...)
	HistoryWrites metric.Int64Counter

	// ConfigReloads counts config reloads. Use with attribute:
	//   attribute.String("status", ...)
	ConfigReloads metric.Int64Counter

	// HTTPRequestDuration tracks operational endpoint latency. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("route", ...),
	//   attribute.String("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// detectionBuckets are histogram boundaries (in seconds) sized for in-process
// string matching rather than network calls.
var detectionBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

var confidenceBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DetectionDuration, err = m.Float64Histogram("slidesense.detection.duration",
		metric.WithDescription("Time spent classifying one utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(detectionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Detections, err = m.Int64Counter("slidesense.detections",
		metric.WithDescription("Classified utterances by result kind and command."),
	); err != nil {
		return nil, err
	}
	if met.DetectionConfidence, err = m.Int64Histogram("slidesense.detection.confidence",
		metric.WithDescription("Confidence of scored utterances by command."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PendingConfirmations, err = m.Int64UpDownCounter("slidesense.pending_confirmations",
		metric.WithDescription("Open confirmation prompts."),
	); err != nil {
		return nil, err
	}
	if met.HistoryWrites, err = m.Int64Counter("slidesense.history.writes",
		metric.WithDescription("History sink writes by sink and status."),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloads, err = m.Int64Counter("slidesense.config.reloads",
		metric.WithDescription("Configuration reloads by status."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("slidesense.http.request.duration",
		metric.WithDescription("Operational endpoint latency by method, route and status class."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Call it after [InitProvider] so
// the instruments bind to the Prometheus exporter.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordDetection records one classified utterance. command may be empty;
// confidence is recorded only when scored is true.
func (m *Metrics) RecordDetection(ctx context.Context, kind, command string, scored bool, confidence int, d time.Duration) {
	m.DetectionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
	m.Detections.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("command", command),
		),
	)
	if scored {
		m.DetectionConfidence.Record(ctx, int64(confidence),
			metric.WithAttributes(attribute.String("command", command)),
		)
	}
}

// RecordHistoryWrite records a history sink write.
func (m *Metrics) RecordHistoryWrite(ctx context.Context, sink, status string) {
	m.HistoryWrites.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("sink", sink),
			attribute.String("status", status),
		),
	)
}

// RecordConfigReload records a configuration reload.
func (m *Metrics) RecordConfigReload(ctx context.Context, status string) {
	m.ConfigReloads.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
