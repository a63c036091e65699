package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/polifeed"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// API client metrics
	APIRequestsTotal      metric.Int64Counter
	APIRequestErrorsTotal metric.Int64Counter
	APIRequestDuration    metric.Float64Histogram

	// Session metrics
	SessionTransitionsTotal metric.Int64Counter
	TokenRefreshTotal       metric.Int64Counter
	TokenRefreshErrorsTotal metric.Int64Counter
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

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.APIRequestsTotal, _ = meter.Int64Counter(
		"polifeed.api.requests.total",
		metric.WithDescription("Total number of backend API requests"),
		metric.WithUnit("{request}"),
	)

	m.APIRequestErrorsTotal, _ = meter.Int64Counter(
		"polifeed.api.requests.errors.total",
		metric.WithDescription("Total number of failed backend API requests"),
		metric.WithUnit("{error}"),
	)

	m.APIRequestDuration, _ = meter.Float64Histogram(
		"polifeed.api.request.duration",
		metric.WithDescription("Duration of backend API requests"),
		metric.WithUnit("ms"),
	)

	m.SessionTransitionsTotal, _ = meter.Int64Counter(
		"polifeed.session.transitions.total",
		metric.WithDescription("Total number of session state transitions"),
		metric.WithUnit("{transition}"),
	)

	m.TokenRefreshTotal, _ = meter.Int64Counter(
		"polifeed.session.refresh.total",
		metric.WithDescription("Total number of token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)

	m.TokenRefreshErrorsTotal, _ = meter.Int64Counter(
		"polifeed.session.refresh.errors.total",
		metric.WithDescription("Total number of failed token refreshes"),
		metric.WithUnit("{error}"),
	)

	return m
}
