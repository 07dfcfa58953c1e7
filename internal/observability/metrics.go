package observability

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages all metrics for the reading service
type MetricsCollector struct {
	meter metric.Meter

	// Message metrics
	messagesTotal metric.Int64Counter
	handleLatency metric.Float64Histogram

	// Reading metrics
	readingsTotal metric.Int64Counter

	// Session metrics
	sessionsStarted metric.Int64Counter
	sessionsEnded   metric.Int64Counter
	sessionsActive  metric.Int64UpDownCounter

	// Broadcast metrics
	broadcastSends metric.Int64Counter

	// HTTP server metrics
	httpRequests metric.Int64Counter
	httpLatency  metric.Float64Histogram

	// Server for Prometheus scraping
	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	// Create meter provider
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	// Get meter
	meter := provider.Meter("astra")

	// Create metrics
	messagesTotal, err := meter.Int64Counter(
		"astra.messages.total",
		metric.WithDescription("Total number of inbound messages handled"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages counter: %w", err)
	}

	handleLatency, err := meter.Float64Histogram(
		"astra.handle.latency",
		metric.WithDescription("Inbound message handling latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create handle_latency histogram: %w", err)
	}

	readingsTotal, err := meter.Int64Counter(
		"astra.readings.total",
		metric.WithDescription("Total number of readings computed"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create readings counter: %w", err)
	}

	sessionsStarted, err := meter.Int64Counter(
		"astra.sessions.started.total",
		metric.WithDescription("Total number of conversation sessions started"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_started counter: %w", err)
	}

	sessionsEnded, err := meter.Int64Counter(
		"astra.sessions.ended.total",
		metric.WithDescription("Total number of conversation sessions ended, by outcome"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_ended counter: %w", err)
	}

	sessionsActive, err := meter.Int64UpDownCounter(
		"astra.sessions.active",
		metric.WithDescription("Number of active conversation sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_active gauge: %w", err)
	}

	broadcastSends, err := meter.Int64Counter(
		"astra.broadcast.sends.total",
		metric.WithDescription("Total number of broadcast deliveries attempted, by status"),
		metric.WithUnit("{send}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcast_sends counter: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"astra.http.requests.total",
		metric.WithDescription("Total number of HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests counter: %w", err)
	}

	httpLatency, err := meter.Float64Histogram(
		"astra.http.latency",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_latency histogram: %w", err)
	}

	collector := &MetricsCollector{
		meter:           meter,
		messagesTotal:   messagesTotal,
		handleLatency:   handleLatency,
		readingsTotal:   readingsTotal,
		sessionsStarted: sessionsStarted,
		sessionsEnded:   sessionsEnded,
		sessionsActive:  sessionsActive,
		broadcastSends:  broadcastSends,
		httpRequests:    httpRequests,
		httpLatency:     httpLatency,
	}

	// Start Prometheus HTTP server
	if config.PrometheusPort > 0 {
		if err := collector.StartPrometheusServer(config.PrometheusPort); err != nil {
			return nil, fmt.Errorf("failed to start prometheus server: %w", err)
		}
	}

	return collector, nil
}

// StartPrometheusServer starts the Prometheus metrics server
func (m *MetricsCollector) StartPrometheusServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())

	m.prometheusServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Printf("Prometheus metrics server listening on :%d", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Prometheus server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics collector
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m.prometheusServer != nil {
		return m.prometheusServer.Shutdown(ctx)
	}
	return nil
}

// RecordMessage records one handled inbound message and its latency
func (m *MetricsCollector) RecordMessage(ctx context.Context, channel string, status string, latency time.Duration) {
	if m.messagesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("channel", channel),
		attribute.String("status", status),
	}

	m.messagesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.handleLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attrs...))
}

// RecordReading records a computed reading (zodiac, life_path, compatibility,
// horoscope, fact)
func (m *MetricsCollector) RecordReading(ctx context.Context, kind string) {
	if m.readingsTotal == nil {
		return
	}
	m.readingsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSessionStart records a new conversation session for a flow
func (m *MetricsCollector) RecordSessionStart(ctx context.Context, flow string) {
	if m.sessionsStarted == nil {
		return
	}
	m.sessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", flow)))
	m.sessionsActive.Add(ctx, 1)
}

// RecordSessionEnd records a session leaving the store; outcome is one of
// completed, cancelled, expired, replaced
func (m *MetricsCollector) RecordSessionEnd(ctx context.Context, flow string, outcome string) {
	if m.sessionsEnded == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	}
	m.sessionsEnded.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sessionsActive.Add(ctx, -1)
}

// RecordBroadcastSend records one broadcast delivery attempt
func (m *MetricsCollector) RecordBroadcastSend(ctx context.Context, status string) {
	if m.broadcastSends == nil {
		return
	}
	m.broadcastSends.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordHTTPServerRequest records one served HTTP request
func (m *MetricsCollector) RecordHTTPServerRequest(ctx context.Context, method, route string, status int, latency time.Duration) {
	if m.httpRequests == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	}

	m.httpRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attrs...))
}
