package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records retrieval-engine measurements. A nil-safe noop
// implementation backs disabled configurations.
type Metrics interface {
	RecordSearch(ctx context.Context, strategy string, durationSeconds float64, results int)
	RecordSearchError(ctx context.Context, strategy string)
	RecordCacheHit(ctx context.Context)
	RecordCacheMiss(ctx context.Context)
	RecordDegradedSearch(ctx context.Context)
	RecordLLMRequest(ctx context.Context, durationSeconds float64, failed bool)
}

// PrometheusMetrics exports engine metrics through the OTel metric SDK
// with a Prometheus pull exporter; the server exposes them on /metrics.
type PrometheusMetrics struct {
	searchDuration metric.Float64Histogram
	searches       metric.Int64Counter
	searchResults  metric.Int64Histogram
	searchErrors   metric.Int64Counter
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	degraded       metric.Int64Counter
	llmDuration    metric.Float64Histogram
	llmErrors      metric.Int64Counter
}

// InitMetrics builds the meter provider and all engine instruments.
func InitMetrics(enabled bool) (Metrics, error) {
	if !enabled {
		return NoopMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meter := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	).Meter("gasket")

	m := &PrometheusMetrics{}

	if m.searchDuration, err = meter.Float64Histogram(
		"gasket_search_duration_seconds",
		metric.WithDescription("Retrieval latency in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create search duration histogram: %w", err)
	}
	if m.searches, err = meter.Int64Counter(
		"gasket_searches_total",
		metric.WithDescription("Total searches by strategy"),
	); err != nil {
		return nil, fmt.Errorf("failed to create searches counter: %w", err)
	}
	if m.searchResults, err = meter.Int64Histogram(
		"gasket_search_results",
		metric.WithDescription("Result count per search"),
	); err != nil {
		return nil, fmt.Errorf("failed to create search results histogram: %w", err)
	}
	if m.searchErrors, err = meter.Int64Counter(
		"gasket_search_errors_total",
		metric.WithDescription("Total search errors by strategy"),
	); err != nil {
		return nil, fmt.Errorf("failed to create search errors counter: %w", err)
	}
	if m.cacheHits, err = meter.Int64Counter(
		"gasket_query_cache_hits_total",
		metric.WithDescription("Query cache hits"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}
	if m.cacheMisses, err = meter.Int64Counter(
		"gasket_query_cache_misses_total",
		metric.WithDescription("Query cache misses"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}
	if m.degraded, err = meter.Int64Counter(
		"gasket_degraded_searches_total",
		metric.WithDescription("Searches that fell back to lexical-only"),
	); err != nil {
		return nil, fmt.Errorf("failed to create degraded counter: %w", err)
	}
	if m.llmDuration, err = meter.Float64Histogram(
		"gasket_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}
	if m.llmErrors, err = meter.Int64Counter(
		"gasket_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	return m, nil
}

func (m *PrometheusMetrics) RecordSearch(ctx context.Context, strategy string, durationSeconds float64, results int) {
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))
	m.searches.Add(ctx, 1, attrs)
	m.searchDuration.Record(ctx, durationSeconds, attrs)
	m.searchResults.Record(ctx, int64(results), attrs)
}

func (m *PrometheusMetrics) RecordSearchError(ctx context.Context, strategy string) {
	m.searchErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

func (m *PrometheusMetrics) RecordCacheHit(ctx context.Context) {
	m.cacheHits.Add(ctx, 1)
}

func (m *PrometheusMetrics) RecordCacheMiss(ctx context.Context) {
	m.cacheMisses.Add(ctx, 1)
}

func (m *PrometheusMetrics) RecordDegradedSearch(ctx context.Context) {
	m.degraded.Add(ctx, 1)
}

func (m *PrometheusMetrics) RecordLLMRequest(ctx context.Context, durationSeconds float64, failed bool) {
	m.llmDuration.Record(ctx, durationSeconds)
	if failed {
		m.llmErrors.Add(ctx, 1)
	}
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordSearch(context.Context, string, float64, int) {}
func (NoopMetrics) RecordSearchError(context.Context, string)          {}
func (NoopMetrics) RecordCacheHit(context.Context)                     {}
func (NoopMetrics) RecordCacheMiss(context.Context)                    {}
func (NoopMetrics) RecordDegradedSearch(context.Context)               {}
func (NoopMetrics) RecordLLMRequest(context.Context, float64, bool)    {}
