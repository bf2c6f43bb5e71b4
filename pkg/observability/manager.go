package observability

import (
	"context"
	"log/slog"

	"github.com/kadirpekel/gasket/pkg/config"
)

// Manager owns the metrics and tracing lifecycle for a running engine.
type Manager struct {
	Metrics Metrics
	Tracer  *Tracer
}

// NewManager initializes metrics and tracing per the observability
// configuration. Disabled concerns get noop implementations so callers
// never branch.
func NewManager(cfg config.ObservabilityConfig) (*Manager, error) {
	metrics, err := InitMetrics(cfg.MetricsEnabled)
	if err != nil {
		return nil, err
	}

	tracer, err := InitTracer(cfg.TracingEnabled, "gasket")
	if err != nil {
		return nil, err
	}

	if cfg.MetricsEnabled || cfg.TracingEnabled {
		slog.Info("Observability initialized",
			"metrics", cfg.MetricsEnabled,
			"tracing", cfg.TracingEnabled)
	}

	return &Manager{Metrics: metrics, Tracer: tracer}, nil
}

// NewNoopManager returns a manager that records nothing. Used by tests
// and CLI one-shot commands.
func NewNoopManager() *Manager {
	tracer, _ := InitTracer(false, "gasket")
	return &Manager{Metrics: NoopMetrics{}, Tracer: tracer}
}

// Shutdown flushes exporters.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.Tracer == nil {
		return nil
	}
	return m.Tracer.Shutdown(ctx)
}
