package instrumentation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds the configuration for metrics.
type Config struct {
	// Enabled determines if instrumentation is active.
	Enabled bool
	// ServiceName is the name of the service (default: impromptu).
	ServiceName    string
	ServiceVersion string
}

// Provider owns the meter provider and the Prometheus registry it exports to.
type Provider struct {
	config        Config
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry
	metrics       *Metrics
}

// NewProvider creates a metrics provider. A disabled provider hands out a nil
// *Metrics and serves an empty registry.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "impromptu"
	}

	registry := prometheus.NewRegistry()
	p := &Provider{config: config, registry: registry}
	if !config.Enabled {
		return p, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	p.metrics, err = NewMetrics(p.meterProvider.Meter(config.ServiceName))
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	return p, nil
}

// Metrics returns the recorder, nil when disabled.
func (p *Provider) Metrics() *Metrics { return p.metrics }

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Enabled reports whether metrics are recorded.
func (p *Provider) Enabled() bool { return p.meterProvider != nil }

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}
