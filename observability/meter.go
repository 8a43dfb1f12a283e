package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/kbukum/filestream/logger"
)

// MeterName is the instrumentation scope of filestream metrics.
const MeterName = "github.com/kbukum/filestream"

// DefaultInterval is the metric export interval.
const DefaultInterval = 15 * time.Second

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName, ServiceVersion and Environment describe the resource.
	ServiceName    string `yaml:"-" mapstructure:"-"`
	ServiceVersion string `yaml:"-" mapstructure:"-"`
	Environment    string `yaml:"-" mapstructure:"-"`

	// Endpoint is the OTLP HTTP endpoint host:port (e.g. "localhost:4318").
	// Empty disables export.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure uses plain HTTP towards the collector.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// Enabled reports whether metrics are exported.
func (c *MeterConfig) Enabled() bool { return c.Endpoint != "" }

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *MeterConfig) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
}

// Validate checks that the configuration is consistent.
func (c *MeterConfig) Validate() error {
	if c.Interval < 0 {
		return errors.New("metrics: interval must not be negative")
	}
	return nil
}

// InitMeter creates a meter provider that periodically exports to the OTLP
// endpoint and installs it as the global provider. Shut it down on exit to
// flush the last collection.
func InitMeter(ctx context.Context, cfg *MeterConfig, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	cfg.ApplyDefaults()
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.OrNop(log).WithComponent("metrics").Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns the filestream meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(MeterName)
}

// newResource merges the service attributes into the SDK default resource.
// The attributes are schemaless so they never conflict with the default
// resource's schema URL.
func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	var attrs []attribute.KeyValue
	if serviceName != "" {
		attrs = append(attrs, attribute.String("service.name", serviceName))
	}
	if serviceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", serviceVersion))
	}
	if environment != "" {
		attrs = append(attrs, attribute.String("environment", environment))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}
