package telemetry

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"
)

// Manager owns the OpenTelemetry TracerProvider of the exporter: it builds the
// OTLP/gRPC pipeline on Initialize and flushes it on Shutdown.
//
// A Manager whose initialization failed stays usable: it reports IsEnabled() == false
// and TracerProvider() == nil, and every component falls back to noop tracing.
type Manager struct {
	enabled        bool
	tracerProvider *sdktrace.TracerProvider
	config         Config
}

// Config holds OpenTelemetry settings for the telemetry manager.
type Config struct {
	Enabled bool

	// Endpoint is the OTLP gRPC collector endpoint (e.g., "localhost:4317")
	Endpoint string

	// Insecure disables TLS towards the collector
	Insecure bool

	// SamplingRate is the fraction of traces kept (0.0 to 1.0)
	SamplingRate float64

	ServiceName    string
	ServiceVersion string

	// ApplianceHosts are the configured A10 appliances, recorded on the resource
	ApplianceHosts []string
}

// NewManager creates a telemetry manager. Nothing is started until Initialize.
func NewManager(cfg Config) *Manager {
	return &Manager{
		enabled: cfg.Enabled,
		config:  cfg,
	}
}

// Initialize creates the OTLP exporter and TracerProvider, registers them as
// the global provider and installs the W3C trace context propagator.
//
// Failures are logged and leave the manager disabled; the returned error is
// always nil so startup never depends on the collector.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.config.Enabled {
		logrus.Debug("OpenTelemetry is disabled in configuration")
		return nil
	}

	exporter, err := m.createExporter(ctx)
	if err != nil {
		logrus.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		m.enabled = false
		return nil
	}

	res, err := m.createResource()
	if err != nil {
		logrus.Warnf("Failed to create OpenTelemetry resource: %v. Continuing without tracing.", err)
		m.enabled = false
		_ = exporter.Shutdown(ctx)
		return nil
	}

	m.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(m.createSampler()),
	)

	otel.SetTracerProvider(m.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logrus.Infof("OpenTelemetry initialized (endpoint: %s, sampling: %.2f, appliances: %d)",
		m.config.Endpoint, m.config.SamplingRate, len(m.config.ApplianceHosts))
	return nil
}

func (m *Manager) createExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(m.config.Endpoint),
	}
	if m.config.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// createResource describes this exporter process and the appliances it scrapes.
func (m *Manager) createResource() (*resource.Resource, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(m.config.ServiceName),
		semconv.ServiceVersionKey.String(m.config.ServiceVersion),
		semconv.HostNameKey.String(hostname),
	}

	if len(m.config.ApplianceHosts) > 0 {
		hosts := append([]string(nil), m.config.ApplianceHosts...)
		sort.Strings(hosts)
		attrs = append(attrs, attribute.StringSlice(AttrAxapiAppliances, hosts))
		if len(hosts) == 1 {
			attrs = append(attrs, semconv.PeerServiceKey.String(hosts[0]))
		}
	}

	return resource.New(context.Background(), resource.WithAttributes(attrs...))
}

func (m *Manager) createSampler() sdktrace.Sampler {
	if m.config.SamplingRate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(m.config.SamplingRate))
}

// Shutdown flushes pending spans. It is a no-op when tracing is not running.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.enabled || m.tracerProvider == nil {
		logrus.Debug("OpenTelemetry shutdown skipped (not enabled or not initialized)")
		return nil
	}

	logrus.Info("Shutting down OpenTelemetry TracerProvider...")
	if err := m.tracerProvider.Shutdown(ctx); err != nil {
		logrus.Errorf("Error during OpenTelemetry shutdown: %v", err)
		return fmt.Errorf("failed to shutdown TracerProvider: %w", err)
	}

	logrus.Info("OpenTelemetry shutdown completed successfully")
	return nil
}

// IsEnabled reports whether tracing is configured and initialized successfully.
func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// TracerProvider returns the provider to inject into exporter components,
// or nil when tracing is not running.
func (m *Manager) TracerProvider() trace.TracerProvider {
	if m.tracerProvider == nil {
		return nil
	}
	return m.tracerProvider
}
