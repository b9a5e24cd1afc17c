// Package telemetry provides OpenTelemetry integration for the A10 exporter.
//
// The Manager owns the OTLP/gRPC TracerProvider; exporter components receive
// it by injection and fall back to noop tracing when it is nil.
//
// # Key Components
//
// Manager: initializes the TracerProvider, installs the W3C propagator and
// flushes pending spans on shutdown.
//
// Attributes: span attribute keys for HTTP calls, AXAPI requests and scrapes.
//
// Error Templates: operator-facing messages for configuration and response problems.
//
// # Usage Example
//
//	manager := telemetry.NewManager(telemetry.Config{
//	    Enabled:        true,
//	    Endpoint:       "localhost:4317",
//	    Insecure:       true,
//	    SamplingRate:   0.2,
//	    ServiceName:    "a10-exporter",
//	    ServiceVersion: "1.0.0",
//	    ApplianceHosts: cfg.HostNames(),
//	})
//	_ = manager.Initialize(ctx)
//	defer manager.Shutdown(ctx)
//
//	client := exporter.NewAxapiClient(safeCfg, exporter.WithTracerProvider(manager.TracerProvider()))
//
// # Sampling
//
// A SamplingRate of 1.0 keeps every trace. Lower rates use a parent-based
// trace ID ratio sampler, so a scrape traced upstream is always kept.
//
// Tracing never blocks scraping: when the collector cannot be reached at
// startup the manager disables itself and logs a warning.
package telemetry
