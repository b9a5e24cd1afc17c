// A10 Exporter is a Prometheus exporter for A10 Networks appliances. It logs
// in to the AXAPI of each configured appliance and re-exposes the numeric
// fields of any AXAPI stats object as gauges.
//
// Each scrape names the appliance and object in its query string:
//
//	/metrics?host_ip=10.0.0.1&api_endpoint=/slb/virtual-server/vs1&api_name=_vs1
//
// Usage:
//
//	a10_exporter [--config config.json] [--debug]
//
// The configuration file lists appliance credentials and optional log,
// server and OpenTelemetry settings. It is reloaded on SIGHUP and whenever
// it changes on disk.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axapi-tools/a10_exporter/internal/config"
	"github.com/axapi-tools/a10_exporter/internal/exporter"
	"github.com/axapi-tools/a10_exporter/internal/logging"
	"github.com/axapi-tools/a10_exporter/internal/models"
	"github.com/axapi-tools/a10_exporter/internal/telemetry"
	"github.com/axapi-tools/a10_exporter/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	programName       = "a10_exporter"      // Application name
	serviceName       = "a10-exporter"      // OpenTelemetry service name
	selfMetricsPath   = "/exporter/metrics" // Exporter's own metrics
	shutdownTimeout   = 10 * time.Second    // Maximum time to wait for graceful shutdown
	readHeaderTimeout = 5 * time.Second     // HTTP server read header timeout
)

var (
	configFile string
	debug      bool

	// version is set at build time with -ldflags "-X main.version=..."
	version = "dev"
)

// Server owns the HTTP server and the scrape pipeline: credential store,
// AXAPI client, token cache, metric registry and handlers.
//
// Server errors (such as port binding failures) are delivered on ErrorChan()
// instead of terminating the process, so the caller can still shut down cleanly.
type Server struct {
	cfg              *models.Config
	configPath       string
	safeCfg          *models.SafeConfig
	httpSrv          *http.Server
	selfRegistry     *prometheus.Registry
	telemetryManager *telemetry.Manager
	client           *exporter.AxapiClient
	watcher          *config.Watcher
	// serverErrChan is buffered (capacity 1) so the listener goroutine can
	// report an error before the caller starts selecting on it.
	serverErrChan chan error
}

// NewServer creates a server for cfg. configPath is the file re-read on reload.
func NewServer(cfg *models.Config, configPath string) *Server {
	var telemetryMgr *telemetry.Manager
	if cfg.IsOTelEnabled() {
		telemetryMgr = telemetry.NewManager(telemetry.Config{
			Enabled:        cfg.OpenTelemetry.Enabled,
			Endpoint:       cfg.OpenTelemetry.Endpoint,
			Insecure:       cfg.OpenTelemetry.Insecure,
			SamplingRate:   cfg.OpenTelemetry.SamplingRate,
			ServiceName:    serviceName,
			ServiceVersion: version,
			ApplianceHosts: cfg.HostNames(),
		})
	}

	return &Server{
		cfg:              cfg,
		configPath:       configPath,
		safeCfg:          models.NewSafeConfig(cfg),
		selfRegistry:     prometheus.NewRegistry(),
		telemetryManager: telemetryMgr,
		serverErrChan:    make(chan error, 1),
	}
}

// Start wires the scrape pipeline, starts watching the configuration file and
// launches the HTTP server in a goroutine.
//
// The server exposes:
//   - the scrape endpoint at the configured URI (default: /metrics)
//   - the usage message at /
//   - a health check at /health
//   - the exporter's own metrics at /exporter/metrics
func (s *Server) Start() error {
	var tracerProvider trace.TracerProvider
	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.telemetryManager.Initialize(ctx); err != nil {
			log.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		}
		if s.telemetryManager.IsEnabled() {
			tracerProvider = s.telemetryManager.TracerProvider()
			log.Info("OpenTelemetry trace context propagation configured")
		}
	}

	if err := s.selfRegistry.Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := s.selfRegistry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return fmt.Errorf("failed to register process collector: %w", err)
	}

	registry := exporter.NewMetricRegistry()
	metrics := exporter.NewExporterMetrics(s.selfRegistry, func() float64 { return float64(registry.Len()) })

	s.client = exporter.NewAxapiClient(s.safeCfg,
		exporter.WithTracerProvider(tracerProvider),
		exporter.WithStatsTimeout(s.cfg.GetStatsTimeout()),
	)
	tokens := exporter.NewTokenCache(s.client,
		exporter.WithTokenMetrics(metrics),
		exporter.WithTokenTracerProvider(tracerProvider),
	)
	fetcher := exporter.NewStatsFetcher(s.client, tokens,
		exporter.WithFetcherMetrics(metrics),
		exporter.WithFetcherTracerProvider(tracerProvider),
	)
	var scrapeHandler http.Handler = exporter.NewScrapeHandler(fetcher, registry,
		exporter.WithHandlerMetrics(metrics),
		exporter.WithHandlerTracerProvider(tracerProvider),
	)
	if tracerProvider != nil {
		scrapeHandler = extractTraceContextMiddleware(scrapeHandler)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Server.URI, scrapeHandler)
	mux.Handle("/health", exporter.NewHealthHandler(tokens))
	mux.Handle(selfMetricsPath, promhttp.HandlerFor(s.selfRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", exporter.RootHandler)

	s.watcher = config.NewWatcher(s.configPath, s.ReloadConfig)
	if err := s.watcher.Start(); err != nil {
		log.Warnf("File watcher setup failed: %v. Reload only on SIGHUP.", err)
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.GetServerAddress(),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Infof("Starting %s on %s%s", programName, s.cfg.GetServerAddress(), s.cfg.Server.URI)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	return nil
}

// ReloadConfig re-reads the configuration file. New credentials apply to the
// next login; tokens already cached stay in use until an appliance rejects them.
// The log level is re-applied unless --debug is set. Server and OpenTelemetry
// settings need a restart.
func (s *Server) ReloadConfig(configPath string) error {
	previous := s.safeCfg.Get()
	changed, err := s.safeCfg.ReloadConfig(configPath)
	if err != nil {
		return err
	}
	current := s.safeCfg.Get()

	if !debug {
		logging.SetLevel(current.Log.LogLevel)
	}
	if current.GetServerAddress() != previous.GetServerAddress() || current.Server.URI != previous.Server.URI {
		log.Warn("Server address or URI changed; restart the exporter to apply")
	}
	if current.OpenTelemetry != previous.OpenTelemetry {
		log.Warn("OpenTelemetry settings changed; restart the exporter to apply")
	}
	logging.LogInfo(fmt.Sprintf("Configuration reloaded: %d appliances, %d changed", len(current.Hosts), len(changed)))
	return nil
}

// ErrorChan returns the channel for receiving server errors.
func (s *Server) ErrorChan() <-chan error {
	return s.serverErrChan
}

// Shutdown stops the server components in order:
//  1. Config watcher (no reload during shutdown)
//  2. HTTP server (no new scrapes accepted, in-flight scrapes finish)
//  3. OpenTelemetry (flush pending spans)
//  4. AXAPI client (drain connections)
//
// Returns the first error encountered.
func (s *Server) Shutdown() error {
	var errs []error

	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			log.Warnf("Config watcher close warning: %v", err)
		}
	}

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down HTTP server...")
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down telemetry...")
		if err := s.telemetryManager.Shutdown(ctx); err != nil {
			log.Warnf("Telemetry shutdown warning: %v", err)
		}
	}

	if s.client != nil {
		log.Info("Closing AXAPI client connections...")
		if err := s.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("client close: %w", err))
		}
	}

	close(s.serverErrChan)

	if len(errs) > 0 {
		log.Errorf("Shutdown completed with %d errors", len(errs))
		return errs[0]
	}

	log.Info("Server stopped gracefully")
	return nil
}

// extractTraceContextMiddleware continues traces started by the caller, e.g. a
// Prometheus server or proxy sending W3C traceparent headers.
func extractTraceContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// setupLogging initializes logging to stdout and the configured log file.
// debugMode overrides the configured level with DEBUG.
func setupLogging(cfg *models.Config, debugMode bool) error {
	if err := logging.PrepareLogs(cfg.Log.LogFile, cfg.Log.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if debugMode {
		log.SetLevel(log.DebugLevel)
		log.Debug("Debug mode enabled")
	}

	return nil
}

// waitForShutdown blocks until SIGINT/SIGTERM or a server error.
// Returns the server error, or nil for a signal.
func waitForShutdown(serverErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		log.Infof("Received signal %v, initiating graceful shutdown...", sig)
		return nil
	case err := <-serverErr:
		return err
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Prometheus exporter for A10 Networks appliances",
		Long:    "A10 Exporter fetches AXAPI stats from A10 appliances and exposes them in Prometheus format",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := utils.LoadConfig(configFile)
			if err != nil {
				return err
			}

			if err := setupLogging(cfg, debug); err != nil {
				return err
			}

			logging.LogInfo(fmt.Sprintf("Starting %s %s...", programName, version))
			log.Infof("Configured appliances: %v", cfg.HostNames())
			if debug {
				for _, host := range cfg.HostNames() {
					creds, _ := cfg.Credentials(host)
					log.Debugf("Appliance %s: user %q, password %s", host, creds.Username, models.MaskPassword(creds.Password))
				}
			}

			server := NewServer(cfg, configFile)
			if err := server.Start(); err != nil {
				return err
			}

			if err := waitForShutdown(server.ErrorChan()); err != nil {
				log.Errorf("Server error: %v", err)
			}

			return server.Shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.json", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
