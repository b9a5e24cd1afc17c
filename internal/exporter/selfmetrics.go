package exporter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const selfMetricsNamespace = "a10_exporter"

// Scrape results recorded by ExporterMetrics.
const (
	ResultSuccess       = "success"
	ResultMissingParam  = "missing_param"
	ResultConfigError   = "config_error"
	ResultURINotFound   = "uri_not_found"
	ResultUnauthorized  = "unauthorized"
	ResultUpstreamError = "upstream_error"
	ResultMalformed     = "malformed"
	ResultRecordError   = "record_error"
)

// Login results recorded by ExporterMetrics.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// ExporterMetrics holds the exporter's own operational metrics. They live in a
// registry of their own so they never mix with the AXAPI gauges served on /metrics.
//
// A nil *ExporterMetrics is valid and records nothing.
type ExporterMetrics struct {
	Scrapes        *prometheus.CounterVec
	ScrapeDuration *prometheus.HistogramVec
	Logins         *prometheus.CounterVec
	TokenRefreshes prometheus.Counter
}

// NewExporterMetrics registers the exporter's own metrics with reg.
// gaugeCount is sampled at collection time for the a10_exporter_gauges gauge; it may be nil.
func NewExporterMetrics(reg prometheus.Registerer, gaugeCount func() float64) *ExporterMetrics {
	factory := promauto.With(reg)

	m := &ExporterMetrics{
		Scrapes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: selfMetricsNamespace,
			Name:      "scrapes_total",
			Help:      "Total number of /metrics requests by result",
		}, []string{"result"}),
		ScrapeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: selfMetricsNamespace,
			Name:      "scrape_duration_seconds",
			Help:      "Duration of /metrics requests including the AXAPI round trips",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: selfMetricsNamespace,
			Name:      "logins_total",
			Help:      "Total number of AXAPI login attempts by appliance and result",
		}, []string{"host", "result"}),
		TokenRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: selfMetricsNamespace,
			Name:      "token_refreshes_total",
			Help:      "Total number of forced token refreshes after an unauthorized stats response",
		}),
	}

	if gaugeCount != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: selfMetricsNamespace,
			Name:      "gauges",
			Help:      "Number of distinct AXAPI gauges created since start",
		}, gaugeCount)
	}

	return m
}

// ObserveScrape counts a finished scrape and its duration.
func (m *ExporterMetrics) ObserveScrape(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Scrapes.WithLabelValues(result).Inc()
	m.ScrapeDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveLogin counts a login attempt against host.
func (m *ExporterMetrics) ObserveLogin(host string, ok bool) {
	if m == nil {
		return
	}
	result := LoginSuccess
	if !ok {
		result = LoginFailure
	}
	m.Logins.WithLabelValues(host, result).Inc()
}

// ObserveTokenRefresh counts a forced refresh.
func (m *ExporterMetrics) ObserveTokenRefresh() {
	if m == nil {
		return
	}
	m.TokenRefreshes.Inc()
}
