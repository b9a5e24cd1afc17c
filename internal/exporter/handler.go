package exporter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/axapi-tools/a10_exporter/internal/telemetry"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Query parameters of the scrape endpoint.
const (
	ParamHostIP      = "host_ip"
	ParamAPIEndpoint = "api_endpoint"
	ParamAPIName     = "api_name"
)

// UsageMessage is the body served on the root path.
const UsageMessage = "Please provide /metrics?query-params!"

// StatsSource fetches the stats of one AXAPI object. *StatsFetcher implements it.
type StatsSource interface {
	Fetch(ctx context.Context, host, endpoint string) (*StatsResult, error)
}

// HandlerOption configures optional ScrapeHandler settings.
type HandlerOption func(*ScrapeHandler)

// WithHandlerMetrics records scrape results on m.
func WithHandlerMetrics(m *ExporterMetrics) HandlerOption {
	return func(h *ScrapeHandler) {
		h.metrics = m
	}
}

// WithHandlerTracerProvider sets the TracerProvider used for scrape spans.
func WithHandlerTracerProvider(tp trace.TracerProvider) HandlerOption {
	return func(h *ScrapeHandler) {
		h.tracing = NewTracerWrapper(tp, "a10-exporter/scrape")
	}
}

// ScrapeHandler serves GET /metrics?host_ip=<host>&api_endpoint=<path>&api_name=<name>.
//
// It fetches the stats of api_endpoint from host_ip, records them under the
// display category derived from api_name, and writes the text exposition of
// every gauge that category has reported.
//
// Failures never produce an HTTP error status: a missing parameter or a failed
// fetch yields an empty body, and a malformed stats document yields the line
// "<api_endpoint> has something missing.".
type ScrapeHandler struct {
	source   StatsSource
	registry *MetricRegistry
	metrics  *ExporterMetrics
	tracing  *TracerWrapper
}

// NewScrapeHandler creates a handler fetching through source and recording into registry.
func NewScrapeHandler(source StatsSource, registry *MetricRegistry, opts ...HandlerOption) *ScrapeHandler {
	h := &ScrapeHandler{
		source:   source,
		registry: registry,
		tracing:  NewTracerWrapper(nil, ""),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *ScrapeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query := r.URL.Query()
	host := query.Get(ParamHostIP)
	endpoint := query.Get(ParamAPIEndpoint)
	apiName := query.Get(ParamAPIName)

	if host == "" || endpoint == "" || apiName == "" {
		log.WithFields(log.Fields{
			ParamHostIP:      host,
			ParamAPIEndpoint: endpoint,
			ParamAPIName:     apiName,
		}).Error("Request is missing host_ip, api_endpoint or api_name")
		h.writeText(w, "")
		h.metrics.ObserveScrape(ResultMissingParam, time.Since(start))
		return
	}

	category := DisplayCategory(apiName)
	ctx, span := h.tracing.StartSpan(r.Context(), "a10.scrape", trace.SpanKindServer,
		attribute.String(telemetry.AttrAxapiHost, host),
		attribute.String(telemetry.AttrAxapiEndpoint, endpoint),
		attribute.String(telemetry.AttrAxapiCategory, category))
	defer span.End()

	body, result := h.scrape(ctx, host, endpoint, category)

	span.SetAttributes(
		attribute.String(telemetry.AttrScrapeStatus, result),
		attribute.Float64(telemetry.AttrScrapeDurationMS, float64(time.Since(start).Milliseconds())),
	)
	if result == ResultSuccess {
		span.SetStatus(codes.Ok, "")
		w.Header().Set(HeaderContentType, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		_, _ = fmt.Fprint(w, body)
	} else {
		span.SetStatus(codes.Error, result)
		h.writeText(w, body)
	}
	h.metrics.ObserveScrape(result, time.Since(start))
}

// scrape runs fetch, record and serialize, returning the body to write and the result label.
func (h *ScrapeHandler) scrape(ctx context.Context, host, endpoint, category string) (string, string) {
	stats, err := h.source.Fetch(ctx, host, endpoint)
	if err != nil {
		switch {
		case errors.Is(err, ErrMalformedResponse):
			return fmt.Sprintf("%s has something missing.", endpoint), ResultMalformed
		case errors.Is(err, ErrHostNotConfigured):
			return "", ResultConfigError
		case errors.Is(err, ErrURINotFound):
			return "", ResultURINotFound
		case errors.Is(err, ErrUnauthorized):
			return "", ResultUnauthorized
		default:
			return "", ResultUpstreamError
		}
	}

	fragments, err := h.registry.Record(category, stats.Stats)
	if err != nil {
		log.WithFields(log.Fields{"host": host, "category": category}).Errorf("Failed to serialize metrics: %v", err)
		return "", ResultRecordError
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int(telemetry.AttrScrapeFieldCount, len(stats.Stats)),
		attribute.Int(telemetry.AttrScrapeMetricCount, len(fragments)),
	)
	log.WithFields(log.Fields{
		"host":     host,
		"endpoint": endpoint,
		"category": category,
		"fields":   len(stats.Stats),
	}).Debug("Scrape completed")

	return strings.Join(fragments, ""), ResultSuccess
}

func (h *ScrapeHandler) writeText(w http.ResponseWriter, body string) {
	w.Header().Set(HeaderContentType, "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, body)
}

// RootHandler serves the usage message on "/" and 404 on any other unmatched path.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set(HeaderContentType, "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, UsageMessage)
}
