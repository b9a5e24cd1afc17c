package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/axapi-tools/a10_exporter/internal/logging"
	"github.com/axapi-tools/a10_exporter/internal/telemetry"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const responsePreviewLen = 200

// StatsResult is a decoded AXAPI stats document.
type StatsResult struct {
	Object string             // First top-level key of the document, e.g. "virtual-server"
	Stats  map[string]float64 // Numeric fields of the object's "stats" map, names as sent by the appliance
	Token  string             // Token the successful request was sent with
}

// FieldNames returns the stat field names in sorted order.
func (r *StatsResult) FieldNames() []string {
	names := make([]string, 0, len(r.Stats))
	for name := range r.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// axapiError is the error document AXAPI returns on failure:
//
//	{"response": {"status": "fail", "err": {"code": 1023, "msg": "..."}}}
type axapiError struct {
	Response *struct {
		Status string `json:"status"`
		Err    *struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		} `json:"err"`
	} `json:"response"`
}

// FetcherOption configures optional StatsFetcher settings.
type FetcherOption func(*StatsFetcher)

// WithFetcherMetrics records forced token refreshes on m.
func WithFetcherMetrics(m *ExporterMetrics) FetcherOption {
	return func(f *StatsFetcher) {
		f.metrics = m
	}
}

// WithFetcherTracerProvider sets the TracerProvider used for fetch spans.
func WithFetcherTracerProvider(tp trace.TracerProvider) FetcherOption {
	return func(f *StatsFetcher) {
		f.tracing = NewTracerWrapper(tp, "a10-exporter/stats")
	}
}

// StatsFetcher retrieves the stats of one AXAPI object, re-authenticating once
// when the appliance rejects the cached token.
type StatsFetcher struct {
	client  ApplianceClient
	tokens  TokenSource
	metrics *ExporterMetrics
	tracing *TracerWrapper
}

// NewStatsFetcher creates a fetcher sending requests through client with tokens from tokens.
func NewStatsFetcher(client ApplianceClient, tokens TokenSource, opts ...FetcherOption) *StatsFetcher {
	f := &StatsFetcher{
		client:  client,
		tokens:  tokens,
		tracing: NewTracerWrapper(nil, ""),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the stats of endpoint on host.
//
// A host missing from the configuration fails before any stats request. Any
// other login failure is logged by the token cache and the request is sent
// with an empty token; the appliance then answers unauthorized and the usual
// refresh path runs.
//
// On an unauthorized answer the token is force-refreshed and the request is
// retried exactly once with the new token. Errors wrap ErrURINotFound,
// ErrUnauthorized, ErrUpstream, ErrMalformedResponse or ErrHostNotConfigured.
func (f *StatsFetcher) Fetch(ctx context.Context, host, endpoint string) (*StatsResult, error) {
	ctx, span := f.tracing.StartSpan(ctx, "axapi.fetch_stats", trace.SpanKindInternal,
		attribute.String(telemetry.AttrAxapiHost, host),
		attribute.String(telemetry.AttrAxapiEndpoint, endpoint))
	defer span.End()

	token, err := f.tokens.Token(ctx, host, false)
	if errors.Is(err, ErrHostNotConfigured) {
		logging.LogError(fmt.Sprintf(telemetry.ErrHostNotConfiguredTemplate, host, host))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if IsAuthError(err) {
		log.WithFields(log.Fields{"host": host, "endpoint": endpoint}).
			Warn("Login failed, sending the stats request without a token")
	}

	result, err := f.attempt(ctx, host, endpoint, token, 1)
	if !errors.Is(err, ErrUnauthorized) {
		return f.finish(span, result, err)
	}

	f.metrics.ObserveTokenRefresh()
	token, refreshErr := f.tokens.Token(ctx, host, true)
	if refreshErr != nil || token == "" {
		log.WithFields(log.Fields{"host": host, "endpoint": endpoint}).
			Error("Token refresh failed, giving up on this scrape")
		return f.finish(span, nil, fmt.Errorf("%w: %s: token refresh failed: %v", ErrUnauthorized, host, refreshErr))
	}

	result, err = f.attempt(ctx, host, endpoint, token, 2)
	return f.finish(span, result, err)
}

func (f *StatsFetcher) finish(span trace.Span, result *StatsResult, err error) (*StatsResult, error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.AttrScrapeFieldCount, len(result.Stats)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// attempt sends one stats request and classifies the answer.
func (f *StatsFetcher) attempt(ctx context.Context, host, endpoint, token string, attempt int) (*StatsResult, error) {
	fields := log.Fields{"host": host, "endpoint": endpoint, "attempt": attempt}

	resp, err := f.client.GetStats(ctx, host, endpoint, token)
	if err != nil {
		log.WithFields(fields).Errorf("Stats request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if msg, isErr := errorMessage(resp); isErr {
		err := classifyError(msg, resp.StatusCode)
		trace.SpanFromContext(ctx).AddEvent("axapi.error", trace.WithAttributes(
			attribute.Int(telemetry.AttrAxapiAttempt, attempt),
			attribute.String(telemetry.AttrAxapiErrorMsg, msg),
		))
		switch {
		case errors.Is(err, ErrURINotFound):
			log.WithFields(fields).Errorf("URI not found: %s", StatsURL(host, endpoint))
		case errors.Is(err, ErrUnauthorized):
			if attempt == 1 {
				log.WithFields(fields).Warnf("Appliance rejected token (%q), forcing a new login", msg)
			} else {
				log.WithFields(fields).Errorf("Appliance rejected refreshed token (%q)", msg)
			}
		default:
			log.WithFields(fields).Errorf("Unknown error message: %q (HTTP %d)", msg, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s%s: %s", err, host, endpoint, msg)
	}

	object, stats, err := decodeStats(resp.Body)
	if err != nil {
		log.WithFields(fields).Error(fmt.Sprintf(telemetry.ErrMalformedResponseTemplate,
			resp.StatusCode, StatsURL(host, endpoint), preview(resp.Body)))
		return nil, fmt.Errorf("%w: %s%s: %v", ErrMalformedResponse, host, endpoint, err)
	}

	return &StatsResult{Object: object, Stats: stats, Token: token}, nil
}

// errorMessage extracts the AXAPI error message. A 401 without an error
// document still counts as an error, with an empty message.
func errorMessage(resp *RawResponse) (string, bool) {
	var doc axapiError
	if err := json.Unmarshal(resp.Body, &doc); err == nil && doc.Response != nil && doc.Response.Err != nil {
		return doc.Response.Err.Msg, true
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return "", true
	}
	return "", false
}

// classifyError maps an AXAPI error message to a sentinel error.
func classifyError(msg string, statusCode int) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "uri not found"):
		return ErrURINotFound
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "not authorized"):
		return ErrUnauthorized
	case msg == "" && statusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return ErrUpstream
	}
}

// decodeStats reads {"<object>": {"stats": {...}}}. Only the first top-level key
// is considered. A missing "stats" member yields an empty map; values that are
// not numbers are skipped.
func decodeStats(body []byte) (string, map[string]float64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", nil, errors.New("document is not a JSON object")
	}
	if !dec.More() {
		return "", nil, errors.New("document has no top-level key")
	}

	tok, err = dec.Token()
	if err != nil {
		return "", nil, fmt.Errorf("invalid JSON: %w", err)
	}
	object, _ := tok.(string)

	var inner map[string]json.RawMessage
	if err := dec.Decode(&inner); err != nil || inner == nil {
		return object, nil, fmt.Errorf("%q is not an object", object)
	}

	stats := make(map[string]float64)
	raw, ok := inner["stats"]
	if !ok {
		return object, stats, nil
	}

	var fields map[string]interface{}
	statsDec := json.NewDecoder(bytes.NewReader(raw))
	statsDec.UseNumber()
	if err := statsDec.Decode(&fields); err != nil || fields == nil {
		return object, nil, fmt.Errorf("%q stats is not an object", object)
	}

	for name, value := range fields {
		num, ok := value.(json.Number)
		if !ok {
			log.WithFields(log.Fields{"object": object, "field": name}).Debug("Skipping non-numeric stat field")
			continue
		}
		v, err := num.Float64()
		if err != nil {
			log.WithFields(log.Fields{"object": object, "field": name}).Debugf("Skipping stat field: %v", err)
			continue
		}
		stats[name] = v
	}
	return object, stats, nil
}

func preview(body []byte) string {
	if len(body) > responsePreviewLen {
		return string(body[:responsePreviewLen]) + "..."
	}
	return string(body)
}
