// Package exporter bridges A10 AXAPI statistics to Prometheus. It handles the
// AXAPI login exchange, per-appliance token caching, stats retrieval with a
// single re-authentication retry, and the dynamic gauge registry served on
// each scrape.
package exporter

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axapi-tools/a10_exporter/internal/telemetry"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultAuthTimeout = 5 * time.Second   // Connect + response timeout for the login call
	contentType        = "application/json" // Content type for API requests
	tokenScheme        = "A10"              // Authorization scheme prefix for AXAPI tokens

	apiBasePath = "/axapi/v3"
	authPath    = apiBasePath + "/auth"
	statsSuffix = "/stats"

	// Connection pool configuration
	maxIdleConns        = 100              // Total idle connections across all appliances
	maxIdleConnsPerHost = 10               // Idle connections per appliance
	idleConnTimeout     = 90 * time.Second // Timeout for idle connections
)

// HTTP header names used in AXAPI requests.
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
)

// ClientOption configures optional AxapiClient settings.
type ClientOption func(*clientOptions)

type clientOptions struct {
	tracerProvider trace.TracerProvider
	authTimeout    time.Duration
	statsTimeout   time.Duration
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		authTimeout: defaultAuthTimeout,
	}
}

// WithTracerProvider sets the TracerProvider for distributed tracing.
// If not provided, tracing operations use a noop provider (no overhead).
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(o *clientOptions) {
		o.tracerProvider = tp
	}
}

// WithAuthTimeout overrides the 5 second login timeout.
func WithAuthTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.authTimeout = d
		}
	}
}

// WithStatsTimeout bounds each stats request. Zero leaves the request bounded
// only by the caller's context.
func WithStatsTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.statsTimeout = d
	}
}

// loginRequest is the body of POST /axapi/v3/auth.
type loginRequest struct {
	Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"credentials"`
}

// loginResponse is the part of the login answer the exporter uses.
type loginResponse struct {
	AuthResponse *struct {
		Signature string `json:"signature"`
	} `json:"authresponse"`
}

// AxapiClient handles HTTPS communication with A10 appliances.
// One client serves every configured appliance; the appliance is chosen per call.
//
// Certificate verification is disabled: appliances are expected to present
// self-signed certificates on an internal management network.
type AxapiClient struct {
	client       *resty.Client
	creds        CredentialStore
	tracing      *TracerWrapper
	authTimeout  time.Duration
	statsTimeout time.Duration

	// Connection tracking for graceful shutdown
	mu         sync.Mutex    // Protects closed and closeChan
	activeReqs int32         // Count of active requests (atomic)
	closed     bool          // Whether Close() has been called
	closeChan  chan struct{} // Signaled when all requests complete
}

// NewAxapiClient creates a new AXAPI client that looks credentials up in creds.
//
// The client is configured with:
//   - TLS verification disabled (self-signed appliance certificates)
//   - No automatic retries: the only retry is the re-authentication done by StatsFetcher
//   - 5 second login timeout, optional stats timeout
//   - Optional OpenTelemetry tracer via options
//
// Example:
//
//	client := NewAxapiClient(safeCfg, WithTracerProvider(tp))
//	defer client.Close()
func NewAxapiClient(creds CredentialStore, opts ...ClientOption) *AxapiClient {
	options := defaultClientOptions()
	for _, opt := range opts {
		opt(&options)
	}

	log.Warn("TLS certificate verification is disabled for AXAPI connections (self-signed appliances)")

	client := resty.New().
		SetRetryCount(0).
		SetLogger(log.StandardLogger())

	httpClient := client.GetClient()
	httpClient.Transport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // appliances use self-signed certificates
			MinVersion:         tls.VersionTLS12,
		},
	}

	return &AxapiClient{
		client:       client,
		creds:        creds,
		tracing:      NewTracerWrapper(options.tracerProvider, "a10-exporter/axapi-client"),
		authTimeout:  options.authTimeout,
		statsTimeout: options.statsTimeout,
	}
}

// Authenticate performs the AXAPI login exchange for host and returns the
// Authorization header value ("A10 <signature>").
//
// Returns an error wrapping:
//   - ErrHostNotConfigured if host has no credentials
//   - ErrAuthTimeout if the appliance did not answer within the auth timeout (no retry)
//   - ErrAuthRequest for other transport failures
//   - ErrInvalidCredentials if the response carries no signature
//   - ErrClientClosed after Close
//
// Empty usernames or passwords are only warned about: the appliance decides.
func (c *AxapiClient) Authenticate(ctx context.Context, host string) (string, error) {
	creds, ok := c.creds.Credentials(host)
	if !ok {
		log.WithField("host", host).Error("Host credentials not found in creds config")
		return "", fmt.Errorf("%w: %s", ErrHostNotConfigured, host)
	}
	if creds.Username == "" {
		log.WithField("host", host).Warn("username not provided.")
	}
	if creds.Password == "" {
		log.WithField("host", host).Warn("password not provided.")
	}

	if err := c.beginRequest(); err != nil {
		return "", err
	}
	defer c.endRequest()

	url := fmt.Sprintf("https://%s%s", host, authPath)
	ctx, span := c.tracing.StartSpan(ctx, "axapi.auth", trace.SpanKindClient,
		attribute.String(telemetry.AttrAxapiHost, host))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	var body loginRequest
	body.Credentials.Username = creds.Username
	body.Credentials.Password = creds.Password

	startTime := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.injectTraceContext(ctx, map[string]string{HeaderContentType: contentType})).
		SetBody(body).
		Post(url)
	if err != nil {
		if isTimeout(err) {
			log.WithField("host", host).Errorf("Connection to %s timed out. (connect timeout=%s)", host, c.authTimeout)
			err = fmt.Errorf("%w: %s after %s", ErrAuthTimeout, host, c.authTimeout)
		} else {
			err = fmt.Errorf("%w: %s: %v", ErrAuthRequest, host, err)
		}
		c.recordError(span, err)
		return "", err
	}
	c.recordHTTPAttributes(span, http.MethodPost, url, resp.StatusCode(), int64(len(resp.Body())), time.Since(startTime))

	var parsed loginResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil || parsed.AuthResponse == nil || parsed.AuthResponse.Signature == "" {
		log.WithField("host", host).Error("Host credentials are not correct")
		err := fmt.Errorf("%w: %s (HTTP %d)", ErrInvalidCredentials, host, resp.StatusCode())
		c.recordError(span, err)
		return "", err
	}

	span.SetStatus(codes.Ok, "")
	return tokenScheme + " " + parsed.AuthResponse.Signature, nil
}

// GetStats sends GET https://<host>/axapi/v3<endpoint>/stats with a freshly built
// header set carrying token. The body is returned undecoded whatever the status code.
func (c *AxapiClient) GetStats(ctx context.Context, host, endpoint, token string) (*RawResponse, error) {
	if err := c.beginRequest(); err != nil {
		return nil, err
	}
	defer c.endRequest()

	url := StatsURL(host, endpoint)
	ctx, span := c.tracing.StartSpan(ctx, "axapi.stats", trace.SpanKindClient,
		attribute.String(telemetry.AttrAxapiHost, host),
		attribute.String(telemetry.AttrAxapiEndpoint, endpoint))
	defer span.End()

	if c.statsTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.statsTimeout)
		defer cancel()
	}

	headers := map[string]string{
		HeaderContentType:   contentType,
		HeaderAuthorization: token,
	}

	startTime := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.injectTraceContext(ctx, headers)).
		Get(url)
	if err != nil {
		err = fmt.Errorf("HTTP request to %s failed: %w", url, err)
		c.recordError(span, err)
		return nil, err
	}

	c.recordHTTPAttributes(span, http.MethodGet, url, resp.StatusCode(), int64(len(resp.Body())), time.Since(startTime))
	span.SetStatus(codes.Ok, "")

	return &RawResponse{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// StatsURL builds the stats URL for an AXAPI object path.
// A missing leading slash and a trailing slash on endpoint are tolerated.
//
// Example: StatsURL("10.0.0.1", "/slb/virtual-server/vs1")
// returns "https://10.0.0.1/axapi/v3/slb/virtual-server/vs1/stats".
func StatsURL(host, endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return fmt.Sprintf("https://%s%s%s%s", host, apiBasePath, endpoint, statsSuffix)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *AxapiClient) beginRequest() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	atomic.AddInt32(&c.activeReqs, 1)
	return nil
}

func (c *AxapiClient) endRequest() {
	if atomic.AddInt32(&c.activeReqs, -1) == 0 {
		c.mu.Lock()
		if c.closed && c.closeChan != nil {
			close(c.closeChan)
			c.closeChan = nil
		}
		c.mu.Unlock()
	}
}

// recordHTTPAttributes records HTTP semantic convention attributes on the span.
func (c *AxapiClient) recordHTTPAttributes(span trace.Span, method, url string, statusCode int, responseSize int64, duration time.Duration) {
	span.SetAttributes(
		attribute.String(telemetry.AttrHTTPMethod, method),
		attribute.String(telemetry.AttrHTTPURL, url),
		attribute.Int(telemetry.AttrHTTPStatusCode, statusCode),
		attribute.Int64(telemetry.AttrHTTPResponseContentLength, responseSize),
		attribute.Float64(telemetry.AttrHTTPDurationMS, float64(duration.Milliseconds())),
	)
}

// recordError records an error on the span and sets the span status to error.
func (c *AxapiClient) recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(telemetry.AttrError, err.Error()))
}

// injectTraceContext injects W3C trace context into the outgoing headers.
// The input map is not modified; a new map is returned for every request.
func (c *AxapiClient) injectTraceContext(ctx context.Context, headers map[string]string) map[string]string {
	carrier := propagation.MapCarrier{}
	for k, v := range headers {
		carrier.Set(k, v)
	}

	otel.GetTextMapPropagator().Inject(ctx, carrier)

	result := make(map[string]string, len(carrier))
	for k, v := range carrier {
		result[k] = v
	}
	return result
}

// Close releases resources associated with the HTTP client.
// It waits for active requests to complete (up to 30 seconds)
// before closing connections.
//
// Returns an error if the client is already closed.
func (c *AxapiClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.CloseWithContext(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// CloseWithContext releases resources with explicit timeout control.
//
// Returns an error if:
//   - The client is already closed
//   - Context is cancelled while waiting for active requests
func (c *AxapiClient) CloseWithContext(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w: already closed", ErrClientClosed)
	}
	c.closed = true

	activeCount := atomic.LoadInt32(&c.activeReqs)
	if activeCount > 0 {
		c.closeChan = make(chan struct{})
		ch := c.closeChan // Store local reference to avoid race
		c.mu.Unlock()

		select {
		case <-ch:
			log.Debug("All active requests completed during shutdown")
		case <-ctx.Done():
			log.Warnf("Context cancelled while waiting for %d active requests", activeCount)
			return ctx.Err()
		}
	} else {
		c.mu.Unlock()
	}

	c.client.GetClient().CloseIdleConnections()
	return nil
}
