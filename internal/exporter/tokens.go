package exporter

import (
	"context"
	"errors"
	"sync"

	"github.com/axapi-tools/a10_exporter/internal/telemetry"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TokenOption configures optional TokenCache settings.
type TokenOption func(*TokenCache)

// WithTokenMetrics records logins on m.
func WithTokenMetrics(m *ExporterMetrics) TokenOption {
	return func(tc *TokenCache) {
		tc.metrics = m
	}
}

// WithTokenTracerProvider sets the TracerProvider used for token spans.
func WithTokenTracerProvider(tp trace.TracerProvider) TokenOption {
	return func(tc *TokenCache) {
		tc.tracing = NewTracerWrapper(tp, "a10-exporter/tokens")
	}
}

// TokenCache keeps one AXAPI token per appliance for the life of the process.
//
// Tokens have no known expiry. They are replaced only when a caller forces a
// refresh after the appliance rejected the cached one.
//
// A single mutex serializes every Token call, for all appliances, including the
// login round trip. At most one login is in flight process-wide, so two scrapes
// can never race to log in to the same appliance; the price is that a slow
// login to one appliance delays token lookups for all the others.
type TokenCache struct {
	mu      sync.Mutex
	tokens  *cache.Cache
	auth    Authenticator
	metrics *ExporterMetrics
	tracing *TracerWrapper
}

// NewTokenCache creates an empty cache that logs in through auth.
func NewTokenCache(auth Authenticator, opts ...TokenOption) *TokenCache {
	tc := &TokenCache{
		tokens:  cache.New(cache.NoExpiration, 0),
		auth:    auth,
		tracing: NewTracerWrapper(nil, ""),
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// Token returns the token for host. A cached token is returned without network
// I/O unless forceRefresh is set; otherwise a login is performed and its result
// overwrites any previous token.
//
// On login failure the error is logged and returned with an empty token. The
// previously cached token, if any, is left in place.
func (tc *TokenCache) Token(ctx context.Context, host string, forceRefresh bool) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if !forceRefresh {
		if cached, found := tc.tokens.Get(host); found {
			return cached.(string), nil
		}
	}

	ctx, span := tc.tracing.StartSpan(ctx, "axapi.token", trace.SpanKindInternal,
		attribute.String(telemetry.AttrAxapiHost, host),
		attribute.Bool(telemetry.AttrTokenRefresh, forceRefresh))
	defer span.End()

	token, err := tc.auth.Authenticate(ctx, host)
	if err != nil || token == "" {
		// An unconfigured host never reached the appliance; it must not add a series.
		if !errors.Is(err, ErrHostNotConfigured) {
			tc.metrics.ObserveLogin(host, false)
		}
		log.WithFields(log.Fields{"host": host, "forced": forceRefresh}).Errorf("Failed to get token: %v", err)
		if err == nil {
			err = ErrInvalidCredentials
		}
		span.RecordError(err)
		return "", err
	}

	tc.metrics.ObserveLogin(host, true)
	tc.tokens.Set(host, token, cache.NoExpiration)
	log.WithFields(log.Fields{"host": host, "forced": forceRefresh}).Debug("Stored new AXAPI token")
	return token, nil
}

// Cached returns the stored token for host without logging in.
func (tc *TokenCache) Cached(host string) (string, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if cached, found := tc.tokens.Get(host); found {
		return cached.(string), true
	}
	return "", false
}

// Len returns the number of appliances holding a token.
func (tc *TokenCache) Len() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.tokens.ItemCount()
}
