package exporter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/axapi-tools/a10_exporter/internal/models"
	"github.com/axapi-tools/a10_exporter/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
)

// credentialsFor returns a credential store holding one login per host.
func credentialsFor(hosts map[string]models.HostCredentials) *models.SafeConfig {
	cfg := &models.Config{Hosts: hosts}
	cfg.SetDefaults()
	return models.NewSafeConfig(cfg)
}

// applianceCredentials returns a credential store knowing the mock appliances
// with the default test login.
func applianceCredentials(appliances ...*testutil.MockAppliance) *models.SafeConfig {
	hosts := make(map[string]models.HostCredentials, len(appliances))
	for _, a := range appliances {
		hosts[a.Host()] = models.HostCredentials{Username: testUsername, Password: testPassword}
	}
	return credentialsFor(hosts)
}

// testStack is the full scrape pipeline wired against mock appliances.
type testStack struct {
	client   *AxapiClient
	tokens   *TokenCache
	fetcher  *StatsFetcher
	registry *MetricRegistry
	handler  *ScrapeHandler
	metrics  *ExporterMetrics
	promReg  *prometheus.Registry
}

func newTestStack(t *testing.T, creds CredentialStore) *testStack {
	t.Helper()
	promReg := prometheus.NewRegistry()
	registry := NewMetricRegistry()
	metrics := NewExporterMetrics(promReg, func() float64 { return float64(registry.Len()) })

	client := NewAxapiClient(creds)
	tokens := NewTokenCache(client, WithTokenMetrics(metrics))
	fetcher := NewStatsFetcher(client, tokens, WithFetcherMetrics(metrics))
	t.Cleanup(func() { _ = client.Close() })

	return &testStack{
		client:   client,
		tokens:   tokens,
		fetcher:  fetcher,
		registry: registry,
		handler:  NewScrapeHandler(fetcher, registry, WithHandlerMetrics(metrics)),
		metrics:  metrics,
		promReg:  promReg,
	}
}

// scrape sends one /metrics request through the stack's handler.
func (s *testStack) scrape(host, endpoint, apiName string) *httptest.ResponseRecorder {
	return serveScrape(s.handler, host, endpoint, apiName)
}

func serveScrape(h http.Handler, host, endpoint, apiName string) *httptest.ResponseRecorder {
	query := url.Values{}
	for _, p := range [][2]string{{ParamHostIP, host}, {ParamAPIEndpoint, endpoint}, {ParamAPIName, apiName}} {
		if p[1] != "" {
			query.Set(p[0], p[1])
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// fakeAuthenticator hands out numbered tokens and counts logins per host.
type fakeAuthenticator struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
	empty bool
}

func newFakeAuthenticator() *fakeAuthenticator {
	return &fakeAuthenticator{calls: make(map[string]int)}
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, host string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[host]++
	if f.err != nil {
		return "", f.err
	}
	if f.empty {
		return "", nil
	}
	return fmt.Sprintf("%s%s-%d", tokenPrefix, host, f.calls[host]), nil
}

func (f *fakeAuthenticator) Calls(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[host]
}

func (f *fakeAuthenticator) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// fakeSource is a StatsSource returning a fixed result.
type fakeSource struct {
	mu     sync.Mutex
	calls  int
	result *StatsResult
	err    error
}

func (f *fakeSource) Fetch(_ context.Context, _, _ string) (*StatsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeTokens is a TokenSource returning a fixed token or error.
type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) Token(_ context.Context, _ string, _ bool) (string, error) {
	return f.token, f.err
}
