// Package testutil provides shared test utilities and helper functions.
// This file contains the fluent mock appliance builder and common test helpers
// to reduce duplication across test files and improve test maintainability.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockApplianceBuilder provides a fluent interface for creating mock AXAPI appliances.
// The resulting server speaks TLS with a self-signed certificate, like a real appliance.
//
// Example usage:
//
//	appliance := testutil.NewMockAppliance().
//	    WithLogin("admin", "a10", "sig-1", "sig-2").
//	    WithStats("/slb/server/s1", "server", map[string]interface{}{"total-conn": 10}).
//	    Build()
//	defer appliance.Close()
type MockApplianceBuilder struct {
	username          string
	password          string
	signatures        []string
	loginDelay        time.Duration
	unauthorizedMsg   string
	handlers          map[string]http.HandlerFunc
	stats             map[string]statsResponse
	acceptAnyToken    bool
	requireLoginFirst bool
}

type statsResponse struct {
	topKey string
	stats  interface{}
}

// MockAppliance is a running mock AXAPI appliance.
type MockAppliance struct {
	*httptest.Server

	mu          sync.Mutex
	validTokens map[string]bool
	signatures  []string
	issued      int

	logins       int32
	statsCalls   int32
	lastAuthSeen atomic.Value
}

// NewMockAppliance creates a new MockApplianceBuilder with default credentials
// (TestUsername/TestPassword) and a single signature (TestSignature).
func NewMockAppliance() *MockApplianceBuilder {
	return &MockApplianceBuilder{
		username:          TestUsername,
		password:          TestPassword,
		signatures:        []string{TestSignature},
		unauthorizedMsg:   MsgUnauthorized,
		handlers:          make(map[string]http.HandlerFunc),
		stats:             make(map[string]statsResponse),
		requireLoginFirst: true,
	}
}

// WithLogin sets the accepted credentials and the signatures handed out by
// successive logins. Once exhausted, the last signature is reused.
func (b *MockApplianceBuilder) WithLogin(username, password string, signatures ...string) *MockApplianceBuilder {
	b.username = username
	b.password = password
	if len(signatures) > 0 {
		b.signatures = signatures
	}
	return b
}

// WithLoginDelay delays every login response, to exercise client timeouts.
func (b *MockApplianceBuilder) WithLoginDelay(d time.Duration) *MockApplianceBuilder {
	b.loginDelay = d
	return b
}

// WithUnauthorizedMessage sets the err.msg returned for rejected tokens.
func (b *MockApplianceBuilder) WithUnauthorizedMessage(msg string) *MockApplianceBuilder {
	b.unauthorizedMsg = msg
	return b
}

// WithAnyToken makes stats endpoints accept any Authorization header.
func (b *MockApplianceBuilder) WithAnyToken() *MockApplianceBuilder {
	b.acceptAnyToken = true
	return b
}

// WithStats registers a stats endpoint. The response body is
// {"<topKey>": {"stats": <stats>}}.
func (b *MockApplianceBuilder) WithStats(endpoint, topKey string, stats interface{}) *MockApplianceBuilder {
	b.stats[APIBasePath+endpoint+StatsSuffix] = statsResponse{topKey: topKey, stats: stats}
	return b
}

// WithCustomEndpoint adds a custom handler for the specified full path.
func (b *MockApplianceBuilder) WithCustomEndpoint(path string, handler http.HandlerFunc) *MockApplianceBuilder {
	b.handlers[path] = handler
	return b
}

// Build creates and starts the mock appliance.
func (b *MockApplianceBuilder) Build() *MockAppliance {
	m := &MockAppliance{
		validTokens: make(map[string]bool),
		signatures:  b.signatures,
	}

	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.lastAuthSeen.Store(r.Header.Get(AuthorizationHeader))

		if handler, ok := b.handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}

		if r.URL.Path == AuthPath && r.Method == http.MethodPost {
			b.handleLogin(m, w, r)
			return
		}

		if resp, ok := b.stats[r.URL.Path]; ok && r.Method == http.MethodGet {
			atomic.AddInt32(&m.statsCalls, 1)
			if !b.acceptAnyToken && !m.isValid(r.Header.Get(AuthorizationHeader)) {
				WriteAXAPIError(w, http.StatusUnauthorized, b.unauthorizedMsg)
				return
			}
			WriteJSON(w, http.StatusOK, map[string]interface{}{
				resp.topKey: map[string]interface{}{"stats": resp.stats},
			})
			return
		}

		WriteAXAPIError(w, http.StatusNotFound, MsgURINotFound)
	})

	m.Server = httptest.NewTLSServer(mux)
	return m
}

func (b *MockApplianceBuilder) handleLogin(m *MockAppliance, w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.logins, 1)
	if b.loginDelay > 0 {
		time.Sleep(b.loginDelay)
	}

	var body struct {
		Credentials struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
		body.Credentials.Username != b.username || body.Credentials.Password != b.password {
		WriteAXAPIError(w, http.StatusForbidden, "Invalid username or password")
		return
	}

	sig := m.nextSignature()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"authresponse": map[string]string{
			"signature":   sig,
			"description": "the signature should be set in Authorization header for following request.",
		},
	})
}

func (m *MockAppliance) nextSignature() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.issued
	if idx >= len(m.signatures) {
		idx = len(m.signatures) - 1
	}
	m.issued++
	sig := m.signatures[idx]
	m.validTokens[TokenPrefix+sig] = true
	return sig
}

func (m *MockAppliance) isValid(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validTokens[token]
}

// Expire invalidates every token issued so far, like an appliance session timeout.
func (m *MockAppliance) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validTokens = make(map[string]bool)
}

// Logins returns the number of login requests received.
func (m *MockAppliance) Logins() int {
	return int(atomic.LoadInt32(&m.logins))
}

// StatsCalls returns the number of stats requests received on registered endpoints.
func (m *MockAppliance) StatsCalls() int {
	return int(atomic.LoadInt32(&m.statsCalls))
}

// LastAuthorization returns the Authorization header of the last request received.
func (m *MockAppliance) LastAuthorization() string {
	v, _ := m.lastAuthSeen.Load().(string)
	return v
}

// Host returns the host:port the appliance listens on, as used in scrape requests.
func (m *MockAppliance) Host() string {
	return HostOf(m.Server)
}

// HostOf strips the scheme from a test server URL.
func HostOf(server *httptest.Server) string {
	host := strings.TrimPrefix(server.URL, "https://")
	return strings.TrimPrefix(host, "http://")
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteAXAPIError writes an AXAPI error document: {"response":{"status":"fail","err":{...}}}.
func WriteAXAPIError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]interface{}{
		"response": map[string]interface{}{
			"status": "fail",
			"err": map[string]interface{}{
				"code": status,
				"msg":  msg,
			},
		},
	})
}

// WriteConfigFile writes a JSON exporter configuration into dir and returns its path.
// Only the hosts section is written; every other section takes its defaults.
func WriteConfigFile(t *testing.T, dir string, hosts map[string][2]string) string {
	t.Helper()
	entries := make(map[string]map[string]string, len(hosts))
	for host, creds := range hosts {
		entries[host] = map[string]string{"username": creds[0], "password": creds[1]}
	}
	data, err := json.MarshalIndent(map[string]interface{}{
		"hosts": entries,
		"log":   map[string]string{"log_file": filepath.Join(dir, TestLogName), "log_level": "DEBUG"},
	}, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write config file %s: %v", path, err)
	}
	return path
}

// AssertNoError is a helper that fails the test if err is not nil.
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			format := msgAndArgs[0].(string)
			args := msgAndArgs[1:]
			t.Fatalf(format+": %v", append(args, err)...)
		} else {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
}

// AssertError is a helper that fails the test if err is nil.
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			format := msgAndArgs[0].(string)
			t.Fatalf(format, msgAndArgs[1:]...)
		} else {
			t.Fatal("Expected error, got nil")
		}
	}
}

// AssertContains is a helper that fails the test if the string doesn't contain the substring.
func AssertContains(t *testing.T, s, substr string, msgAndArgs ...interface{}) {
	t.Helper()
	if !strings.Contains(s, substr) {
		if len(msgAndArgs) > 0 {
			format := msgAndArgs[0].(string)
			t.Fatalf(format, msgAndArgs[1:]...)
		} else {
			t.Fatalf("String %q does not contain %q", s, substr)
		}
	}
}
