package exporter

// Interfaces for the AXAPI client abstraction. They let the token cache and
// stats fetcher be tested with fakes, without a reachable appliance.

import (
	"context"

	"github.com/axapi-tools/a10_exporter/internal/models"
)

// CredentialStore looks up the AXAPI login for an appliance.
// *models.SafeConfig implements it.
type CredentialStore interface {
	Credentials(host string) (models.HostCredentials, bool)
}

// Authenticator performs the AXAPI login exchange.
type Authenticator interface {
	// Authenticate logs in to host and returns the value to send in the
	// Authorization header ("A10 <signature>").
	Authenticate(ctx context.Context, host string) (string, error)
}

// ApplianceClient is the transport used by the stats fetcher.
//
// The primary implementation is AxapiClient, which uses Resty for HTTP communication.
type ApplianceClient interface {
	Authenticator

	// GetStats issues GET https://<host>/axapi/v3<endpoint>/stats with token in the
	// Authorization header and returns the raw response. A non-2xx status is not an
	// error: AXAPI reports failures in the body.
	GetStats(ctx context.Context, host, endpoint, token string) (*RawResponse, error)

	// Close releases resources associated with the HTTP client.
	Close() error
}

// TokenSource returns a bearer token for an appliance, optionally forcing a fresh login.
// *TokenCache implements it.
type TokenSource interface {
	Token(ctx context.Context, host string, forceRefresh bool) (string, error)
}

// RawResponse is an undecoded AXAPI response.
type RawResponse struct {
	StatusCode int
	Body       []byte
}
