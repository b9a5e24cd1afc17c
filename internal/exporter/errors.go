package exporter

import "errors"

// Failure kinds for a single scrape. Every error returned by a client request,
// the token cache and the stats fetcher wraps exactly one of these, so callers
// classify with errors.Is.
var (
	// ErrHostNotConfigured means the requested appliance has no credentials in the config.
	ErrHostNotConfigured = errors.New("host not configured")

	// ErrAuthTimeout means the login request did not complete within the auth timeout.
	ErrAuthTimeout = errors.New("auth timeout")

	// ErrAuthRequest means the login request failed at the transport level.
	ErrAuthRequest = errors.New("auth request failed")

	// ErrInvalidCredentials means the login response carried no signature.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrURINotFound means the appliance does not know the requested stats endpoint.
	ErrURINotFound = errors.New("uri not found")

	// ErrUnauthorized means the appliance rejected the token, including after one refresh.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstream covers any other appliance-reported or transport failure on the stats call.
	ErrUpstream = errors.New("upstream error")

	// ErrClientClosed means the AXAPI client was closed before the request started.
	ErrClientClosed = errors.New("client is closed")

	// ErrMalformedResponse means the stats document did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// IsAuthError reports whether err is a login failure (timeout, transport or bad credentials).
// A missing host is a configuration error, not an auth error.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthTimeout) ||
		errors.Is(err, ErrAuthRequest) ||
		errors.Is(err, ErrInvalidCredentials)
}
