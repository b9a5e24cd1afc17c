package telemetry

// This file defines error message templates for common failure scenarios.
// Templates provide consistent, actionable error messages with troubleshooting steps.
//
// Usage:
//
//	logging.LogError(fmt.Sprintf(telemetry.ErrHostNotConfiguredTemplate, host, host))

// Error message templates for common scenarios
const (
	// ErrHostNotConfiguredTemplate is logged when a scrape names an appliance missing from the config
	ErrHostNotConfiguredTemplate = `Host credentials not found in creds config for %s.

Add the appliance to the 'hosts' section of the configuration file:

  "hosts": {
    "%s": {"username": "<user>", "password": "<password>"}
  }

The file is re-read on SIGHUP or when it changes on disk; no restart is needed.`

	// ErrMalformedResponseTemplate is logged when the stats document has an unexpected shape
	ErrMalformedResponseTemplate = `AXAPI returned an unexpected stats document (HTTP %d).

Expected: {"<object-name>": {"stats": {"<field>": <number>, ...}}}

This usually indicates:
1. The api_endpoint does not name an object that supports /stats
2. A proxy or load balancer answered instead of the appliance

Request URL: %s
Response preview: %s`
)
