package telemetry

// HTTP semantic convention attributes
const (
	AttrHTTPMethod                = "http.method"
	AttrHTTPURL                   = "http.url"
	AttrHTTPStatusCode            = "http.status_code"
	AttrHTTPResponseContentLength = "http.response_content_length"
	AttrHTTPDurationMS            = "http.duration_ms"
)

// AXAPI-specific attributes
const (
	AttrAxapiHost     = "axapi.host"
	AttrAxapiEndpoint = "axapi.endpoint"
	AttrAxapiCategory = "axapi.category"
	AttrAxapiAttempt  = "axapi.attempt"
	AttrAxapiErrorMsg = "axapi.error_message"
	AttrTokenRefresh  = "axapi.token_refresh"

	// AttrAxapiAppliances is a resource attribute listing the configured appliances
	AttrAxapiAppliances = "axapi.appliances"
)

// Scrape attributes
const (
	AttrScrapeDurationMS  = "scrape.duration_ms"
	AttrScrapeFieldCount  = "scrape.field_count"
	AttrScrapeMetricCount = "scrape.metric_count"
	AttrScrapeStatus      = "scrape.status"
)

// Error attributes
const (
	AttrError = "error"
)
