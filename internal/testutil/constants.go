// Package testutil provides shared testing utilities and constants for the A10 exporter.
//
// This package centralizes common test constants, helper functions, and mock builders
// to reduce duplication across test files and improve test maintainability.
//
// # Key Components
//
// Constants: Shared test values (credentials, AXAPI paths, error messages) defined in constants.go
//
// MockApplianceBuilder: Fluent interface for creating mock AXAPI appliances (TLS httptest servers)
//
// Helper Functions: Common test utilities (config files, assertions) for cleaner test code
//
// # Usage Examples
//
// Creating a mock appliance:
//
//	appliance := testutil.NewMockAppliance().
//	    WithLogin(testutil.TestUsername, testutil.TestPassword, "sig-1").
//	    WithStats("/slb/virtual-server/vs1", "virtual-server", map[string]interface{}{"curr-conn": 3}).
//	    Build()
//	defer appliance.Close()
//
// Using shared constants:
//
//	host := testutil.HostOf(appliance)
//	path := testutil.AuthPath
package testutil

// HTTP headers
const (
	ContentTypeHeader   = "Content-Type"
	AuthorizationHeader = "Authorization"
	ContentTypeJSON     = "application/json"
)

// AXAPI paths
const (
	AuthPath     = "/axapi/v3/auth"
	APIBasePath  = "/axapi/v3"
	StatsSuffix  = "/stats"
	TokenPrefix  = "A10 "
	TestEndpoint = "/slb/virtual-server/vs1"
	TestCategory = "_vs1"
)

// Credentials and tokens
const (
	TestUsername   = "admin"
	TestPassword   = "a10-secret"
	TestSignature  = "sig-0001"
	TestSignature2 = "sig-0002"
)

// AXAPI error messages as returned by appliances
const (
	MsgURINotFound   = "URI not found"
	MsgNotAuthorized = "Not Authorized"
	MsgUnauthorized  = "Unauthorized"
)

// Test error messages
const (
	TestErrorExpectedError           = "Expected error, got nil"
	TestErrorUnexpected              = "Unexpected error: %v"
	TestErrorValidateUnexpected      = "Validate() unexpected error = %v"
	TestErrorExpectedErrorContaining = "Expected error containing %q, got %q"
)

// Test server names and identifiers
const (
	TestApplianceHost = "10.0.0.1"
	TestOTELEndpoint  = "localhost:4317"
	TestServiceName   = "a10-exporter-test"
	TestLogName       = "test.log"
	TestServerPort    = "7070"
)
