// Package exporter provides shared test constants and utilities.
// This file contains common constants used across multiple test files
// to avoid duplication and ensure consistency.
package exporter

import "github.com/axapi-tools/a10_exporter/internal/testutil"

// Shared test constants - aliased from testutil
const (
	// HTTP headers
	contentTypeHeader   = testutil.ContentTypeHeader
	authorizationHeader = testutil.AuthorizationHeader
	contentTypeJSON     = testutil.ContentTypeJSON

	// AXAPI values
	testEndpoint   = testutil.TestEndpoint
	testCategory   = testutil.TestCategory
	testUsername   = testutil.TestUsername
	testPassword   = testutil.TestPassword
	testSignature  = testutil.TestSignature
	testSignature2 = testutil.TestSignature2
	tokenPrefix    = testutil.TokenPrefix

	// Appliance error messages
	msgURINotFound   = testutil.MsgURINotFound
	msgNotAuthorized = testutil.MsgNotAuthorized

	// Test server names and identifiers
	testApplianceHost = testutil.TestApplianceHost
	testOTELEndpoint  = testutil.TestOTELEndpoint
	testServiceName   = testutil.TestServiceName

	testErrorUnexpected = testutil.TestErrorUnexpected
)
