// Package models provides shared test constants for model tests.
package models

import "github.com/axapi-tools/a10_exporter/internal/testutil"

// Shared test constants - aliased from testutil
const (
	testApplianceHost = testutil.TestApplianceHost
	testUsername      = testutil.TestUsername
	testPassword      = testutil.TestPassword
	testOTELEndpoint  = testutil.TestOTELEndpoint
	testLogName       = testutil.TestLogName

	testErrorValidateUnexpected      = testutil.TestErrorValidateUnexpected
	testErrorExpectedError           = testutil.TestErrorExpectedError
	testErrorUnexpected              = testutil.TestErrorUnexpected
	testErrorExpectedErrorContaining = testutil.TestErrorExpectedErrorContaining
)
