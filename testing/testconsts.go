package testing

import "time"

// Service and Queue Names
const (
	TestServiceName = "test-service"
	TestQueueName   = "test.http.operator.queue"
)

// Credentials
// Values used when a test needs a token or signing key.
const (
	TestSubject      = "ada"
	TestRawToken     = "test-token"
	TestBearerToken  = "Bearer " + TestRawToken
	TestSigningKey   = "netlayer-test-signing-key"
	TestRefreshField = "token"
)

// Endpoints
const (
	TestBaseURL     = "https://api.example.com"
	TestUsersPath   = "/users"
	TestRefreshPath = "/auth/refresh"
)

// Time Duration Constants
// Common time durations used in test synchronization and timeouts.
const (
	// TestCompletionTimeout bounds how long a test waits for a completion (5s)
	TestCompletionTimeout = 5 * time.Second
	// TestFastBackoff replaces the one-second retry delay in end-to-end tests
	TestFastBackoff = time.Millisecond
	// TestEventuallyTimeout is the timeout for require.Eventually assertions (500ms)
	TestEventuallyTimeout = 500 * time.Millisecond
	// TestEventuallyTick is the polling interval for require.Eventually (10ms)
	TestEventuallyTick = 10 * time.Millisecond
)
