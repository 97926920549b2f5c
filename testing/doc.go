// Package testing provides testing utilities for netlayer.
//
// # Mocks
//
// The mocks subpackage provides a testify-based httpclient.Client so operator
// behavior can be scripted without a network:
//
//	transport := mocks.NewMockTransport()
//	transport.ExpectStatus(http.MethodGet, "https://api.example.com/users", http.StatusOK, `{"id":1}`)
//
// # Fake API
//
// The fakeapi subpackage serves a small JWT-protected API over echo. It mints
// tokens, refreshes expired ones, and can be told to fail a path a number of
// times, which covers the refresh and retry paths against a real server.
//
// # Constants
//
// Shared test values live in this package; import it with an alias:
//
//	import testconsts "github.com/gaborage/netlayer/testing"
package testing
