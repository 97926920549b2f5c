// Package httpclient is the transport used by the request operator.
//
// A Client performs exactly one HTTP exchange per Do call. It never retries
// and never turns a non-2xx status into an error: status handling belongs to
// the caller. What the client does own is the plumbing around the exchange:
//
//   - per-request timeouts on top of the client default
//   - request and response interceptors
//   - request-id and W3C traceparent propagation
//   - optional client-side rate limiting
//   - request/response logging, with payload previews at debug level
//
// Failures that prevent an exchange are reported as ClientError values so
// callers can tell a timeout from a refused connection:
//
//	resp, err := client.Do(ctx, &httpclient.Request{Method: "GET", URL: u})
//	if httpclient.IsErrorType(err, httpclient.TimeoutError) {
//		// ...
//	}
package httpclient
