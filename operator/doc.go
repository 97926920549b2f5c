// Package operator sends HTTP requests through a single serial lane and
// recovers from transient failures and expired credentials on the caller's
// behalf.
//
// Every submitted RequestItem becomes one unit of work in a FIFO queue with
// concurrency 1. A unit runs to completion (including its backoff waits and
// any token refresh) before the next one starts, so at most one refresh is
// ever in flight and every later request observes the refreshed credential.
//
// Per request, the operator makes at most MaxAttempts transport calls
// (3 by default):
//
//	2xx            -> success, body returned verbatim
//	401            -> refresh the token once, then retry
//	408/502/503/504
//	               -> wait the backoff (1s by default), then retry
//	anything else  -> terminal *NetworkError
//
// Failures below HTTP (dial errors, client-side timeouts) end the request
// without a retry.
//
// Results are delivered to the item's completion on the lane goroutine,
// exactly once:
//
//	op, err := operator.NewBuilder(log).
//		WithBaseURL("https://api.example.com").
//		WithRefreshEndpoint(func() operator.Endpoint {
//			return operator.Endpoint{Path: "/auth/refresh", Method: http.MethodPost}
//		}).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer op.Close()
//
//	op.SetToken(token)
//	body, err := op.Do(ctx, operator.Endpoint{Path: "/users/1"})
package operator
