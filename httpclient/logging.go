package httpclient

import (
	nethttp "net/http"
	"time"
)

// logRequest logs the outgoing request; payloads go to debug when enabled
func (c *client) logRequest(req *nethttp.Request, body []byte, requestID string) {
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", requestID)

	if n := len(req.Header); n > 0 {
		logEvent = logEvent.Int("header_count", n)
	}
	if len(body) > 0 {
		logEvent = logEvent.Int("body_size", len(body))
	}
	logEvent.Msg("REST client request")

	if !c.config.LogPayloads {
		return
	}
	preview, truncated := c.truncate(body)
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("request_id", requestID).
		Interface("headers", req.Header).
		Int("body_size", len(body)).
		Str("body_truncated", boolString(truncated)).
		Bytes("body_preview", preview).
		Msg("REST client request payload")
}

// logResponse logs the incoming response
func (c *client) logResponse(resp *Response, requestID string) {
	logEvent := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Str("request_id", requestID)

	if len(resp.Body) > 0 {
		logEvent = logEvent.Int("body_size", len(resp.Body))
	}
	logEvent.Msg("REST client response")

	if !c.config.LogPayloads {
		return
	}
	preview, truncated := c.truncate(resp.Body)
	c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Interface("headers", resp.Headers).
		Int("body_size", len(resp.Body)).
		Str("body_truncated", boolString(truncated)).
		Bytes("body_preview", preview).
		Msg("REST client response payload")
}

// logFailure logs an exchange that produced no response
func (c *client) logFailure(req *nethttp.Request, requestID string, elapsed time.Duration, err error) {
	c.logger.Warn().
		Err(err).
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", requestID).
		Dur("elapsed", elapsed).
		Msg("REST client request failed")
}

func (c *client) truncate(body []byte) (preview []byte, truncated bool) {
	limit := c.config.MaxPayloadLogBytes
	if limit <= 0 {
		limit = DefaultMaxPayloadLogBytes
	}
	if len(body) > limit {
		return body[:limit], true
	}
	return body, false
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
