package httpclient

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/netlayer/logger"
)

// Test constants to avoid string duplication
const (
	testContentType        = "application/json"
	testContentTypeHeader  = "Content-Type"
	testRestClientRequest  = "REST client request"
	testRestClientResponse = "REST client response"
)

// fakeLogEvent implements logger.LogEvent for testing
type fakeLogEvent struct {
	logger *fakeLogger
	level  string
	fields map[string]any
}

func (e *fakeLogEvent) Msg(msg string) {
	e.logger.mu.Lock()
	defer e.logger.mu.Unlock()
	e.logger.events = append(e.logger.events, loggedEvent{
		level:   e.level,
		fields:  maps.Clone(e.fields),
		message: msg,
	})
}

func (e *fakeLogEvent) Msgf(format string, _ ...any) {
	e.Msg(format)
}

func (e *fakeLogEvent) Err(err error) logger.LogEvent {
	e.fields["error"] = err
	return e
}

func (e *fakeLogEvent) Str(key, value string) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int(key string, value int) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int64(key string, value int64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Uint64(key string, value uint64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.fields[key] = d
	return e
}

func (e *fakeLogEvent) Interface(key string, i any) logger.LogEvent {
	e.fields[key] = i
	return e
}

func (e *fakeLogEvent) Bytes(key string, val []byte) logger.LogEvent {
	e.fields[key] = val
	return e
}

// fakeLogger implements logger.Logger for testing
type fakeLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

type loggedEvent struct {
	level   string
	fields  map[string]any
	message string
}

func (l *fakeLogger) event(level string) logger.LogEvent {
	return &fakeLogEvent{logger: l, level: level, fields: make(map[string]any)}
}

func (l *fakeLogger) Info() logger.LogEvent  { return l.event("info") }
func (l *fakeLogger) Error() logger.LogEvent { return l.event("error") }
func (l *fakeLogger) Debug() logger.LogEvent { return l.event("debug") }
func (l *fakeLogger) Warn() logger.LogEvent  { return l.event("warn") }
func (l *fakeLogger) Fatal() logger.LogEvent { return l.event("fatal") }

func (l *fakeLogger) WithContext(_ any) logger.Logger {
	return l
}

func (l *fakeLogger) WithFields(_ map[string]any) logger.Logger {
	return l
}

func (l *fakeLogger) eventsByLevel(level string) []loggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var events []loggedEvent
	for _, event := range l.events {
		if event.level == level {
			events = append(events, event)
		}
	}
	return events
}

func newLoggingClient(log logger.Logger, cfg *Config) *client {
	return &client{logger: log, config: cfg}
}

func TestClientLogRequest(t *testing.T) {
	t.Run("basic request logging", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, &Config{MaxPayloadLogBytes: 1024})

		req, err := http.NewRequestWithContext(context.Background(), "POST", "https://api.example.com/users", http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer token")
		req.Header.Set(testContentTypeHeader, testContentType)

		body := []byte(`{"name": "test user"}`)
		c.logRequest(req, body, "test-trace-123")

		infoEvents := fakeLog.eventsByLevel("info")
		require.Len(t, infoEvents, 1)

		infoEvent := infoEvents[0]
		assert.Equal(t, testRestClientRequest, infoEvent.message)
		assert.Equal(t, "outbound", infoEvent.fields["direction"])
		assert.Equal(t, "POST", infoEvent.fields["method"])
		assert.Equal(t, "https://api.example.com/users", infoEvent.fields["url"])
		assert.Equal(t, "test-trace-123", infoEvent.fields["request_id"])
		assert.Equal(t, 2, infoEvent.fields["header_count"])
		assert.Equal(t, len(body), infoEvent.fields["body_size"])

		assert.Empty(t, fakeLog.eventsByLevel("debug"))
	})

	t.Run("request with empty body", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, &Config{})

		req, err := http.NewRequestWithContext(context.Background(), "GET", "https://api.example.com/users", http.NoBody)
		require.NoError(t, err)

		c.logRequest(req, nil, "trace-456")

		infoEvent := fakeLog.eventsByLevel("info")[0]
		assert.Equal(t, "GET", infoEvent.fields["method"])
		assert.Equal(t, "trace-456", infoEvent.fields["request_id"])
		assert.NotContains(t, infoEvent.fields, "body_size")
		assert.NotContains(t, infoEvent.fields, "header_count")
	})

	t.Run("payload logging", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, &Config{LogPayloads: true, MaxPayloadLogBytes: 1024})

		req, err := http.NewRequestWithContext(context.Background(), "PUT", "https://api.example.com/users/1", http.NoBody)
		require.NoError(t, err)
		req.Header.Set(testContentTypeHeader, testContentType)

		body := []byte(`{"name": "updated"}`)
		c.logRequest(req, body, "trace-789")

		debugEvents := fakeLog.eventsByLevel("debug")
		require.Len(t, debugEvents, 1)

		debugEvent := debugEvents[0]
		assert.Equal(t, "outbound", debugEvent.fields["direction"])
		assert.Equal(t, "PUT", debugEvent.fields["method"])
		assert.Equal(t, "trace-789", debugEvent.fields["request_id"])
		assert.NotNil(t, debugEvent.fields["headers"])
		assert.Equal(t, len(body), debugEvent.fields["body_size"])
		assert.Equal(t, "false", debugEvent.fields["body_truncated"])
		assert.Equal(t, body, debugEvent.fields["body_preview"])
	})

	t.Run("payload truncation", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, &Config{LogPayloads: true, MaxPayloadLogBytes: 10})

		req, err := http.NewRequestWithContext(context.Background(), "POST", "https://api.example.com/upload", http.NoBody)
		require.NoError(t, err)

		largeBody := []byte("this body is definitely longer than ten bytes")
		c.logRequest(req, largeBody, "trace-truncate")

		debugEvent := fakeLog.eventsByLevel("debug")[0]
		assert.Equal(t, len(largeBody), debugEvent.fields["body_size"])
		assert.Equal(t, "true", debugEvent.fields["body_truncated"])
		assert.Equal(t, largeBody[:10], debugEvent.fields["body_preview"])
	})

	t.Run("default truncation limit", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, &Config{LogPayloads: true})

		req, err := http.NewRequestWithContext(context.Background(), "POST", "https://api.example.com/upload", http.NoBody)
		require.NoError(t, err)

		largeBody := make([]byte, 2048)
		for i := range largeBody {
			largeBody[i] = 'a'
		}
		c.logRequest(req, largeBody, "trace-default")

		debugEvent := fakeLog.eventsByLevel("debug")[0]
		assert.Equal(t, "true", debugEvent.fields["body_truncated"])
		assert.Equal(t, largeBody[:DefaultMaxPayloadLogBytes], debugEvent.fields["body_preview"])
	})
}

func TestClientLogResponse(t *testing.T) {
	t.Run("basic response logging", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, &Config{})

		response := &Response{
			StatusCode: 200,
			Body:       []byte(`{"id": 1}`),
			Stats:      Stats{ElapsedTime: 250 * time.Millisecond, CallCount: 5},
		}
		c.logResponse(response, "trace-response-123")

		infoEvents := fakeLog.eventsByLevel("info")
		require.Len(t, infoEvents, 1)

		infoEvent := infoEvents[0]
		assert.Equal(t, testRestClientResponse, infoEvent.message)
		assert.Equal(t, "inbound", infoEvent.fields["direction"])
		assert.Equal(t, 200, infoEvent.fields["status"])
		assert.Equal(t, 250*time.Millisecond, infoEvent.fields["elapsed"])
		assert.Equal(t, int64(5), infoEvent.fields["call_count"])
		assert.Equal(t, "trace-response-123", infoEvent.fields["request_id"])
		assert.Equal(t, len(response.Body), infoEvent.fields["body_size"])
	})

	t.Run("empty response", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, &Config{})

		c.logResponse(&Response{StatusCode: 204}, "trace-empty")

		infoEvent := fakeLog.eventsByLevel("info")[0]
		assert.Equal(t, 204, infoEvent.fields["status"])
		assert.NotContains(t, infoEvent.fields, "body_size")
	})

	t.Run("payload logging with truncation", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := newLoggingClient(fakeLog, &Config{LogPayloads: true, MaxPayloadLogBytes: 15})

		response := &Response{
			StatusCode: 201,
			Body:       []byte(`{"id": 1, "name": "a rather long name"}`),
			Headers:    http.Header{testContentTypeHeader: []string{testContentType}},
		}
		c.logResponse(response, "trace-large")

		debugEvent := fakeLog.eventsByLevel("debug")[0]
		assert.Equal(t, "inbound", debugEvent.fields["direction"])
		assert.Equal(t, 201, debugEvent.fields["status"])
		assert.NotNil(t, debugEvent.fields["headers"])
		assert.Equal(t, "true", debugEvent.fields["body_truncated"])
		assert.Equal(t, response.Body[:15], debugEvent.fields["body_preview"])
	})
}

func TestClientLogFailure(t *testing.T) {
	fakeLog := &fakeLogger{}
	c := newLoggingClient(fakeLog, &Config{})

	req, err := http.NewRequestWithContext(context.Background(), "GET", "http://127.0.0.1:1/ping", http.NoBody)
	require.NoError(t, err)

	c.logFailure(req, "trace-fail", time.Second, context.DeadlineExceeded)

	warnEvents := fakeLog.eventsByLevel("warn")
	require.Len(t, warnEvents, 1)
	assert.Equal(t, "REST client request failed", warnEvents[0].message)
	assert.Equal(t, context.DeadlineExceeded, warnEvents[0].fields["error"])
	assert.Equal(t, "trace-fail", warnEvents[0].fields["request_id"])
}

func TestBuilderLoggingDefaults(t *testing.T) {
	fakeLog := &fakeLogger{}
	clientImpl := NewBuilder(fakeLog).WithTimeout(5 * time.Second).Build().(*client)

	assert.False(t, clientImpl.config.LogPayloads)
	assert.Equal(t, DefaultMaxPayloadLogBytes, clientImpl.config.MaxPayloadLogBytes)

	withPayloads := NewBuilder(fakeLog).WithPayloadLogging(64).Build().(*client)
	assert.True(t, withPayloads.config.LogPayloads)
	assert.Equal(t, 64, withPayloads.config.MaxPayloadLogBytes)
}
