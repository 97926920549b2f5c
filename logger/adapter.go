package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// eventAdapter adapts a zerolog event to LogEvent, masking sensitive values
// as they are added.
type eventAdapter struct {
	event  *zerolog.Event
	filter *SensitiveDataFilter
}

func (e *eventAdapter) with(ev *zerolog.Event) LogEvent {
	return &eventAdapter{event: ev, filter: e.filter}
}

// Msg writes the entry
func (e *eventAdapter) Msg(msg string) { e.event.Msg(msg) }

// Msgf writes the entry with a formatted message
func (e *eventAdapter) Msgf(format string, args ...any) { e.event.Msgf(format, args...) }

func (e *eventAdapter) Err(err error) LogEvent { return e.with(e.event.Err(err)) }

func (e *eventAdapter) Str(key, value string) LogEvent {
	if e.filter != nil {
		value = e.filter.FilterString(key, value)
	}
	return e.with(e.event.Str(key, value))
}

func (e *eventAdapter) Int(key string, value int) LogEvent { return e.with(e.event.Int(key, value)) }

func (e *eventAdapter) Int64(key string, value int64) LogEvent {
	return e.with(e.event.Int64(key, value))
}

func (e *eventAdapter) Uint64(key string, value uint64) LogEvent {
	return e.with(e.event.Uint64(key, value))
}

func (e *eventAdapter) Dur(key string, d time.Duration) LogEvent {
	return e.with(e.event.Dur(key, d))
}

func (e *eventAdapter) Interface(key string, i any) LogEvent {
	if e.filter != nil {
		i = e.filter.FilterValue(key, i)
	}
	return e.with(e.event.Interface(key, i))
}

func (e *eventAdapter) Bytes(key string, val []byte) LogEvent {
	return e.with(e.event.Bytes(key, val))
}

// Info creates an info-level event
func (l *ZeroLogger) Info() LogEvent { return &eventAdapter{event: l.zlog.Info(), filter: l.filter} }

// Error creates an error-level event
func (l *ZeroLogger) Error() LogEvent { return &eventAdapter{event: l.zlog.Error(), filter: l.filter} }

// Debug creates a debug-level event
func (l *ZeroLogger) Debug() LogEvent { return &eventAdapter{event: l.zlog.Debug(), filter: l.filter} }

// Warn creates a warn-level event
func (l *ZeroLogger) Warn() LogEvent { return &eventAdapter{event: l.zlog.Warn(), filter: l.filter} }

// Fatal creates a fatal-level event. zerolog exits the process after Msg.
func (l *ZeroLogger) Fatal() LogEvent { return &eventAdapter{event: l.zlog.Fatal(), filter: l.filter} }
