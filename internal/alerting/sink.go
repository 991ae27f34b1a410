package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// Sink receives newly created alerts routed by severity. Delivery is fire
// and forget: implementations log their own failures and must never abort
// an evaluation pass.
type Sink interface {
	Success(ctx context.Context, title, description string)
	Warning(ctx context.Context, title, description string)
	Info(ctx context.Context, title, description string)
}

// Dispatch routes an alert to the sink method matching its severity.
func Dispatch(ctx context.Context, sink Sink, alert Alert) {
	if sink == nil {
		return
	}
	switch alert.Severity {
	case SeveritySuccess:
		sink.Success(ctx, alert.Title, alert.Message)
	case SeverityWarning:
		sink.Warning(ctx, alert.Title, alert.Message)
	default:
		sink.Info(ctx, alert.Title, alert.Message)
	}
}

// LogSink writes alerts to the structured log. It is always wired so that
// alerts remain observable when no external channel is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink constructs a log-backed sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "alert_log").Logger()}
}

func (s *LogSink) Success(ctx context.Context, title, description string) {
	s.logger.Info().Str("severity", string(SeveritySuccess)).Str("title", title).Msg(description)
}

func (s *LogSink) Warning(ctx context.Context, title, description string) {
	s.logger.Warn().Str("severity", string(SeverityWarning)).Str("title", title).Msg(description)
}

func (s *LogSink) Info(ctx context.Context, title, description string) {
	s.logger.Info().Str("severity", string(SeverityInfo)).Str("title", title).Msg(description)
}

// MultiSink fans an alert out to every configured sink. A failing sink never
// blocks the others because sinks swallow their own errors.
type MultiSink []Sink

func (m MultiSink) Success(ctx context.Context, title, description string) {
	for _, s := range m {
		s.Success(ctx, title, description)
	}
}

func (m MultiSink) Warning(ctx context.Context, title, description string) {
	for _, s := range m {
		s.Warning(ctx, title, description)
	}
}

func (m MultiSink) Info(ctx context.Context, title, description string) {
	for _, s := range m {
		s.Info(ctx, title, description)
	}
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (MultiSink)(nil)
)
