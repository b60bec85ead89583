package telemetry

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// spanHook correlates log lines with the active span. Error lines also mark
// the span failed and attach the message as an event.
type spanHook struct{}

func (spanHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return
	}

	e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	if level < zerolog.ErrorLevel {
		return
	}
	span.SetStatus(codes.Error, msg)
	span.AddEvent("log", trace.WithAttributes(
		attribute.String("log.severity", level.String()),
		attribute.String("log.message", msg),
	))
}

// NewLogger builds the process logger. Unknown or empty levels fall back to info.
func NewLogger(out io.Writer, level string, console bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).With().Timestamp().Logger().Hook(spanHook{})
}
