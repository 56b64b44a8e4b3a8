// Package observe bundles the structured logger and the tracer used across
// powermem-mcp.
//
// The MCP server speaks JSON-RPC on stdout, so loggers must write to stderr
// (or a file) whenever the stdio transport is in use.
package observe

import (
	"context"
	"io"
	"strings"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by powermem-mcp.
const TracerName = "powermem-mcp"

var tracer = otel.Tracer(TracerName)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Observer handles logging and tracing.
type Observer struct {
	log *bolt.Logger
}

// New creates an Observer writing to out in the given format ("console" or
// "json") at the given level ("debug", "info", "warn", "error").
// Unknown values fall back to console and info.
func New(out io.Writer, format, level string) *Observer {
	var handler bolt.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = bolt.NewJSONHandler(out)
	} else {
		handler = bolt.NewConsoleHandler(out)
	}

	l := bolt.New(handler)
	l.SetLevel(ParseLevel(level))

	return &Observer{log: l}
}

// Nop returns an Observer that discards every log line.
func Nop() *Observer {
	l := bolt.New(bolt.NewJSONHandler(io.Discard))
	l.SetLevel(bolt.ERROR)
	return &Observer{log: l}
}

// ParseLevel maps a level name to a bolt level.
func ParseLevel(level string) bolt.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return bolt.DEBUG
	case "warn", "warning":
		return bolt.WARN
	case "error":
		return bolt.ERROR
	default:
		return bolt.INFO
	}
}

// Log returns the underlying logger.
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a new OTel span.
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// Close flushes nothing today; loggers write synchronously.
func (o *Observer) Close() error {
	return nil
}
