// Package telemetry defines the logging/metrics/tracing interfaces the
// execution core uses to stay observability-provider-agnostic (C10): the
// agent loop, planner, and tool dispatch depend only on these small
// interfaces, never on goa.design/clue or OpenTelemetry directly. ClueLogger,
// ClueMetrics, and ClueTracer (clue.go) are the production implementations;
// NoopLogger/NoopMetrics/NoopTracer (noop.go) back tests.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the runtime.
// Implementations typically delegate to Clue but the interface is
// intentionally small so tests can provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter and histogram helpers for runtime instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so runtime code can remain agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// ToolTelemetry captures observability metadata collected during a single
// tool execution. Common fields provide type safety for standard metrics;
// Extra holds tool-specific data (API response headers, cache keys, provider
// details) that doesn't warrant its own field.
type ToolTelemetry struct {
	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
	// TokensUsed tracks the total tokens consumed by LLM calls made while
	// servicing the tool (agent-as-tool executions only).
	TokensUsed int
	// Model identifies which LLM model was used, when applicable.
	Model string
	// Extra holds tool-specific metadata not captured by common fields.
	Extra map[string]any
}
