// Package telemetry records tool calls as OpenTelemetry spans and metrics.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName scopes the meter and tracer
const InstrumentationName = "github.com/erauner12/topicbridge"

// OutcomeOK marks a successful call. Failures use the tool error code.
const OutcomeOK = "ok"

const (
	callsMetric    = "topicbridge.tool.calls"
	durationMetric = "topicbridge.tool.duration"
	callSpanName   = "tools/call"
)

// Observer records tool call signals. A nil Observer records nothing.
type Observer struct {
	tracer trace.Tracer

	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewObserver creates an observer bound to the provided meter and tracer
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	calls, err := meter.Int64Counter(
		callsMetric,
		metric.WithDescription("Number of tool calls"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		durationMetric,
		metric.WithDescription("Tool call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:   tracer,
		calls:    calls,
		duration: duration,
	}, nil
}

// NewGlobalObserver uses the global providers, which are no-ops unless the
// host installs an SDK
func NewGlobalObserver() (*Observer, error) {
	return NewObserver(otel.Meter(InstrumentationName), otel.Tracer(InstrumentationName))
}

// Call tracks one in-flight tool call
type Call struct {
	observer  *Observer
	span      trace.Span
	start     time.Time
	tool      string
	sessionID string
}

// StartCall opens a span for the call. The returned context carries it.
func (o *Observer) StartCall(ctx context.Context, sessionID, tool string) (context.Context, *Call) {
	if o == nil {
		return ctx, nil
	}

	c := &Call{
		observer:  o,
		start:     time.Now(),
		tool:      tool,
		sessionID: sessionID,
	}
	if o.tracer != nil {
		ctx, c.span = o.tracer.Start(ctx, callSpanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("session", sessionID),
			),
		)
	}
	return ctx, c
}

// End records the outcome and closes the span
func (c *Call) End(outcome string) {
	if c == nil {
		return
	}
	if outcome == "" {
		outcome = OutcomeOK
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("tool", c.tool),
		attribute.String("outcome", outcome),
	)
	c.observer.calls.Add(ctx, 1, attrs)
	c.observer.duration.Record(ctx, time.Since(c.start).Seconds(), attrs)

	if c.span == nil {
		return
	}
	c.span.SetAttributes(attribute.String("outcome", outcome))
	if outcome != OutcomeOK {
		c.span.SetStatus(codes.Error, outcome)
	} else {
		c.span.SetStatus(codes.Ok, "")
	}
	c.span.End()
}
