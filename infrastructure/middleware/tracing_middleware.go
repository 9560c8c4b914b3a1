package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

// TracerName is the instrumentation scope of unit spans.
const TracerName = "github.com/ahrav/go-mfdc/unit"

var _ ports.Unit = (*TracingMiddleware)(nil)

// TracingMiddleware opens an OpenTelemetry span for every execution of the
// wrapped unit, annotated with the execution context and the unit's
// output. It is stateless and thread-safe.
type TracingMiddleware struct {
	next   ports.Unit
	tracer trace.Tracer
}

// WithTracing wraps next with span creation. A nil provider uses the
// global one registered with otel.
func WithTracing(next ports.Unit, provider trace.TracerProvider) ports.Unit {
	if next == nil {
		panic("tracing middleware: next unit is required")
	}
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &TracingMiddleware{next: next, tracer: provider.Tracer(TracerName)}
}

// Name returns the wrapped unit's name.
func (tm *TracingMiddleware) Name() string { return tm.next.Name() }

// Execute runs the wrapped unit inside a span named "<unit>.Execute".
func (tm *TracingMiddleware) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := tm.tracer.Start(ctx, tm.next.Name()+".Execute")
	defer span.End()

	span.SetAttributes(attribute.String("unit.name", tm.next.Name()))
	if ec, ok := state.GetExecutionContext(); ok {
		span.SetAttributes(
			attribute.String("execution.pipeline_id", ec.PipelineID),
			attribute.String("execution.operation", ec.Operation),
			attribute.String("execution.id", ec.ExecutionID),
		)
	}
	if code, ok := domain.Get(state, domain.KeySessionCode); ok {
		span.SetAttributes(attribute.String("session.code", code))
	}

	newState, err := tm.next.Execute(ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return newState, err
	}

	annotateOutput(span, newState)
	span.SetStatus(codes.Ok, "")
	return newState, nil
}

// annotateOutput records what the unit produced, if anything recognisable.
func annotateOutput(span trace.Span, state domain.State) {
	if result, ok := domain.Get(state, domain.KeyResult); ok && result != nil {
		span.SetAttributes(attribute.String("result.code", result.Code))
	}
	if order, ok := domain.Get(state, domain.KeySetOrder); ok {
		span.SetAttributes(attribute.Int("order.sets", len(order)))
	}
	if report, ok := domain.Get(state, domain.KeyReport); ok && report != nil {
		span.AddEvent("report.built", trace.WithAttributes(
			attribute.Int("report.total_responses", report.TotalResponses),
			attribute.Int("report.types", len(report.TypeDistribution)),
		))
	}
}

// Validate checks the wrapper and the wrapped unit.
func (tm *TracingMiddleware) Validate() error {
	if tm.next == nil {
		return fmt.Errorf("tracing middleware: next unit is required")
	}
	return tm.next.Validate()
}

// Unwrap returns the wrapped unit.
func (tm *TracingMiddleware) Unwrap() ports.Unit { return tm.next }
