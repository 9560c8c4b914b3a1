package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

var _ ports.Unit = (*MetricsMiddleware)(nil)

// MetricsMiddleware records latency and outcome counters around a unit's
// execution. It holds no mutable state and is safe for concurrent use.
type MetricsMiddleware struct {
	// next holds the next middleware or unit in the execution chain.
	next ports.Unit

	// metrics receives the measurements.
	metrics ports.MetricsCollector
}

// WithMetrics wraps next so every execution is measured. A nil collector
// returns next unchanged.
func WithMetrics(next ports.Unit, metrics ports.MetricsCollector) ports.Unit {
	if next == nil {
		panic("metrics middleware: next unit is required")
	}
	if metrics == nil {
		return next
	}
	return &MetricsMiddleware{next: next, metrics: metrics}
}

// Name returns the wrapped unit's name so logs and errors keep pointing at
// the unit rather than the wrapper.
func (mm *MetricsMiddleware) Name() string { return mm.next.Name() }

// Execute runs the wrapped unit and records its latency and outcome.
// The operation label comes from the state's execution context when one
// is present.
func (mm *MetricsMiddleware) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	operation := "execute"
	if ec, ok := state.GetExecutionContext(); ok && ec.Operation != "" {
		operation = ec.Operation
	}

	start := time.Now()
	newState, err := mm.next.Execute(ctx, state)
	elapsed := time.Since(start)

	labels := map[string]string{"unit": mm.next.Name(), "status": "success"}
	if err != nil {
		labels["status"] = "error"
	}
	mm.metrics.RecordLatency(operation, elapsed, labels)
	mm.metrics.RecordCounter(operation, 1, labels)

	return newState, err
}

// Validate checks the wrapper and the wrapped unit.
func (mm *MetricsMiddleware) Validate() error {
	if mm.next == nil {
		return fmt.Errorf("metrics middleware: next unit is required")
	}
	return mm.next.Validate()
}

// Unwrap returns the wrapped unit.
func (mm *MetricsMiddleware) Unwrap() ports.Unit { return mm.next }
