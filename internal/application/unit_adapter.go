package application

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

// UnitAdapter is an adapter that wraps a ports.Unit to implement the
// ports.Executable interface, enabling units to participate in pipelines.
// An adapter may bound each execution with a timeout taken from the unit's
// configuration.
type UnitAdapter struct {
	// unit is the underlying unit that performs the actual work when
	// Execute is called.
	unit ports.Unit
	// id is the unique identifier for this adapter within its pipeline,
	// used for referencing and error reporting.
	id string
	// timeout bounds a single execution. Zero means no extra bound.
	timeout time.Duration
}

// NewUnitAdapter creates a new adapter that wraps a ports.Unit to
// implement the ports.Executable interface.
func NewUnitAdapter(unit ports.Unit, id string) *UnitAdapter {
	return &UnitAdapter{
		unit: unit,
		id:   id,
	}
}

// WithTimeout returns a copy of the adapter whose executions are cancelled
// after d. A non-positive d disables the bound.
func (ua *UnitAdapter) WithTimeout(d time.Duration) *UnitAdapter {
	cp := *ua
	cp.timeout = max(d, 0)
	return &cp
}

// Execute delegates to the underlying unit's Execute method.
// When a timeout is configured and the unit overruns it, Execute returns
// an error wrapping ports.ErrTimeout.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if ua.timeout <= 0 {
		return ua.unit.Execute(ctx, state)
	}

	ctx, cancel := context.WithTimeout(ctx, ua.timeout)
	defer cancel()

	out, err := ua.unit.Execute(ctx, state)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return state, fmt.Errorf("unit %s exceeded %s: %w", ua.id, ua.timeout, ports.ErrTimeout)
	}
	return out, err
}

// ID returns the unique string identifier for this adapter.
func (ua *UnitAdapter) ID() string { return ua.id }

// Unit returns the wrapped unit.
func (ua *UnitAdapter) Unit() ports.Unit { return ua.unit }
