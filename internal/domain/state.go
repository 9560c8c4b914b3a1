package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Key names a State entry holding a value of type T. Get and With are
// generic over the key, so callers never type-assert.
type Key[T any] struct{ name string }

// NewKey returns a key for use outside this package, typically by tests or
// custom units.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's string name.
func (k Key[T]) Name() string { return k.name }

// Keys read and written by the built-in units.
var (
	KeySessionCode = Key[string]{"session_code"}
	KeyAnswers     = Key[AnswerMap]{"answers"}
	KeyResult      = Key[*Result]{"result"}
	KeySetOrder    = Key[[]Set]{"set_order"}
	KeyResponses   = Key[[]StoredResponse]{"responses"}
	KeyReport      = Key[*AggregateReport]{"report"}
)

// Keys describing the pipeline run itself. The engine sets them before the
// first unit executes; middleware reads them for span and metric labels.
var (
	KeyPipelineID  = Key[string]{"execution.pipeline_id"}
	KeyOperation   = Key[string]{"execution.operation"}
	KeyExecutionID = Key[string]{"execution.execution_id"}
)

// State is the immutable bag of values handed from unit to unit. Every
// write returns a new State and every value is copied on the way in and
// on the way out, so a State may be shared freely between goroutines.
type State struct {
	data map[string]any
}

// NewState returns an empty State.
func NewState() State {
	return State{data: make(map[string]any)}
}

// Get returns the value stored under key. ok is false when the key is
// absent or holds a value of another type.
//
//	answers, ok := Get(state, KeyAnswers)
func Get[T any](s State, key Key[T]) (T, bool) {
	raw, ok := s.data[key.name]
	if !ok {
		var zero T
		return zero, false
	}
	val, ok := clone(raw).(T)
	return val, ok
}

// With returns a copy of s with key set to value. s is unchanged.
//
//	next := With(state, KeySessionCode, "LGCH-20240115-AM")
func With[T any](s State, key Key[T], value T) State {
	return s.WithRaw(key.name, value)
}

// GetRaw looks a value up by name without a typed key.
func (s State) GetRaw(name string) (any, bool) {
	raw, ok := s.data[name]
	if !ok {
		return nil, false
	}
	return clone(raw), true
}

// WithRaw sets a value by name without a typed key.
func (s State) WithRaw(name string, value any) State {
	return s.WithMultiple(map[string]any{name: value})
}

// WithMultiple returns a copy of s with every entry of updates applied,
// cloning the underlying map once.
func (s State) WithMultiple(updates map[string]any) State {
	data := maps.Clone(s.data)
	if data == nil {
		data = make(map[string]any, len(updates))
	}
	for name, v := range updates {
		data[name] = clone(v)
	}
	return State{data: data}
}

// Keys returns the names present in s in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s.data))
}

func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// ExecutionContext identifies one pipeline run.
type ExecutionContext struct {
	PipelineID  string
	Operation   string // "shuffle", "score" or "aggregate"
	ExecutionID string
}

// WithExecutionContext stores ec in s.
func (s State) WithExecutionContext(ec ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyPipelineID.name:  ec.PipelineID,
		KeyOperation.name:   ec.Operation,
		KeyExecutionID.name: ec.ExecutionID,
	})
}

// GetExecutionContext reads the run metadata back. It reports false unless
// all three fields are present.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	pipelineID, ok1 := Get(s, KeyPipelineID)
	operation, ok2 := Get(s, KeyOperation)
	executionID, ok3 := Get(s, KeyExecutionID)
	if !ok1 || !ok2 || !ok3 {
		return ExecutionContext{}, false
	}
	return ExecutionContext{
		PipelineID:  pipelineID,
		Operation:   operation,
		ExecutionID: executionID,
	}, true
}
