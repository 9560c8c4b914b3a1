package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewState verifies that a new State instance is initialized correctly.
func TestNewState(t *testing.T) {
	state := NewState()

	assert.NotNil(t, state.data, "NewState() should initialize the data map.")
	assert.Empty(t, state.data, "NewState() should create an empty state.")
}

// TestState_Get tests the retrieval of values from a State instance.
// It covers various data types and ensures that existing keys return the correct
// values and non-existent keys are handled properly.
func TestState_Get(t *testing.T) {
	tests := []struct {
		name   string
		setup  func() State
		assert func(t *testing.T, state State)
	}{
		{
			name: "get existing string value",
			setup: func() State {
				return With(NewState(), KeySessionCode, "TEAM01")
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeySessionCode)
				assert.True(t, ok, "Get() should find an existing key.")
				assert.Equal(t, "TEAM01", got, "Get() returned an incorrect value.")
			},
		},
		{
			name: "get non-existent key",
			setup: func() State {
				return NewState()
			},
			assert: func(t *testing.T, state State) {
				_, ok := Get(state, KeySessionCode)
				assert.False(t, ok, "Get() should not find a non-existent key.")
			},
		},
		{
			name: "get answer map",
			setup: func() State {
				return With(NewState(), KeyAnswers, AnswerMap{"M1": 7, "M2": 1})
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeyAnswers)
				assert.True(t, ok, "Get() should find the answers.")
				assert.Len(t, got, 2, "Should have 2 answers.")
				assert.Equal(t, 7, got["M1"], "Answer for M1 mismatch.")
			},
		},
		{
			name: "get set order",
			setup: func() State {
				sets := []Set{{ID: "S01", Axis: AxisMotivation}, {ID: "S02", Axis: AxisDirection}}
				return With(NewState(), KeySetOrder, sets)
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeySetOrder)
				assert.True(t, ok, "Get() should find the set order.")
				require.Len(t, got, 2, "Should have 2 sets.")
				assert.Equal(t, "S02", got[1].ID, "Second set mismatch.")
			},
		},
		{
			name: "get result pointer",
			setup: func() State {
				result := &Result{Code: "ISPN", Scores: []AxisScore{{Axis: AxisMotivation, Score1: 87.5, Score2: 12.5}}}
				return With(NewState(), KeyResult, result)
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeyResult)
				assert.True(t, ok, "Get() should find the result.")
				require.NotNil(t, got, "Result should not be nil.")
				assert.Equal(t, "ISPN", got.Code, "Result code mismatch.")
				assert.Equal(t, 87.5, got.Scores[0].Score1, "Result score mismatch.")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.setup()
			tt.assert(t, state)
		})
	}
}

// TestState_With tests the addition of values to a State instance.
// It verifies that the operation is immutable and that new values are correctly added or updated.
func TestState_With(t *testing.T) {
	original := NewState()
	value := "TEAM01"

	updated := With(original, KeySessionCode, value)

	_, ok := Get(original, KeySessionCode)
	assert.False(t, ok, "With() should not modify the original state.")

	got, ok := Get(updated, KeySessionCode)
	require.True(t, ok, "With() should add a new value to the state.")
	assert.Equal(t, value, got, "With() returned an incorrect value.")

	newValue := "TEAM02"
	updated2 := With(updated, KeySessionCode, newValue)

	v, _ := Get(updated, KeySessionCode)
	assert.Equal(t, value, v, "With() should not modify the previous state when updating.")

	v2, _ := Get(updated2, KeySessionCode)
	assert.Equal(t, newValue, v2, "With() returned an incorrect updated value.")
}

// TestState_WithMultiple tests the batch update functionality of a State instance.
// It ensures that multiple key-value pairs are added immutably and correctly.
func TestState_WithMultiple(t *testing.T) {
	original := NewState()
	answers := AnswerMap{"M1": 4, "M2": 5}
	responses := []StoredResponse{{LeadershipType: "ISPN"}, {LeadershipType: "ECRD"}}

	updates := map[string]any{
		KeySessionCode.name: "TEAM01",
		KeyAnswers.name:     answers,
		KeyResponses.name:   responses,
	}

	updated := original.WithMultiple(updates)

	assert.Empty(t, original.Keys(), "WithMultiple() should not modify the original state.")

	code, ok := Get(updated, KeySessionCode)
	require.True(t, ok, "WithMultiple() should apply the session code update.")
	assert.Equal(t, "TEAM01", code, "Session code mismatch.")

	gotAnswers, ok := Get(updated, KeyAnswers)
	require.True(t, ok, "WithMultiple() should apply the answers update.")
	assert.Len(t, gotAnswers, 2, "Answers length mismatch.")

	gotResponses, ok := Get(updated, KeyResponses)
	require.True(t, ok, "WithMultiple() should apply the responses update.")
	assert.Len(t, gotResponses, 2, "Responses length mismatch.")
}

// TestState_Keys tests the retrieval of all keys from a State instance.
// It verifies that the correct number of keys is returned and that all expected keys are present.
func TestState_Keys(t *testing.T) {
	state := With(With(With(NewState(),
		KeySessionCode, "TEAM01"),
		KeyAnswers, AnswerMap{"M1": 1}),
		KeyResponses, []StoredResponse{{LeadershipType: "ISPN"}})

	keys := state.Keys()
	assert.Len(t, keys, 3, "Keys() should return 3 keys.")

	keyMap := make(map[string]bool)
	for _, k := range keys {
		keyMap[k] = true
	}

	assert.True(t, keyMap[KeySessionCode.Name()], "Keys() should include KeySessionCode.")
	assert.True(t, keyMap[KeyAnswers.Name()], "Keys() should include KeyAnswers.")
	assert.True(t, keyMap[KeyResponses.Name()], "Keys() should include KeyResponses.")
}

// TestState_Immutability verifies that modifications to retrieved slices or maps
// do not affect the original State instance, ensuring immutability.
func TestState_Immutability(t *testing.T) {
	answers := AnswerMap{"M1": 1, "M2": 2, "M3": 3}
	state := With(NewState(), KeyAnswers, answers)

	answers["M1"] = 7

	retrieved, ok := Get(state, KeyAnswers)
	require.True(t, ok, "Should retrieve answers.")
	assert.Equal(t, 1, retrieved["M1"], "State should not be affected by external map modifications.")

	retrieved["M2"] = 7
	again, _ := Get(state, KeyAnswers)
	assert.Equal(t, 2, again["M2"], "State should not be affected by modifications to a retrieved map.")
}

// TestState_DeepCopy ensures that complex data types are deeply copied when added to
// or retrieved from a State instance, preventing unintended side effects.
func TestState_DeepCopy(t *testing.T) {
	t.Run("answers", func(t *testing.T) {
		answers := AnswerMap{"M1": 4, "M2": 2}
		state := With(NewState(), KeyAnswers, answers)

		answers["M1"] = 0
		answers["X9"] = 5

		got, ok := Get(state, KeyAnswers)
		require.True(t, ok)
		assert.Equal(t, AnswerMap{"M1": 4, "M2": 2}, got)

		got["M2"] = 6
		again, _ := Get(state, KeyAnswers)
		assert.Equal(t, 2, again["M2"], "a value read from State must not alias it")
	})

	t.Run("set order", func(t *testing.T) {
		sets := []Set{{
			ID:   "S01",
			Axis: AxisMotivation,
			Items: [2]Item{
				{ID: "M1", Axis: AxisMotivation, Dimension: DimensionIntrinsic},
				{ID: "M2", Axis: AxisMotivation, Dimension: DimensionExtrinsic},
			},
		}}
		state := With(NewState(), KeySetOrder, sets)

		sets[0].ID = "changed"
		sets[0].Items[0].ID = "changed"

		got, ok := Get(state, KeySetOrder)
		require.True(t, ok)
		assert.Equal(t, "S01", got[0].ID)
		assert.Equal(t, "M1", got[0].Items[0].ID)
	})

	t.Run("responses with nested scores", func(t *testing.T) {
		submitted := time.Date(2024, time.May, 2, 14, 0, 0, 0, time.UTC)
		responses := []StoredResponse{{
			ID:             "r1",
			LeadershipType: "ICRD",
			AxisScores:     StoredAxisScores{"motivation": {"intrinsic": 62.5, "extrinsic": 37.5}},
			Pole:           StoredPoles{"motivation": "intrinsic"},
			SubmittedAt:    submitted,
		}}
		state := With(NewState(), KeyResponses, responses)

		responses[0].AxisScores["motivation"]["intrinsic"] = 0
		responses[0].Pole["motivation"] = "extrinsic"

		got, ok := Get(state, KeyResponses)
		require.True(t, ok)
		assert.Equal(t, 62.5, got[0].AxisScores["motivation"]["intrinsic"])
		assert.Equal(t, "intrinsic", got[0].Pole["motivation"])
		assert.True(t, submitted.Equal(got[0].SubmittedAt))
	})

	t.Run("result pointer", func(t *testing.T) {
		result := &Result{Code: "ICRD", Scores: []AxisScore{{Axis: AxisMotivation, Score1: 60, Score2: 40}}}
		state := With(NewState(), KeyResult, result)

		result.Code = "ESPN"
		result.Scores[0].Score1 = 10

		got, ok := Get(state, KeyResult)
		require.True(t, ok)
		assert.NotSame(t, result, got)
		assert.Equal(t, "ICRD", got.Code)
		assert.Equal(t, 60.0, got.Scores[0].Score1)
	})

	t.Run("nil slices read back empty", func(t *testing.T) {
		state := With(NewState(), KeyResponses, []StoredResponse(nil))
		got, ok := Get(state, KeyResponses)
		require.True(t, ok)
		assert.Empty(t, got)
	})
}

// TestState_String tests the string representation of a State instance.
func TestState_String(t *testing.T) {
	state := With(NewState(), KeySessionCode, "TEAM01")
	str := state.String()

	assert.NotEmpty(t, str, "String() should return a non-empty representation.")
	assert.Contains(t, str, "State", "String() should contain 'State'.")
}

// TestState_ConcurrentAccess verifies the thread safety of the State instance.
// It runs concurrent reads and writes to ensure that the immutable design
// prevents race conditions.
func TestState_ConcurrentAccess(t *testing.T) {
	t.Run("concurrent reads", func(t *testing.T) {
		answers := AnswerMap{"M1": 1, "M2": 2, "M3": 3}
		customKey := Key[map[string]int]{"data"}

		state := With(With(With(NewState(),
			KeySessionCode, "TEAM01"),
			KeyAnswers, answers),
			customKey, map[string]int{"count": 100})

		const numReaders = 100
		done := make(chan bool, numReaders)

		for i := 0; i < numReaders; i++ {
			go func(id int) {
				defer func() { done <- true }()

				for j := 0; j < 100; j++ {
					c, ok := Get(state, KeySessionCode)
					assert.True(t, ok, "Reader %d: Should get session code.", id)
					assert.Equal(t, "TEAM01", c, "Reader %d: Session code mismatch.", id)

					a, ok := Get(state, KeyAnswers)
					assert.True(t, ok, "Reader %d: Should get answers.", id)
					assert.Len(t, a, 3, "Reader %d: Answers length mismatch.", id)

					d, ok := Get(state, customKey)
					assert.True(t, ok, "Reader %d: Should get data.", id)
					assert.NotNil(t, d, "Reader %d: Data should not be nil.", id)

					keys := state.Keys()
					assert.Len(t, keys, 3, "Reader %d: Keys length mismatch.", id)
				}
			}(i)
		}

		for i := 0; i < numReaders; i++ {
			<-done
		}
	})

	t.Run("concurrent writes create independent states", func(t *testing.T) {
		baseState := With(NewState(), KeySessionCode, "initial")

		const numWriters = 50
		states := make([]State, numWriters)
		done := make(chan bool, numWriters)

		for i := 0; i < numWriters; i++ {
			go func(id int) {
				defer func() { done <- true }()

				writerKey := Key[int]{fmt.Sprintf("writer_%d", id)}
				newState := With(baseState, writerKey, id)
				states[id] = newState

				val, ok := Get(newState, writerKey)
				assert.True(t, ok, "Writer %d: Should have its own key.", id)
				assert.Equal(t, id, val, "Writer %d: Value mismatch.", id)

				c, ok := Get(baseState, KeySessionCode)
				assert.True(t, ok, "Writer %d: Base should have the session code.", id)
				assert.Equal(t, "initial", c, "Writer %d: Base session code should be unchanged.", id)
			}(i)
		}

		for i := 0; i < numWriters; i++ {
			<-done
		}

		for i := 0; i < numWriters; i++ {
			keys := states[i].Keys()
			assert.Len(t, keys, 2, "State %d should have 2 keys.", i)

			for j := 0; j < numWriters; j++ {
				if i != j {
					otherKey := Key[int]{fmt.Sprintf("writer_%d", j)}
					_, ok := Get(states[i], otherKey)
					assert.False(t, ok, "State %d should not have a key from writer %d.", i, j)
				}
			}
		}
	})
}

// TestState_ExecutionContext verifies the handling of execution context within a State instance.
func TestState_ExecutionContext(t *testing.T) {
	ctx := ExecutionContext{
		PipelineID:  "score",
		Operation:   "score",
		ExecutionID: "exec-456",
	}

	state := NewState().WithExecutionContext(ctx)

	pipelineID, ok := Get(state, KeyPipelineID)
	require.True(t, ok, "Should have a pipeline ID.")
	assert.Equal(t, "score", pipelineID, "Pipeline ID mismatch.")

	op, ok := Get(state, KeyOperation)
	require.True(t, ok, "Should have an operation.")
	assert.Equal(t, "score", op, "Operation mismatch.")

	execID, ok := Get(state, KeyExecutionID)
	require.True(t, ok, "Should have an execution ID.")
	assert.Equal(t, "exec-456", execID, "Execution ID mismatch.")

	retrievedCtx, ok := state.GetExecutionContext()
	require.True(t, ok, "Should retrieve the execution context.")
	assert.Equal(t, ctx, retrievedCtx, "Retrieved context should match.")

	emptyState := NewState()
	_, ok = emptyState.GetExecutionContext()
	assert.False(t, ok, "Should not retrieve a context from an empty state.")

	partial := With(NewState(), KeyPipelineID, "score")
	_, ok = partial.GetExecutionContext()
	assert.False(t, ok, "Should not retrieve a context when fields are missing.")
}

// TestState_TypedKeys verifies the compile-time type safety provided by generic Keys.
// It also confirms that keys with the same name but different types will overwrite each other.
func TestState_TypedKeys(t *testing.T) {
	intKey := NewKey[int]("count")
	stringKey := NewKey[string]("message")

	state := With(With(NewState(),
		intKey, 42),
		stringKey, "forty-two")

	intVal, ok := Get(state, intKey)
	require.True(t, ok, "Should get the int value.")
	assert.Equal(t, 42, intVal, "Int value mismatch.")

	strVal, ok := Get(state, stringKey)
	require.True(t, ok, "Should get the string value.")
	assert.Equal(t, "forty-two", strVal, "String value mismatch.")

	keys := state.Keys()
	assert.Len(t, keys, 2, "Should have two distinct keys.")

	overwriteKey1 := Key[int]{"shared"}
	overwriteKey2 := Key[string]{"shared"}

	state2 := With(NewState(), overwriteKey1, 100)
	state2 = With(state2, overwriteKey2, "hundred")

	_, ok = Get(state2, overwriteKey1)
	assert.False(t, ok, "The int value should be overwritten.")

	strVal2, ok := Get(state2, overwriteKey2)
	require.True(t, ok, "The string value should exist.")
	assert.Equal(t, "hundred", strVal2, "The string value should be stored.")
}

// TestState_ComplexTypes tests the ability of a State instance to handle
// time values, slices of maps, and report pointers.
func TestState_ComplexTypes(t *testing.T) {
	now := time.Now()

	timeKey := Key[time.Time]{"timestamp"}
	sliceMapKey := Key[[]map[string]any]{"complex"}

	complexData := []map[string]any{
		{"name": "test", "value": 123},
		{"name": "another", "value": 456},
	}

	report := EmptyReport()
	report.TotalResponses = 3
	report.TypeDistribution = []TypeCount{{Type: "ISPN", Count: 3, Ratio: 1}}

	state := With(With(With(NewState(),
		timeKey, now),
		sliceMapKey, complexData),
		KeyReport, &report)

	gotTime, ok := Get(state, timeKey)
	require.True(t, ok, "Should get the time.")
	assert.True(t, now.Equal(gotTime), "Time mismatch.")

	gotComplex, ok := Get(state, sliceMapKey)
	require.True(t, ok, "Should get the complex data.")
	assert.Len(t, gotComplex, 2, "Complex data length mismatch.")

	gotReport, ok := Get(state, KeyReport)
	require.True(t, ok, "Should get the report.")
	assert.Equal(t, 3, gotReport.TotalResponses, "Report total mismatch.")
	require.Len(t, gotReport.TypeDistribution, 1, "Report distribution length mismatch.")
	assert.Equal(t, "ISPN", gotReport.TypeDistribution[0].Type, "Report type mismatch.")

	report.TypeDistribution[0].Count = 99
	again, _ := Get(state, KeyReport)
	assert.Equal(t, 3, again.TypeDistribution[0].Count, "Stored report should be a deep copy.")
}

func TestState_KeysSorted(t *testing.T) {
	state := NewState().WithExecutionContext(ExecutionContext{
		PipelineID:  "score",
		Operation:   "score",
		ExecutionID: "e1",
	})
	state = With(state, KeyAnswers, AnswerMap{"M1": 3})

	assert.Equal(t, []string{
		"answers",
		"execution.execution_id",
		"execution.operation",
		"execution.pipeline_id",
	}, state.Keys())
}

func TestState_ZeroValue(t *testing.T) {
	var state State
	_, ok := Get(state, KeyAnswers)
	assert.False(t, ok)

	next := With(state, KeySessionCode, "TEAM01")
	code, ok := Get(next, KeySessionCode)
	require.True(t, ok)
	assert.Equal(t, "TEAM01", code)
	assert.Empty(t, state.Keys())
}
