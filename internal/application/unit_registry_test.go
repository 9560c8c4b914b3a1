package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-mfdc/infrastructure/units"
	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
	"github.com/ahrav/go-mfdc/internal/testutils"
)

// testMockUnit implements ports.Unit for testing custom factory registration.
type testMockUnit struct {
	name string
}

func (m *testMockUnit) Name() string {
	return m.name
}

func (m *testMockUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return state, nil
}

func (m *testMockUnit) Validate() error {
	return nil
}

func TestNewDefaultUnitRegistry(t *testing.T) {
	t.Run("creates registry with catalog", func(t *testing.T) {
		catalog := testutils.Catalog()
		registry := NewDefaultUnitRegistry(catalog)

		assert.NotNil(t, registry)
		assert.Empty(t, registry.custom)
		assert.Same(t, catalog, registry.Catalog())

		supportedTypes := registry.GetSupportedTypes()
		assert.Equal(t, []string{"aggregate", "score", "shuffle"}, supportedTypes)
	})

	t.Run("creates registry with nil catalog", func(t *testing.T) {
		registry := NewDefaultUnitRegistry(nil)

		assert.NotNil(t, registry)
		assert.Nil(t, registry.Catalog())
		assert.Len(t, registry.GetSupportedTypes(), 3)

		// Only the catalog-free unit can be built.
		_, err := registry.CreateUnit("aggregate", "agg", nil)
		require.NoError(t, err)

		_, err = registry.CreateUnit("score", "score", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, units.ErrNilCatalog)
	})
}

func TestCreateUnit_Success(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.Catalog())

	tests := []struct {
		name     string
		unitType string
		unitID   string
		config   map[string]any
	}{
		{
			name:     "creates shuffle unit",
			unitType: "shuffle",
			unitID:   "order",
			config:   map[string]any{"require_session": true},
		},
		{
			name:     "creates score unit",
			unitType: "score",
			unitID:   "scorer",
			config:   map[string]any{"require_complete": true},
		},
		{
			name:     "creates aggregate unit with yaml-decoded ints",
			unitType: "aggregate",
			unitID:   "report",
			config:   map[string]any{"representative": "bipolar", "top_n": 3},
		},
		{
			name:     "creates aggregate unit with json-decoded numbers",
			unitType: "aggregate",
			unitID:   "report_json",
			config:   map[string]any{"top_n": float64(4)},
		},
		{
			name:     "creates unit with nil config",
			unitType: "score",
			unitID:   "nil_config",
			config:   nil,
		},
		{
			name:     "creates unit with empty config",
			unitType: "shuffle",
			unitID:   "empty_config",
			config:   map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := registry.CreateUnit(tt.unitType, tt.unitID, tt.config)
			require.NoError(t, err)
			assert.NotNil(t, unit)
			assert.Equal(t, tt.unitID, unit.Name())
			assert.NoError(t, unit.Validate())
		})
	}
}

func TestCreateUnit_Errors(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.Catalog())

	tests := []struct {
		name          string
		unitType      string
		unitID        string
		config        map[string]any
		expectedError string
	}{
		{
			name:          "fails with unsupported unit type",
			unitType:      "unsupported",
			unitID:        "test_id",
			config:        map[string]any{},
			expectedError: "unsupported unit type",
		},
		{
			name:          "fails with empty unit ID",
			unitType:      "score",
			unitID:        "",
			config:        map[string]any{},
			expectedError: "unit ID cannot be empty",
		},
		{
			name:          "fails with unknown representative",
			unitType:      "aggregate",
			unitID:        "bad_report",
			config:        map[string]any{"representative": "median"},
			expectedError: "failed to create unit",
		},
		{
			name:          "fails with top_n out of range",
			unitType:      "aggregate",
			unitID:        "bad_top_n",
			config:        map[string]any{"top_n": 9},
			expectedError: "failed to create unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := registry.CreateUnit(tt.unitType, tt.unitID, tt.config)
			require.Error(t, err)
			assert.Nil(t, unit)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestRegisterUnitFactory(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.Catalog())

	t.Run("registers new factory successfully", func(t *testing.T) {
		customFactory := func(id string, config map[string]any) (ports.Unit, error) {
			return &testMockUnit{name: id}, nil
		}

		err := registry.RegisterUnitFactory("custom", customFactory)
		require.NoError(t, err)

		supportedTypes := registry.GetSupportedTypes()
		assert.Contains(t, supportedTypes, "custom")

		unit, err := registry.CreateUnit("custom", "test_custom", nil)
		require.NoError(t, err)
		assert.Equal(t, "test_custom", unit.Name())
	})

	t.Run("overrides existing factory", func(t *testing.T) {
		factory1 := func(id string, config map[string]any) (ports.Unit, error) {
			return &testMockUnit{name: "factory1_" + id}, nil
		}
		require.NoError(t, registry.RegisterUnitFactory("override_test", factory1))

		unit1, err := registry.CreateUnit("override_test", "unit", nil)
		require.NoError(t, err)
		assert.Equal(t, "factory1_unit", unit1.Name())

		factory2 := func(id string, config map[string]any) (ports.Unit, error) {
			return &testMockUnit{name: "factory2_" + id}, nil
		}
		require.NoError(t, registry.RegisterUnitFactory("override_test", factory2))

		unit2, err := registry.CreateUnit("override_test", "unit", nil)
		require.NoError(t, err)
		assert.Equal(t, "factory2_unit", unit2.Name())
	})

	t.Run("factory error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		require.NoError(t, registry.RegisterUnitFactory("broken", func(string, map[string]any) (ports.Unit, error) {
			return nil, boom
		}))

		_, err := registry.CreateUnit("broken", "b1", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failed to create unit b1 of type broken")
	})

	t.Run("fails with empty unit type", func(t *testing.T) {
		customFactory := func(id string, config map[string]any) (ports.Unit, error) {
			return &testMockUnit{name: id}, nil
		}

		err := registry.RegisterUnitFactory("", customFactory)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unit type cannot be empty")
	})

	t.Run("fails with nil factory", func(t *testing.T) {
		err := registry.RegisterUnitFactory("nil_factory", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "factory function cannot be nil")
	})
}

func TestGetSupportedTypes(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.Catalog())

	t.Run("returns built-in types sorted", func(t *testing.T) {
		assert.Equal(t, []string{"aggregate", "score", "shuffle"}, registry.GetSupportedTypes())
	})

	t.Run("includes custom registered types", func(t *testing.T) {
		customFactory := func(id string, config map[string]any) (ports.Unit, error) {
			return &testMockUnit{name: id}, nil
		}
		require.NoError(t, registry.RegisterUnitFactory("custom_type", customFactory))

		types := registry.GetSupportedTypes()
		assert.Contains(t, types, "custom_type")
		assert.Len(t, types, 4)
	})
}

func TestSetCatalog(t *testing.T) {
	initial := testutils.Catalog()
	registry := NewDefaultUnitRegistry(initial)

	t.Run("updates catalog", func(t *testing.T) {
		assert.Same(t, initial, registry.Catalog())

		replacement := domain.NewCatalog(initial.Sets()[:4])
		registry.SetCatalog(replacement)
		assert.Same(t, replacement, registry.Catalog())

		unit, err := registry.CreateUnit("shuffle", "order", nil)
		require.NoError(t, err)

		state := domain.With(domain.NewState(), domain.KeySessionCode, "TEAM01")
		out, err := unit.Execute(context.Background(), state)
		require.NoError(t, err)
		sets, ok := domain.Get(out, domain.KeySetOrder)
		require.True(t, ok)
		assert.Len(t, sets, 4)
	})

	t.Run("keeps custom factories", func(t *testing.T) {
		customFactory := func(id string, config map[string]any) (ports.Unit, error) {
			return &testMockUnit{name: id}, nil
		}
		require.NoError(t, registry.RegisterUnitFactory("custom", customFactory))

		registry.SetCatalog(initial)
		assert.Contains(t, registry.GetSupportedTypes(), "custom")
	})
}

func TestThreadSafety_CreateUnit(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.Catalog())

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	errs := make(chan error, numGoroutines)

	for i := range numGoroutines {
		go func(id int) {
			defer wg.Done()

			unit, err := registry.CreateUnit("score", fmt.Sprintf("unit_%d", id), map[string]any{
				"require_complete": true,
			})
			if err != nil {
				errs <- err
				return
			}
			if unit.Name() != fmt.Sprintf("unit_%d", id) {
				errs <- fmt.Errorf("unexpected unit name: %s", unit.Name())
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent error: %v", err)
	}
}

func TestThreadSafety_RegisterAndCreate(t *testing.T) {
	registry := NewDefaultUnitRegistry(testutils.Catalog())

	const numOperations = 20
	var wg sync.WaitGroup
	wg.Add(numOperations)

	errs := make(chan error, numOperations)

	for i := range numOperations {
		go func(id int) {
			defer wg.Done()

			if id%2 == 0 {
				factory := func(unitID string, config map[string]any) (ports.Unit, error) {
					return &testMockUnit{name: unitID}, nil
				}
				if err := registry.RegisterUnitFactory(fmt.Sprintf("type_%d", id), factory); err != nil {
					errs <- err
				}
				return
			}

			unitType := "aggregate"
			if id > 10 {
				unitType = fmt.Sprintf("type_%d", id-1)
			}
			if _, err := registry.CreateUnit(unitType, fmt.Sprintf("unit_%d", id), nil); err != nil && !isExpectedError(err) {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent error: %v", err)
	}
}

// TestRaceConditions should be run with -race flag.
func TestRaceConditions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping race condition test in short mode")
	}

	catalog := testutils.Catalog()
	registry := NewDefaultUnitRegistry(catalog)

	const numGoroutines = 50
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := range numGoroutines {
		go func(id int) {
			defer wg.Done()

			switch id % 5 {
			case 0:
				factory := func(unitID string, config map[string]any) (ports.Unit, error) {
					return &testMockUnit{name: unitID}, nil
				}
				_ = registry.RegisterUnitFactory(fmt.Sprintf("stress_%d", id), factory)
			case 1:
				_, _ = registry.CreateUnit("shuffle", fmt.Sprintf("stress_unit_%d", id), nil)
			case 2:
				_ = registry.GetSupportedTypes()
			case 3:
				registry.SetCatalog(catalog)
			case 4:
				_ = registry.Catalog()
			}

			time.Sleep(time.Microsecond * time.Duration(id))
		}(i)
	}

	wg.Wait()
}

// isExpectedError reports whether err is a legitimate outcome of creating a
// unit whose type may not be registered yet.
func isExpectedError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unsupported unit type") ||
		strings.Contains(errStr, "failed to create unit")
}
