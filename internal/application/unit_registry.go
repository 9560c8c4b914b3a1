package application

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ahrav/go-mfdc/infrastructure/units"
	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// catalogFactory builds a built-in unit against the catalog current at
// creation time.
type catalogFactory func(id string, params map[string]any, catalog *domain.Catalog) (ports.Unit, error)

var builtinUnits = map[string]catalogFactory{
	"shuffle": func(id string, params map[string]any, catalog *domain.Catalog) (ports.Unit, error) {
		return asUnit(units.CreateShuffleUnit(id, params, catalog))
	},
	"score": func(id string, params map[string]any, catalog *domain.Catalog) (ports.Unit, error) {
		return asUnit(units.CreateScoreUnit(id, params, catalog))
	},
	"aggregate": func(id string, params map[string]any, _ *domain.Catalog) (ports.Unit, error) {
		return asUnit(units.CreateAggregateUnit(id, params))
	},
}

// asUnit keeps a failed constructor's nil pointer out of the interface.
func asUnit[U ports.Unit](u U, err error) (ports.Unit, error) {
	if err != nil {
		return nil, err
	}
	return u, nil
}

// DefaultUnitRegistry creates units by type. The shuffle, score and
// aggregate types are always available and receive the registry's catalog.
// Factories added with RegisterUnitFactory take precedence over them.
type DefaultUnitRegistry struct {
	mu      sync.RWMutex
	custom  map[string]ports.UnitFactory
	catalog *domain.Catalog
}

// NewDefaultUnitRegistry returns a registry whose built-in units read
// catalog.
func NewDefaultUnitRegistry(catalog *domain.Catalog) *DefaultUnitRegistry {
	return &DefaultUnitRegistry{
		custom:  make(map[string]ports.UnitFactory),
		catalog: catalog,
	}
}

// CreateUnit builds a unit of unitType named id. A nil params map is
// treated as empty.
func (r *DefaultUnitRegistry) CreateUnit(unitType, id string, params map[string]any) (ports.Unit, error) {
	r.mu.RLock()
	factory, isCustom := r.custom[unitType]
	builtin, isBuiltin := builtinUnits[unitType]
	catalog := r.catalog
	r.mu.RUnlock()

	if !isCustom && !isBuiltin {
		return nil, fmt.Errorf("unsupported unit type: %s", unitType)
	}
	if id == "" {
		return nil, errors.New("unit ID cannot be empty")
	}
	if params == nil {
		params = make(map[string]any)
	}

	var (
		unit ports.Unit
		err  error
	)
	if isCustom {
		unit, err = factory(id, params)
	} else {
		unit, err = builtin(id, params, catalog)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}
	return unit, nil
}

// RegisterUnitFactory adds or replaces the factory for unitType.
func (r *DefaultUnitRegistry) RegisterUnitFactory(unitType string, factory ports.UnitFactory) error {
	if unitType == "" {
		return errors.New("unit type cannot be empty")
	}
	if factory == nil {
		return errors.New("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[unitType] = factory
	return nil
}

// GetSupportedTypes returns every creatable unit type, sorted.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := slices.Collect(maps.Keys(builtinUnits))
	for unitType := range r.custom {
		if _, ok := builtinUnits[unitType]; !ok {
			types = append(types, unitType)
		}
	}
	slices.Sort(types)
	return types
}

// SetCatalog swaps the catalog handed to built-in units created from now
// on. Existing units keep theirs.
func (r *DefaultUnitRegistry) SetCatalog(catalog *domain.Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog = catalog
}

// Catalog returns the catalog handed to new built-in units.
func (r *DefaultUnitRegistry) Catalog() *domain.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}
