package units

import (
	"context"
	"fmt"
	"math"
	"unicode/utf16"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

var (
	_ ports.Unit      = (*ShuffleUnit)(nil)
	_ domain.Shuffler = (*ShuffleUnit)(nil)
)

// LCG parameters for the presentation-order generator.
const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// Seed derives the generator seed from a session identifier. Each UTF-16
// code unit is folded into a 32-bit signed accumulator as hash*31 + code
// with wraparound, and the absolute value is returned.
func Seed(sessionID string) int64 {
	var hash int32
	for _, cu := range utf16.Encode([]rune(sessionID)) {
		hash = (hash << 5) - hash + int32(cu)
	}
	seed := int64(hash)
	if seed < 0 {
		seed = -seed
	}
	return seed
}

// lcg is the linear-congruential generator driving the shuffle.
type lcg struct{ state int64 }

// next advances the state and returns a draw in [0, 1).
func (g *lcg) next() float64 {
	g.state = (g.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(g.state) / lcgModulus
}

// Shuffle returns the presentation order of sets for sessionID.
// The result is a new slice; sets is never modified. The same session
// identifier and input always produce the same order.
func Shuffle(sessionID string, sets []domain.Set) []domain.Set {
	out := make([]domain.Set, len(sets))
	copy(out, sets)
	if len(out) < 2 {
		return out
	}

	g := &lcg{state: Seed(sessionID)}
	for i := len(out) - 1; i > 0; i-- {
		j := int(math.Floor(g.next() * float64(i+1)))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ShuffleUnit computes a session's set order from the catalog.
// The unit is stateless and thread-safe.
type ShuffleUnit struct {
	name    string
	config  ShuffleConfig
	catalog *domain.Catalog
}

// ShuffleConfig defines the configuration parameters for the ShuffleUnit.
type ShuffleConfig struct {
	// RequireSession rejects states whose session code is empty.
	RequireSession bool `yaml:"require_session" json:"require_session"`
}

// NewShuffleUnit creates a new ShuffleUnit over catalog.
func NewShuffleUnit(name string, config ShuffleConfig, catalog *domain.Catalog) (*ShuffleUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if catalog == nil {
		return nil, ErrNilCatalog
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ShuffleUnit{name: name, config: config, catalog: catalog}, nil
}

// Name returns the unique identifier for this unit instance.
func (su *ShuffleUnit) Name() string { return su.name }

// Execute reads the session code and writes the shuffled set order.
// When the state already carries a set order, that order is shuffled
// instead of the catalog's.
func (su *ShuffleUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if err := ctx.Err(); err != nil {
		return state, err
	}

	sessionID, ok := domain.Get(state, domain.KeySessionCode)
	if !ok {
		return state, domain.MissingKey(domain.KeySessionCode, su.name)
	}
	if sessionID == "" && su.config.RequireSession {
		return state, ErrEmptySession
	}

	sets, ok := domain.Get(state, domain.KeySetOrder)
	if !ok {
		sets = su.catalog.Sets()
	}

	return domain.With(state, domain.KeySetOrder, Shuffle(sessionID, sets)), nil
}

// Shuffle implements domain.Shuffler.
func (su *ShuffleUnit) Shuffle(sessionID string, sets []domain.Set) []domain.Set {
	return Shuffle(sessionID, sets)
}

// Validate checks if the unit is properly configured.
func (su *ShuffleUnit) Validate() error {
	if su.catalog == nil {
		return ErrNilCatalog
	}
	if err := validate.Struct(su.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML parameters into the unit's config.
func (su *ShuffleUnit) UnmarshalParameters(params yaml.Node) error {
	var config ShuffleConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	su.config = config
	return nil
}

// DefaultShuffleConfig returns a ShuffleConfig with sensible defaults.
func DefaultShuffleConfig() ShuffleConfig {
	return ShuffleConfig{RequireSession: true}
}

// CreateShuffleUnit is a factory function that creates a ShuffleUnit from a
// configuration map, for use with the UnitRegistry.
func CreateShuffleUnit(id string, config map[string]any, catalog *domain.Catalog) (*ShuffleUnit, error) {
	cfg := DefaultShuffleConfig()
	if val, ok := config["require_session"].(bool); ok {
		cfg.RequireSession = val
	}
	return NewShuffleUnit(id, cfg, catalog)
}
