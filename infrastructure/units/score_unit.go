package units

import (
	"context"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

var (
	_ ports.Unit    = (*ScoreUnit)(nil)
	_ domain.Scorer = (*ScoreUnit)(nil)
)

// hundredths is the fixed-point scale used to round pole scores.
const hundredths = 100

// Score classifies one participant against catalog. For each axis it takes
// the mean of the answered, on-scale items of each dimension, normalises the
// two means onto domain.ScaleTotal, rounds the first score to hundredths and
// derives the second so the pair sums to the total exactly. The dominant
// dimension is dimension1 only when its score is strictly greater; ties go
// to dimension2.
//
// Score never fails and never modifies its inputs. A dimension without any
// usable answer contributes a mean of zero; an axis with no usable answers
// at all scores an even split.
func Score(answers domain.AnswerMap, catalog *domain.Catalog) domain.Result {
	specs := domain.AxisSpecs()
	result := domain.Result{Scores: make([]domain.AxisScore, 0, len(specs))}
	code := make([]byte, 0, len(specs))

	for _, spec := range specs {
		mean1 := dimensionMean(answers, catalog.ItemsFor(spec.Axis, spec.Dimension1))
		mean2 := dimensionMean(answers, catalog.ItemsFor(spec.Axis, spec.Dimension2))

		total := int64(domain.ScaleTotal * hundredths)
		s1 := total / 2
		if sum := mean1 + mean2; sum > 0 {
			s1 = int64(math.Round(float64(total) * mean1 / sum))
		}
		s2 := total - s1

		dominant, letter := spec.Dimension2, spec.Code2
		if s1 > s2 {
			dominant, letter = spec.Dimension1, spec.Code1
		}

		result.Scores = append(result.Scores, domain.AxisScore{
			Axis:       spec.Axis,
			Dimension1: spec.Dimension1,
			Dimension2: spec.Dimension2,
			Score1:     float64(s1) / hundredths,
			Score2:     float64(s2) / hundredths,
			Dominant:   dominant,
		})
		code = append(code, letter)
	}

	result.Code = string(code)
	return result
}

// dimensionMean averages the on-scale answers to items. Missing and
// out-of-range answers are left out of the denominator.
func dimensionMean(answers domain.AnswerMap, items []domain.Item) float64 {
	var sum, n int
	for _, it := range items {
		if v, ok := answers.Lookup(it.ID); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// ScoreUnit scores the answer map found in the State against the catalog
// and stores the Result. The unit is stateless and thread-safe.
type ScoreUnit struct {
	name    string
	config  ScoreConfig
	catalog *domain.Catalog
}

// ScoreConfig defines the configuration parameters for the ScoreUnit.
type ScoreConfig struct {
	// RequireComplete rejects answer maps that do not hold exactly one
	// on-scale answer per catalog item. Scoring itself tolerates gaps;
	// submissions do not.
	RequireComplete bool `yaml:"require_complete" json:"require_complete"`
}

// NewScoreUnit creates a new ScoreUnit over catalog.
func NewScoreUnit(name string, config ScoreConfig, catalog *domain.Catalog) (*ScoreUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if catalog == nil {
		return nil, ErrNilCatalog
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ScoreUnit{name: name, config: config, catalog: catalog}, nil
}

// Name returns the unique identifier for this unit instance.
func (su *ScoreUnit) Name() string { return su.name }

// Execute reads the answers from the state and writes the Result.
func (su *ScoreUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if err := ctx.Err(); err != nil {
		return state, err
	}

	answers, ok := domain.Get(state, domain.KeyAnswers)
	if !ok {
		return state, domain.MissingKey(domain.KeyAnswers, su.name)
	}

	if su.config.RequireComplete {
		if err := answers.ValidateComplete(su.catalog); err != nil {
			return state, fmt.Errorf("%w: %w", ErrIncompleteAnswers, err)
		}
	}

	result := su.Score(answers)
	return domain.With(state, domain.KeyResult, &result), nil
}

// Score implements domain.Scorer against the unit's catalog.
func (su *ScoreUnit) Score(answers domain.AnswerMap) domain.Result {
	return Score(answers, su.catalog)
}

// Validate checks if the unit is properly configured.
func (su *ScoreUnit) Validate() error {
	if su.catalog == nil {
		return ErrNilCatalog
	}
	if err := validate.Struct(su.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML parameters into the unit's config.
func (su *ScoreUnit) UnmarshalParameters(params yaml.Node) error {
	var config ScoreConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	su.config = config
	return nil
}

// DefaultScoreConfig returns a ScoreConfig with sensible defaults.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{RequireComplete: false}
}

// CreateScoreUnit is a factory function that creates a ScoreUnit from a
// configuration map, for use with the UnitRegistry.
func CreateScoreUnit(id string, config map[string]any, catalog *domain.Catalog) (*ScoreUnit, error) {
	cfg := DefaultScoreConfig()
	if val, ok := config["require_complete"].(bool); ok {
		cfg.RequireComplete = val
	}
	return NewScoreUnit(id, cfg, catalog)
}
