package application

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-mfdc/internal/domain"
)

// newValidator returns a validator with the engine's custom tags
// registered.
func newValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return v, nil
}

// registerCustomValidators registers domain-specific validation functions
// with the validator instance.
// registerCustomValidators returns an error if any validator registration fails.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := RegisterCatalogValidators(v); err != nil {
		return fmt.Errorf("failed to register catalog validators: %w", err)
	}
	return nil
}

// RegisterCatalogValidators registers the axisname and dimensionname tags,
// which accept any spelling that canonicalises to a known axis or
// dimension ("motivation", " Intrinsic ").
func RegisterCatalogValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("axisname", validateAxisName); err != nil {
		return fmt.Errorf("failed to register axisname validator: %w", err)
	}
	if err := v.RegisterValidation("dimensionname", validateDimensionName); err != nil {
		return fmt.Errorf("failed to register dimensionname validator: %w", err)
	}
	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

func validateAxisName(fl validator.FieldLevel) bool {
	return domain.CanonicalAxis(fl.Field().String()).Valid()
}

func validateDimensionName(fl validator.FieldLevel) bool {
	d := domain.CanonicalDimension(fl.Field().String())
	for _, spec := range domain.AxisSpecs() {
		if spec.Has(d) {
			return true
		}
	}
	return false
}

// ValidateEngineConfig runs struct validation followed by the semantic
// checks struct tags cannot express: unique unit IDs, resolvable pipeline
// references, one pipeline per operation, and per-type unit parameters.
func ValidateEngineConfig(cfg *EngineConfig) error {
	v, err := newValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := validateEngineSemantics(cfg); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

func validateEngineSemantics(cfg *EngineConfig) error {
	unitTypes := make(map[string]string, len(cfg.Units))
	for _, unit := range cfg.Units {
		if _, exists := unitTypes[unit.ID]; exists {
			return fmt.Errorf("duplicate unit ID %q", unit.ID)
		}
		unitTypes[unit.ID] = unit.Type

		if err := ValidateUnitParameters(unit.Type, unit.Parameters); err != nil {
			return fmt.Errorf("unit %s parameter validation failed: %w", unit.ID, err)
		}
	}

	seen := make(map[string]struct{}, len(cfg.Pipelines))
	for _, p := range cfg.Pipelines {
		if _, exists := seen[p.ID]; exists {
			return fmt.Errorf("duplicate pipeline for operation %q", p.ID)
		}
		seen[p.ID] = struct{}{}

		for _, unitID := range p.Units {
			if _, exists := unitTypes[unitID]; !exists {
				return fmt.Errorf("pipeline %s references non-existent unit: %s", p.ID, unitID)
			}
		}
	}

	return nil
}

// ValidateUnitParameters validates the parameters for a specific unit type,
// checking names and value types before the unit factory applies them.
// ValidateUnitParameters returns an error if parameter decoding fails,
// if a parameter is unknown, or if any value is out of range.
func ValidateUnitParameters(unitType string, params yaml.Node) error {
	var paramMap map[string]any
	if err := params.Decode(&paramMap); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	switch unitType {
	case "shuffle":
		return validateShuffleParams(paramMap)
	case "score":
		return validateScoreParams(paramMap)
	case "aggregate":
		return validateAggregateParams(paramMap)
	default:
		return fmt.Errorf("unknown unit type: %s", unitType)
	}
}

// validateShuffleParams accepts an optional boolean require_session.
func validateShuffleParams(params map[string]any) error {
	if err := rejectUnknown("shuffle", params, "require_session"); err != nil {
		return err
	}
	return checkBool(params, "require_session")
}

// validateScoreParams accepts an optional boolean require_complete.
func validateScoreParams(params map[string]any) error {
	if err := rejectUnknown("score", params, "require_complete"); err != nil {
		return err
	}
	return checkBool(params, "require_complete")
}

// validateAggregateParams accepts an optional representative
// (dimension1 or bipolar) and an optional top_n between 1 and the number
// of axes.
func validateAggregateParams(params map[string]any) error {
	if err := rejectUnknown("aggregate", params, "representative", "top_n"); err != nil {
		return err
	}

	if rep, ok := params["representative"]; ok {
		repStr, ok := rep.(string)
		if !ok {
			return fmt.Errorf("representative must be a string")
		}
		valid := []string{"dimension1", "bipolar"}
		if !slices.Contains(valid, repStr) {
			return fmt.Errorf("invalid representative: %s", repStr)
		}
	}

	if topN, ok := params["top_n"]; ok {
		n, ok := topN.(int)
		if !ok {
			return fmt.Errorf("top_n must be an integer")
		}
		if n < 1 || n > len(domain.Axes()) {
			return fmt.Errorf("top_n must be between 1 and %d", len(domain.Axes()))
		}
	}

	return nil
}

func rejectUnknown(unitType string, params map[string]any, allowed ...string) error {
	for key := range params {
		if !slices.Contains(allowed, key) {
			return fmt.Errorf("%s does not accept parameter %q", unitType, key)
		}
	}
	return nil
}

func checkBool(params map[string]any, key string) error {
	if val, ok := params[key]; ok {
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", key)
		}
	}
	return nil
}
