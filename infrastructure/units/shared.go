// Package units provides the engine's pipeline units. Each unit implements
// ports.Unit and exposes its pure operation alongside Execute so callers
// outside a pipeline can use it directly.
package units

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrNilCatalog is returned when a unit that needs the question catalog
	// is created without one.
	ErrNilCatalog = errors.New("catalog cannot be nil")

	// ErrEmptySession is returned when a unit requires a session code and
	// the state carries an empty one.
	ErrEmptySession = errors.New("session code cannot be empty")

	// ErrIncompleteAnswers is returned when complete answers are required
	// and the answer map does not cover the catalog.
	ErrIncompleteAnswers = errors.New("answers do not cover the catalog")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()
