package application

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-mfdc/internal/ports"
)

//go:embed configs/engine.yaml
var defaultEngineYAML []byte

// EngineConfig is the complete engine configuration and the primary entry
// point for wiring the scoring pipelines.
// Use EngineConfig to choose the catalog, the storage location, and the
// parameters of each pipeline unit.
type EngineConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across releases.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about this deployment.
	Metadata Metadata `yaml:"metadata"`
	// Catalog selects the question catalog. An empty path selects the
	// embedded default catalog.
	Catalog CatalogConfig `yaml:"catalog"`
	// Storage configures response persistence.
	Storage StorageConfig `yaml:"storage"`
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`
	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
	// Tracing configures span export.
	Tracing TracingConfig `yaml:"tracing"`
	// Limits throttles engine operations.
	Limits LimitsConfig `yaml:"limits"`
	// Units defines the pipeline units, each with its own parameters.
	Units []UnitConfig `yaml:"units" validate:"required,min=1,dive"`
	// Pipelines binds each engine operation to an ordered list of units.
	Pipelines []PipelineConfig `yaml:"pipelines" validate:"required,min=1,dive"`
}

// Metadata provides descriptive information about an engine deployment.
type Metadata struct {
	// Name is the human-readable identifier for this deployment.
	Name string `yaml:"name" validate:"max=255"`
	// Description explains what the deployment is used for.
	Description string `yaml:"description" validate:"max=1000"`
}

// CatalogConfig locates the question catalog.
type CatalogConfig struct {
	// Path is a YAML catalog file. Empty selects the embedded catalog.
	Path string `yaml:"path"`
}

// StorageConfig configures where sessions, orders and responses live.
type StorageConfig struct {
	// DBPath is the SQLite database file. Empty keeps everything in memory
	// for the lifetime of the process.
	DBPath string `yaml:"db_path"`
	// OrderCacheSize bounds the in-process cache of session set orders.
	OrderCacheSize int `yaml:"order_cache_size" validate:"min=0,max=100000"`
	// Retry controls how often a busy database is retried.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig bounds retries of transient storage failures.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the first failure. Zero
	// disables retrying.
	MaxAttempts int `yaml:"max_attempts" validate:"min=0,max=10"`
	// BaseDelayMS is the first backoff delay in milliseconds; it doubles on
	// every retry up to MaxDelayMS.
	BaseDelayMS int `yaml:"base_delay_ms" validate:"min=0,max=60000"`
	// MaxDelayMS caps a single backoff delay in milliseconds.
	MaxDelayMS int `yaml:"max_delay_ms" validate:"min=0,max=60000"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is the minimum enabled level.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	// Development switches to the human-friendly console encoder.
	Development bool `yaml:"development"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables it.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
	// Namespace prefixes every exported metric name.
	Namespace string `yaml:"namespace" validate:"omitempty,max=64"`
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP traces URL, e.g.
	// http://localhost:4318/v1/traces. Empty disables export.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name" validate:"omitempty,max=64"`
}

// LimitsConfig throttles submissions across the whole engine.
type LimitsConfig struct {
	// SubmitPerSecond is the sustained submission rate. Zero disables the
	// limit.
	SubmitPerSecond float64 `yaml:"submit_per_second" validate:"min=0,max=10000"`
	// SubmitBurst is how many submissions may arrive at once before the
	// rate applies. Zero means one.
	SubmitBurst int `yaml:"submit_burst" validate:"min=0,max=10000"`
}

// UnitConfig defines a single pipeline unit.
type UnitConfig struct {
	// ID is the unique identifier for this unit and must be alphanumeric
	// for safe referencing in pipelines.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Type specifies the unit implementation to instantiate.
	Type string `yaml:"type" validate:"required,oneof=shuffle score aggregate"`
	// Parameters contains type-specific configuration as flexible YAML
	// that will be validated according to the unit type requirements.
	Parameters yaml.Node `yaml:"parameters"`
	// Timeout bounds a single execution of the unit.
	Timeout TimeoutConfig `yaml:"timeout"`
}

// TimeoutConfig controls execution time limits for a unit.
type TimeoutConfig struct {
	// ExecutionTimeout specifies the maximum time in seconds that a unit
	// is allowed to execute. Zero means no limit beyond the caller's context.
	ExecutionTimeout int `yaml:"execution_timeout_seconds" validate:"omitempty,min=1,max=3600"`
}

// Engine operations a pipeline can be bound to.
const (
	OperationOrder     = "order"
	OperationScore     = "score"
	OperationAggregate = "aggregate"
)

// PipelineConfig binds an engine operation to the units that run, in order,
// whenever that operation is invoked.
type PipelineConfig struct {
	// ID names the operation the pipeline serves.
	ID string `yaml:"id" validate:"required,oneof=order score aggregate"`
	// Units lists the unit IDs in execution order.
	Units []string `yaml:"units" validate:"required,min=1,dive,alphanum"`
}

// envOverrides are the settings operators may override from the
// environment without editing the YAML file.
type envOverrides struct {
	DBPath       string `env:"MFDC_DB_PATH"`
	CatalogPath  string `env:"MFDC_CATALOG_PATH"`
	LogLevel     string `env:"MFDC_LOG_LEVEL"`
	MetricsAddr  string `env:"MFDC_METRICS_ADDR"`
	OTelEndpoint string `env:"MFDC_OTEL_ENDPOINT"`
}

// ApplyEnv overlays the MFDC_* environment variables onto c. Only variables
// that are set and non-empty take effect.
func (c *EngineConfig) ApplyEnv() error {
	return c.applyEnv(nil)
}

// applyEnv reads overrides from environ, or from the process environment
// when environ is nil.
func (c *EngineConfig) applyEnv(environ map[string]string) error {
	o, err := env.ParseAsWithOptions[envOverrides](env.Options{Environment: environ})
	if err != nil {
		return ports.NewConfigError("environment", fmt.Errorf("failed to parse environment: %w", err))
	}

	if o.DBPath != "" {
		c.Storage.DBPath = o.DBPath
	}
	if o.CatalogPath != "" {
		c.Catalog.Path = o.CatalogPath
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.MetricsAddr != "" {
		c.Metrics.Addr = o.MetricsAddr
	}
	if o.OTelEndpoint != "" {
		c.Tracing.Endpoint = o.OTelEndpoint
	}
	return nil
}

// DefaultEngineConfig returns the built-in configuration: one pipeline per
// operation, each holding the matching unit with default parameters.
func DefaultEngineConfig() (*EngineConfig, error) {
	return ParseEngineConfig(defaultEngineYAML)
}

// LoadEngineConfig reads an engine configuration file, applies environment
// overrides, and validates the result.
// An empty path loads the built-in configuration.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data := defaultEngineYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(filepath.Clean(path))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ports.NewConfigError(path, fmt.Errorf("failed to read config: %w", ports.ErrConfigNotFound))
		}
		if err != nil {
			return nil, ports.NewConfigError(path, fmt.Errorf("failed to read config: %w", err))
		}
	}

	cfg, err := ParseEngineConfig(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := ValidateEngineConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEngineConfig strictly decodes YAML into an EngineConfig. Unknown
// fields are rejected so typos never pass silently.
// ParseEngineConfig does not validate; see ValidateEngineConfig.
func ParseEngineConfig(data []byte) (*EngineConfig, error) {
	var cfg EngineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &cfg, nil
}

// Pipeline returns the pipeline configuration for operation.
func (c *EngineConfig) Pipeline(operation string) (PipelineConfig, bool) {
	for _, p := range c.Pipelines {
		if p.ID == operation {
			return p, true
		}
	}
	return PipelineConfig{}, false
}

// Unit returns the unit configuration with the given id.
func (c *EngineConfig) Unit(id string) (UnitConfig, bool) {
	for _, u := range c.Units {
		if u.ID == id {
			return u, true
		}
	}
	return UnitConfig{}, false
}
