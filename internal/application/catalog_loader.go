package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-mfdc/internal/domain"
)

//go:embed catalogs/default.yaml
var defaultCatalogYAML []byte

// CatalogFile is the on-disk shape of a question catalog.
type CatalogFile struct {
	// Version specifies the catalog schema version.
	Version string `yaml:"version" validate:"required,semver"`
	// Sets lists the question sets in catalog order.
	Sets []SetConfig `yaml:"sets" validate:"required,min=1,dive"`
}

// SetConfig is one question set. Both items inherit the set's axis.
type SetConfig struct {
	ID    string       `yaml:"set_id" validate:"required,alphanum,max=32"`
	Axis  string       `yaml:"axis" validate:"required,axisname"`
	Items []ItemConfig `yaml:"items" validate:"len=2,dive"`
}

// ItemConfig is one statement of a set.
type ItemConfig struct {
	ID        string `yaml:"id" validate:"required,alphanum,max=32"`
	Dimension string `yaml:"dimension" validate:"required,dimensionname"`
	Statement string `yaml:"statement" validate:"required,max=500"`
}

// CatalogLoader parses, validates and caches question catalogs.
// Loaded catalogs are immutable and shared: every caller loading the same
// content receives the same *domain.Catalog.
type CatalogLoader struct {
	// validator performs struct field validation with the axisname and
	// dimensionname tags registered.
	validator *validator.Validate
	// cache stores built catalogs indexed by SHA256 hash of the
	// normalized source.
	cache   map[string]*domain.Catalog
	cacheMu sync.RWMutex
	// sf prevents duplicate builds when several goroutines load the same
	// catalog simultaneously.
	sf singleflight.Group
}

// NewCatalogLoader creates a loader with an empty cache.
// NewCatalogLoader returns an error if validator registration fails.
func NewCatalogLoader() (*CatalogLoader, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &CatalogLoader{
		validator: v,
		cache:     make(map[string]*domain.Catalog),
	}, nil
}

// LoadDefault loads the embedded 16-set catalog.
func (cl *CatalogLoader) LoadDefault(ctx context.Context) (*domain.Catalog, error) {
	return cl.load(ctx, defaultCatalogYAML)
}

// LoadFromFile loads a catalog from a YAML file.
// An empty path loads the embedded catalog.
func (cl *CatalogLoader) LoadFromFile(ctx context.Context, path string) (*domain.Catalog, error) {
	if path == "" {
		return cl.LoadDefault(ctx)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.load(ctx, data)
}

// LoadFromReader loads a catalog from r.
func (cl *CatalogLoader) LoadFromReader(ctx context.Context, r io.Reader) (*domain.Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(ctx, data)
}

func (cl *CatalogLoader) load(ctx context.Context, data []byte) (*domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := parseCatalogYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	hash, err := catalogHash(file)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if c, ok := cl.cached(hash); ok {
			return c, nil
		}

		if err := cl.validate(file); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		c := buildCatalog(file)
		cl.store(hash, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Catalog), nil
}

// parseCatalogYAML decodes strictly so misspelled keys are reported rather
// than silently ignored.
func parseCatalogYAML(data []byte) (*CatalogFile, error) {
	var file CatalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &file, nil
}

func (cl *CatalogLoader) validate(file *CatalogFile) error {
	if err := cl.validator.Struct(file); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return fmt.Errorf("struct validation failed: %w", describeFieldErrors(fieldErrs))
		}
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := validateCatalogSemantics(file); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// describeFieldErrors turns validator output into a ValidationError,
// adding a suggestion when an axis or dimension name is a near miss.
func describeFieldErrors(fieldErrs validator.ValidationErrors) *domain.ValidationError {
	verr := domain.NewValidationError("catalog")
	for _, fe := range fieldErrs {
		value := fmt.Sprint(fe.Value())
		switch fe.Tag() {
		case "axisname":
			verr.AddError(fmt.Sprintf("%s: unknown axis %q%s", fe.Namespace(), value, suggest(value, axisNames())))
		case "dimensionname":
			verr.AddError(fmt.Sprintf("%s: unknown dimension %q%s", fe.Namespace(), value, suggest(value, dimensionNames())))
		default:
			verr.AddError(fmt.Sprintf("%s: failed %q constraint", fe.Namespace(), fe.Tag()))
		}
	}
	return verr
}

// validateCatalogSemantics enforces what tags cannot: globally unique set
// and item ids, one item per dimension of the set's axis, and every axis
// represented.
func validateCatalogSemantics(file *CatalogFile) error {
	verr := domain.NewValidationError("catalog")
	setIDs := make(map[string]struct{}, len(file.Sets))
	itemIDs := make(map[string]string, len(file.Sets)*2)
	covered := make(map[domain.Axis]bool)

	for _, set := range file.Sets {
		if _, dup := setIDs[set.ID]; dup {
			verr.AddError(fmt.Sprintf("duplicate set id %s", set.ID))
		}
		setIDs[set.ID] = struct{}{}

		axis := domain.CanonicalAxis(set.Axis)
		spec, _ := domain.SpecFor(axis)
		covered[axis] = true

		dims := make(map[domain.Dimension]bool, 2)
		for _, item := range set.Items {
			if owner, dup := itemIDs[item.ID]; dup {
				verr.AddError(fmt.Sprintf("duplicate item id %s in sets %s and %s", item.ID, owner, set.ID))
			}
			itemIDs[item.ID] = set.ID

			d := domain.CanonicalDimension(item.Dimension)
			if !spec.Has(d) {
				verr.AddError(fmt.Sprintf("set %s: dimension %s does not belong to axis %s (expected %s or %s)",
					set.ID, d, axis, spec.Dimension1, spec.Dimension2))
				continue
			}
			if dims[d] {
				verr.AddError(fmt.Sprintf("set %s: both items lean toward %s", set.ID, d))
			}
			dims[d] = true
		}
	}

	for _, axis := range domain.Axes() {
		if !covered[axis] {
			verr.AddError(fmt.Sprintf("axis %s has no sets", axis))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// buildCatalog canonicalises names and builds the immutable catalog. The
// file must have passed validation.
func buildCatalog(file *CatalogFile) *domain.Catalog {
	sets := make([]domain.Set, 0, len(file.Sets))
	for _, sc := range file.Sets {
		axis := domain.CanonicalAxis(sc.Axis)
		set := domain.Set{ID: sc.ID, Axis: axis}
		for i, ic := range sc.Items {
			set.Items[i] = domain.Item{
				ID:        ic.ID,
				Axis:      axis,
				Dimension: domain.CanonicalDimension(ic.Dimension),
				Statement: strings.TrimSpace(ic.Statement),
			}
		}
		sets = append(sets, set)
	}
	return domain.NewCatalog(sets)
}

// catalogHash computes the SHA256 of the re-encoded file so that
// formatting differences do not defeat the cache.
func catalogHash(file *CatalogFile) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(file); err != nil {
		return "", fmt.Errorf("failed to encode catalog for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *CatalogLoader) cached(hash string) (*domain.Catalog, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	c, ok := cl.cache[hash]
	return c, ok
}

func (cl *CatalogLoader) store(hash string, c *domain.Catalog) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = c
}

// ClearCache drops every cached catalog, forcing subsequent loads to
// rebuild from source.
func (cl *CatalogLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*domain.Catalog)
}

// suggest returns a "did you mean" hint for the candidate closest to input,
// or "" when nothing is close enough to be a plausible typo.
func suggest(input string, candidates []string) string {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return ""
	}

	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}

	limit := max(2, len(needle)/3)
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

func axisNames() []string {
	axes := domain.Axes()
	out := make([]string, len(axes))
	for i, a := range axes {
		out[i] = string(a)
	}
	return out
}

func dimensionNames() []string {
	out := make([]string, 0, 8)
	for _, spec := range domain.AxisSpecs() {
		out = append(out, string(spec.Dimension1), string(spec.Dimension2))
	}
	return out
}
