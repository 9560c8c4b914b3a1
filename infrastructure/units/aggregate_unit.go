package units

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

var (
	_ ports.Unit        = (*AggregateUnit)(nil)
	_ domain.Aggregator = (*AggregateUnit)(nil)
)

// Representative selects the per-response number that axis statistics are
// computed over.
type Representative string

// Supported representative scores.
const (
	// RepresentativeDimension1 uses the dimension1 percentage (0..100).
	RepresentativeDimension1 Representative = "dimension1"

	// RepresentativeBipolar uses score1 - score2 (-100..100).
	RepresentativeBipolar Representative = "bipolar"
)

// AggregateUnit summarises the response snapshot found in the State.
// The unit is stateless and thread-safe; nothing carries over between calls.
type AggregateUnit struct {
	name   string
	config AggregateConfig
}

// AggregateConfig defines the configuration parameters for the AggregateUnit.
type AggregateConfig struct {
	// Representative picks the score used for mean and stddev.
	Representative Representative `yaml:"representative" json:"representative" validate:"required,oneof=dimension1 bipolar"`

	// TopN is the number of axes reported per insight list.
	TopN int `yaml:"top_n" json:"top_n" validate:"min=1,max=4"`
}

// NewAggregateUnit creates a new AggregateUnit with the specified configuration.
func NewAggregateUnit(name string, config AggregateConfig) (*AggregateUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &AggregateUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (au *AggregateUnit) Name() string { return au.name }

// Execute reads the response snapshot and writes the AggregateReport.
func (au *AggregateUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if err := ctx.Err(); err != nil {
		return state, err
	}

	responses, ok := domain.Get(state, domain.KeyResponses)
	if !ok {
		return state, domain.MissingKey(domain.KeyResponses, au.name)
	}

	report := au.Aggregate(responses)
	return domain.With(state, domain.KeyReport, &report), nil
}

// Aggregate implements domain.Aggregator using the unit's configuration.
func (au *AggregateUnit) Aggregate(responses []domain.StoredResponse) domain.AggregateReport {
	return aggregate(responses, au.config)
}

// Aggregate summarises responses with the default configuration.
func Aggregate(responses []domain.StoredResponse) domain.AggregateReport {
	return aggregate(responses, DefaultAggregateConfig())
}

func aggregate(responses []domain.StoredResponse, cfg AggregateConfig) domain.AggregateReport {
	if len(responses) == 0 {
		return domain.EmptyReport()
	}

	report := domain.AggregateReport{
		TotalResponses:   len(responses),
		TypeDistribution: typeDistribution(responses),
		AxisStats:        make([]domain.AxisStat, 0, 4),
	}
	for _, spec := range domain.AxisSpecs() {
		report.AxisStats = append(report.AxisStats, axisStat(spec, responses, cfg.Representative))
	}
	report.Insights = insights(report.AxisStats, cfg.TopN)
	return report
}

// typeDistribution counts leadership types, most frequent first and then
// by code.
func typeDistribution(responses []domain.StoredResponse) []domain.TypeCount {
	counts := make(map[string]int)
	for _, r := range responses {
		counts[r.LeadershipType]++
	}

	total := float64(len(responses))
	out := make([]domain.TypeCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, domain.TypeCount{Type: code, Count: n, Ratio: float64(n) / total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func axisStat(spec domain.AxisSpec, responses []domain.StoredResponse, rep Representative) domain.AxisStat {
	stat := domain.AxisStat{
		Axis:             spec.Axis,
		PoleDistribution: make(map[string]float64),
	}

	values := make([]float64, 0, len(responses))
	poles := make(map[string]int)
	for _, r := range responses {
		if v, ok := representative(spec, r.AxisScores[spec.Key], rep); ok {
			values = append(values, v)
		}
		if p := r.Pole[spec.Key]; p != "" {
			poles[p]++
		}
	}

	total := float64(len(responses))
	for p, n := range poles {
		stat.PoleDistribution[p] = float64(n) / total
	}
	stat.MeanScore, stat.StddevScore = meanStddev(values)
	return stat
}

// representative extracts the configured score from one stored axis entry.
// A missing pole value is derived from its counterpart.
func representative(spec domain.AxisSpec, scores map[string]float64, rep Representative) (float64, bool) {
	if scores == nil {
		return 0, false
	}
	s1, ok1 := scores[spec.Pole1Key]
	s2, ok2 := scores[spec.Pole2Key]
	switch {
	case ok1 && !ok2:
		s2 = domain.ScaleTotal - s1
	case ok2 && !ok1:
		s1 = domain.ScaleTotal - s2
	case !ok1 && !ok2:
		return 0, false
	}

	v := s1
	if rep == RepresentativeBipolar {
		v = s1 - s2
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// meanStddev returns the population mean and standard deviation.
func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func insights(stats []domain.AxisStat, topN int) domain.Insights {
	byVariance := make([]domain.AxisStat, len(stats))
	copy(byVariance, stats)
	sort.SliceStable(byVariance, func(i, j int) bool {
		return byVariance[i].StddevScore > byVariance[j].StddevScore
	})

	high := make([]domain.HighVarianceAxis, 0, topN)
	for _, s := range byVariance[:min(topN, len(byVariance))] {
		high = append(high, domain.HighVarianceAxis{Axis: s.Axis, Stddev: s.StddevScore})
	}

	type skew struct {
		axis     domain.SkewedAxis
		skewness float64
	}
	skews := make([]skew, 0, len(stats))
	for _, s := range stats {
		pole, ratio := dominantPole(s)
		skews = append(skews, skew{
			axis:     domain.SkewedAxis{Axis: s.Axis, DominantPole: pole, PoleRatio: ratio},
			skewness: ratio * (1 - s.PoleDistribution[domain.PoleBalanced]),
		})
	}
	sort.SliceStable(skews, func(i, j int) bool { return skews[i].skewness > skews[j].skewness })

	skewed := make([]domain.SkewedAxis, 0, topN)
	for _, s := range skews[:min(topN, len(skews))] {
		skewed = append(skewed, s.axis)
	}

	return domain.Insights{HighVarianceAxes: high, SkewedAxes: skewed}
}

// dominantPole returns the most frequent non-balanced pole of an axis and
// its ratio. Ties go to the pole listed first: dimension1, dimension2, then
// any other stored label alphabetically. An axis with no non-balanced pole
// yields an empty label and ratio 0.
func dominantPole(stat domain.AxisStat) (string, float64) {
	order := make([]string, 0, len(stat.PoleDistribution))
	if spec, ok := domain.SpecFor(stat.Axis); ok {
		order = append(order, spec.Pole1Key, spec.Pole2Key)
	}
	extra := make([]string, 0)
	for p := range stat.PoleDistribution {
		if !slices.Contains(order, p) && p != domain.PoleBalanced {
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	var best string
	var ratio float64
	for _, p := range order {
		r, ok := stat.PoleDistribution[p]
		if !ok {
			continue
		}
		if best == "" || r > ratio {
			best, ratio = p, r
		}
	}
	return best, ratio
}

// Validate checks if the unit is properly configured.
func (au *AggregateUnit) Validate() error {
	if err := validate.Struct(au.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML parameters into the unit's config.
// Omitted fields keep their defaults.
func (au *AggregateUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultAggregateConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	au.config = config
	return nil
}

// DefaultAggregateConfig returns an AggregateConfig with sensible defaults.
func DefaultAggregateConfig() AggregateConfig {
	return AggregateConfig{
		Representative: RepresentativeDimension1,
		TopN:           2,
	}
}

// CreateAggregateUnit is a factory function that creates an AggregateUnit
// from a configuration map, for use with the UnitRegistry.
func CreateAggregateUnit(id string, config map[string]any) (*AggregateUnit, error) {
	cfg := DefaultAggregateConfig()
	if val, ok := config["representative"].(string); ok {
		cfg.Representative = Representative(val)
	}
	switch val := config["top_n"].(type) {
	case int:
		cfg.TopN = val
	case float64:
		cfg.TopN = int(val)
	}
	return NewAggregateUnit(id, cfg)
}
