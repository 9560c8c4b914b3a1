package application

import (
	"context"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-mfdc/infrastructure/units"
	"github.com/ahrav/go-mfdc/internal/domain"
)

// FuzzCatalogLoader_Parse feeds arbitrary YAML to the catalog loader. Any
// catalog it accepts must be one the shuffler and scorer can use.
func FuzzCatalogLoader_Parse(f *testing.F) {
	testcases := []string{
		minimalCatalog,
		string(defaultCatalogYAML),
		strings.Replace(minimalCatalog, "axis: Direction", "axis: Directon", 1),
		"version: \"1.0.0\"\nsets: []\n",
		"version: \"1.0.0\nsets:",
		"sets:\n  - set_id: X\n    axis: Motivation\n    items: [{}, {}]\n",
		"",
	}
	for _, tc := range testcases {
		f.Add(tc)
	}

	loader, err := NewCatalogLoader()
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, input string) {
		catalog, err := loader.LoadFromReader(context.Background(), strings.NewReader(input))
		if err != nil {
			return
		}

		covered := make(map[domain.Axis]bool)
		for _, set := range catalog.Sets() {
			spec, ok := domain.SpecFor(set.Axis)
			if !ok {
				t.Fatalf("accepted set %s with unknown axis %q", set.ID, set.Axis)
			}
			if set.Items[0].Dimension == set.Items[1].Dimension {
				t.Fatalf("accepted set %s with both items on %s", set.ID, set.Items[0].Dimension)
			}
			for _, it := range set.Items {
				if !spec.Has(it.Dimension) {
					t.Fatalf("accepted item %s with dimension %q outside axis %s", it.ID, it.Dimension, set.Axis)
				}
			}
			covered[set.Axis] = true
		}
		if len(covered) != len(domain.Axes()) {
			t.Fatalf("accepted catalog covering %d axes", len(covered))
		}

		shuffled := units.Shuffle("FUZZ", catalog.Sets())
		if len(shuffled) != len(catalog.Sets()) {
			t.Fatalf("shuffle changed set count: %d != %d", len(shuffled), len(catalog.Sets()))
		}
		result := units.Score(domain.AnswerMap{}, catalog)
		if !domain.IsTypeCode(result.Code) {
			t.Fatalf("score produced invalid code %q", result.Code)
		}
	})
}

// FuzzValidateUnitParameters checks that parameter validation never panics
// and that parameters it accepts always build a unit.
func FuzzValidateUnitParameters(f *testing.F) {
	testcases := []struct {
		unitType string
		params   string
	}{
		{"shuffle", `{"require_session": true}`},
		{"shuffle", `{"require_session": "yes"}`},
		{"score", `{"require_complete": false}`},
		{"score", `{"require_complete": null}`},
		{"aggregate", `{"representative": "bipolar", "top_n": 4}`},
		{"aggregate", `{"representative": "median"}`},
		{"aggregate", `{"top_n": 2.5}`},
		{"aggregate", `{"top_n": -1}`},
		{"aggregate", `{}`},
		{"unknown_type", `{"some": "params"}`},
	}
	for _, tc := range testcases {
		f.Add(tc.unitType, tc.params)
	}

	registry := NewDefaultUnitRegistry(nil)

	f.Fuzz(func(t *testing.T, unitType string, paramsYAML string) {
		var node yaml.Node
		if err := yaml.Unmarshal([]byte(paramsYAML), &node); err != nil {
			return
		}
		if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
			node = *node.Content[0]
		}

		if err := ValidateUnitParameters(unitType, node); err != nil {
			return
		}
		if unitType != "aggregate" {
			return
		}

		params, err := parameterMap(node)
		if err != nil {
			t.Fatalf("validated parameters failed to decode: %v", err)
		}
		if _, err := registry.CreateUnit(unitType, "fuzz", params); err != nil {
			t.Fatalf("validated parameters rejected by factory: %v", err)
		}
	})
}
