// Package testutils provides utilities for testing, including fixtures and
// synthetic data generators. These components are intended for internal use
// within the project's test suites and tools and are not part of the public
// API.
package testutils

import (
	"fmt"
	"math/rand"

	"github.com/ahrav/go-mfdc/internal/domain"
)

// ItemsPerDimension is the number of items each dimension has in the
// fixture catalog.
const ItemsPerDimension = 4

// itemPrefix is the item id prefix per axis. Ids run on across axes:
// M1..M8, F9..F16, D17..D24, C25..C32.
var itemPrefix = map[domain.Axis]string{
	domain.AxisMotivation:    "M",
	domain.AxisFlexibility:   "F",
	domain.AxisDirection:     "D",
	domain.AxisCommunication: "C",
}

// Catalog returns the 16-set, 32-item fixture catalog. Each set pairs a
// dimension1 item with the dimension2 item that follows it.
func Catalog() *domain.Catalog {
	sets := make([]domain.Set, 0, 16)
	n := 0
	for _, spec := range domain.AxisSpecs() {
		for range ItemsPerDimension {
			first := newItem(spec.Axis, spec.Dimension1, n+1)
			second := newItem(spec.Axis, spec.Dimension2, n+2)
			n += 2
			sets = append(sets, domain.Set{
				ID:    fmt.Sprintf("S%02d", len(sets)+1),
				Axis:  spec.Axis,
				Items: [2]domain.Item{first, second},
			})
		}
	}
	return domain.NewCatalog(sets)
}

func newItem(axis domain.Axis, d domain.Dimension, n int) domain.Item {
	return domain.Item{
		ID:        fmt.Sprintf("%s%d", itemPrefix[axis], n),
		Axis:      axis,
		Dimension: d,
		Statement: fmt.Sprintf("%s statement %d", d, n),
	}
}

// UniformAnswers answers every catalog item with v.
func UniformAnswers(c *domain.Catalog, v int) domain.AnswerMap {
	out := make(domain.AnswerMap, c.Len())
	for _, it := range c.Items() {
		out[it.ID] = v
	}
	return out
}

// PolarAnswers answers every item of an axis's dimension1 with high and of
// its dimension2 with low, per axis. Axes missing from high/low are
// answered with 4 on both sides.
func PolarAnswers(c *domain.Catalog, high, low map[domain.Axis]int) domain.AnswerMap {
	out := make(domain.AnswerMap, c.Len())
	for _, spec := range domain.AxisSpecs() {
		h, ok1 := high[spec.Axis]
		l, ok2 := low[spec.Axis]
		if !ok1 || !ok2 {
			h, l = 4, 4
		}
		for _, it := range c.ItemsFor(spec.Axis, spec.Dimension1) {
			out[it.ID] = h
		}
		for _, it := range c.ItemsFor(spec.Axis, spec.Dimension2) {
			out[it.ID] = l
		}
	}
	return out
}

// AnswersForType draws answers that score as code: items of each letter's
// dimension are answered 5..7 and items of the other dimension 1..3.
// It panics when code is not a valid type code.
func AnswersForType(c *domain.Catalog, code string, rng *rand.Rand) domain.AnswerMap {
	if !domain.IsTypeCode(code) {
		panic(fmt.Sprintf("testutils: invalid type code %q", code))
	}
	out := make(domain.AnswerMap, c.Len())
	for i, spec := range domain.AxisSpecs() {
		favoured, other := spec.Dimension1, spec.Dimension2
		if code[i] == spec.Code2 {
			favoured, other = other, favoured
		}
		for _, it := range c.ItemsFor(spec.Axis, favoured) {
			out[it.ID] = 5 + rng.Intn(3)
		}
		for _, it := range c.ItemsFor(spec.Axis, other) {
			out[it.ID] = 1 + rng.Intn(3)
		}
	}
	return out
}
