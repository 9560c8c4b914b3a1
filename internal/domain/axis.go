// Package domain contains pure, dependency-light domain models and types
// for the leadership-type scoring engine.
package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Axis identifies one of the four independent bipolar measurement scales.
type Axis string

// The four axes in canonical order. The type code is assembled in this order.
const (
	AxisMotivation    Axis = "Motivation"
	AxisFlexibility   Axis = "Flexibility"
	AxisDirection     Axis = "Direction"
	AxisCommunication Axis = "Communication"
)

// Dimension names one pole of an axis.
type Dimension string

// Canonical dimension names, grouped by axis as dimension1 / dimension2.
const (
	DimensionIntrinsic Dimension = "Intrinsic"
	DimensionExtrinsic Dimension = "Extrinsic"
	DimensionChange    Dimension = "Change"
	DimensionSystem    Dimension = "System"
	DimensionResults   Dimension = "Results"
	DimensionPeople    Dimension = "People"
	DimensionDirect    Dimension = "Direct"
	DimensionEngage    Dimension = "Engage"
)

// PoleBalanced is the stored pole label for an axis without a dominant pole.
// The scorer never produces it, but records persisted under the older
// three-state policy carry it and the aggregator accounts for it.
const PoleBalanced = "balanced"

// AxisSpec is the fixed configuration of one axis: its canonical dimension
// order, the type-code letter for each dimension, and the lowercase keys
// used in persisted records.
type AxisSpec struct {
	Axis       Axis
	Dimension1 Dimension
	Dimension2 Dimension
	Code1      byte
	Code2      byte
	Key        string
	Pole1Key   string
	Pole2Key   string
}

var axisSpecs = [...]AxisSpec{
	{
		Axis: AxisMotivation, Dimension1: DimensionIntrinsic, Dimension2: DimensionExtrinsic,
		Code1: 'I', Code2: 'E', Key: "motivation", Pole1Key: "intrinsic", Pole2Key: "extrinsic",
	},
	{
		Axis: AxisFlexibility, Dimension1: DimensionChange, Dimension2: DimensionSystem,
		Code1: 'C', Code2: 'S', Key: "flexibility", Pole1Key: "change", Pole2Key: "system",
	},
	{
		Axis: AxisDirection, Dimension1: DimensionResults, Dimension2: DimensionPeople,
		Code1: 'R', Code2: 'P', Key: "direction", Pole1Key: "results", Pole2Key: "people",
	},
	{
		Axis: AxisCommunication, Dimension1: DimensionDirect, Dimension2: DimensionEngage,
		Code1: 'D', Code2: 'N', Key: "communication", Pole1Key: "direct", Pole2Key: "engage",
	},
}

// AxisSpecs returns the four axis specs in canonical order.
func AxisSpecs() []AxisSpec {
	out := make([]AxisSpec, len(axisSpecs))
	copy(out, axisSpecs[:])
	return out
}

// Axes returns the four axes in canonical order.
func Axes() []Axis {
	out := make([]Axis, len(axisSpecs))
	for i, s := range axisSpecs {
		out[i] = s.Axis
	}
	return out
}

// SpecFor returns the spec of the given axis.
func SpecFor(axis Axis) (AxisSpec, bool) {
	for _, s := range axisSpecs {
		if s.Axis == axis {
			return s, true
		}
	}
	return AxisSpec{}, false
}

// SpecForKey returns the spec whose storage key matches key (case-insensitive).
func SpecForKey(key string) (AxisSpec, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, s := range axisSpecs {
		if s.Key == key {
			return s, true
		}
	}
	return AxisSpec{}, false
}

// Index returns the canonical position of axis, or -1 when unknown.
func (a Axis) Index() int {
	for i, s := range axisSpecs {
		if s.Axis == a {
			return i
		}
	}
	return -1
}

// Valid reports whether a is one of the four axes.
func (a Axis) Valid() bool { return a.Index() >= 0 }

// Has reports whether d is one of the spec's two dimensions.
func (s AxisSpec) Has(d Dimension) bool { return d == s.Dimension1 || d == s.Dimension2 }

// CodeFor returns the type-code letter for a dimension of this axis.
func (s AxisSpec) CodeFor(d Dimension) (byte, bool) {
	switch d {
	case s.Dimension1:
		return s.Code1, true
	case s.Dimension2:
		return s.Code2, true
	}
	return 0, false
}

// PoleKey returns the lowercase storage key for a dimension of this axis.
func (s AxisSpec) PoleKey(d Dimension) (string, bool) {
	switch d {
	case s.Dimension1:
		return s.Pole1Key, true
	case s.Dimension2:
		return s.Pole2Key, true
	}
	return "", false
}

// ValidCodeLetters returns the eight type-code letters in axis order.
func ValidCodeLetters() string {
	var b strings.Builder
	for _, s := range axisSpecs {
		b.WriteByte(s.Code1)
		b.WriteByte(s.Code2)
	}
	return b.String()
}

// IsTypeCode reports whether code is a 4-letter code where each position
// holds one of that axis's two letters.
func IsTypeCode(code string) bool {
	if len(code) != len(axisSpecs) {
		return false
	}
	for i, s := range axisSpecs {
		if code[i] != s.Code1 && code[i] != s.Code2 {
			return false
		}
	}
	return true
}

// AllTypeCodes returns the 16 type codes, dimension1 letters first.
func AllTypeCodes() []string {
	codes := []string{""}
	for _, s := range axisSpecs {
		next := make([]string, 0, len(codes)*2)
		for _, prefix := range codes {
			next = append(next, prefix+string(s.Code1), prefix+string(s.Code2))
		}
		codes = next
	}
	return codes
}

// CanonicalAxis normalises free-form axis input ("motivation", " MOTIVATION ")
// to its canonical spelling. The result may still be invalid.
func CanonicalAxis(s string) Axis {
	return Axis(titleCase(s))
}

// CanonicalDimension normalises free-form dimension input to its canonical
// spelling. The result may still be invalid.
func CanonicalDimension(s string) Dimension {
	return Dimension(titleCase(s))
}

// titleCase builds a fresh Caser per call; Casers carry state and must not
// be shared between goroutines.
func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}
