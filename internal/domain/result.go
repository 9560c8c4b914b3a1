package domain

// ScaleTotal is the fixed normalized total of an axis's two pole scores.
const ScaleTotal = 100

// AxisScore is the normalized outcome for one axis. Score1 + Score2 always
// equals ScaleTotal, and Dominant is Dimension1 or Dimension2.
type AxisScore struct {
	Axis       Axis      `json:"axis"`
	Dimension1 Dimension `json:"dimension1"`
	Dimension2 Dimension `json:"dimension2"`
	Score1     float64   `json:"score1"`
	Score2     float64   `json:"score2"`
	Dominant   Dimension `json:"dominant"`
}

// Result is one participant's classification: a 4-letter code and the four
// axis scores in canonical axis order.
type Result struct {
	Code   string      `json:"code"`
	Scores []AxisScore `json:"scores"`
}

// Score returns the axis score for axis.
func (r Result) Score(axis Axis) (AxisScore, bool) {
	for _, s := range r.Scores {
		if s.Axis == axis {
			return s, true
		}
	}
	return AxisScore{}, false
}

// StoredAxisScores is the persisted per-axis pole values, keyed by axis
// storage key then pole storage key (e.g. "motivation" -> "intrinsic" -> 62.5).
type StoredAxisScores map[string]map[string]float64

// StoredPoles is the persisted dominant pole label per axis storage key.
type StoredPoles map[string]string

// Stored projects the result onto the persisted record shape.
func (r Result) Stored() (StoredAxisScores, StoredPoles) {
	scores := make(StoredAxisScores, len(r.Scores))
	poles := make(StoredPoles, len(r.Scores))
	for _, s := range r.Scores {
		spec, ok := SpecFor(s.Axis)
		if !ok {
			continue
		}
		scores[spec.Key] = map[string]float64{
			spec.Pole1Key: s.Score1,
			spec.Pole2Key: s.Score2,
		}
		if key, ok := spec.PoleKey(s.Dominant); ok {
			poles[spec.Key] = key
		} else {
			poles[spec.Key] = PoleBalanced
		}
	}
	return scores, poles
}
