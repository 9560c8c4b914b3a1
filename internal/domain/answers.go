package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Answer scale bounds, inclusive.
const (
	MinAnswer = 1
	MaxAnswer = 7
)

// AnswerMap maps item ids to a participant's 1..7 answer. It may be partial
// while answers are being collected.
type AnswerMap map[string]int

// ValidAnswer reports whether v lies on the answer scale.
func ValidAnswer(v int) bool { return v >= MinAnswer && v <= MaxAnswer }

// Lookup returns the answer for id when present and on the scale.
func (a AnswerMap) Lookup(id string) (int, bool) {
	v, ok := a[id]
	if !ok || !ValidAnswer(v) {
		return 0, false
	}
	return v, true
}

// Clone returns an independent copy.
func (a AnswerMap) Clone() AnswerMap {
	if a == nil {
		return nil
	}
	out := make(AnswerMap, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// UnmarshalJSON decodes an object of item id to answer. Values that are not
// whole numbers (strings, fractions, null, nested values) are dropped rather
// than rejected so a malformed entry only costs that one item. Out-of-range
// integers are kept; the scorer ignores them.
func (a *AnswerMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode answers: %w", err)
	}
	out := make(AnswerMap, len(raw))
	for id, msg := range raw {
		var n *float64
		if err := json.Unmarshal(msg, &n); err != nil || n == nil {
			continue
		}
		f := *n
		if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			continue
		}
		out[id] = int(f)
	}
	*a = out
	return nil
}

// ValidateComplete checks that a holds exactly one on-scale answer for every
// catalog item and nothing else. Submissions must pass it; scoring does not
// require it.
func (a AnswerMap) ValidateComplete(c *Catalog) error {
	verr := NewValidationError("answers")

	for _, it := range c.Items() {
		v, ok := a[it.ID]
		switch {
		case !ok:
			verr.AddError(fmt.Sprintf("missing answer for item %s", it.ID))
		case !ValidAnswer(v):
			verr.AddError(fmt.Sprintf("answer for item %s out of range: %d", it.ID, v))
		}
	}

	unknown := make([]string, 0)
	for id := range a {
		if _, ok := c.Item(id); !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		verr.AddError(fmt.Sprintf("unknown item %s", id))
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
