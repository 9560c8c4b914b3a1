package domain

import (
	"encoding/json"
	"time"
)

// StoredResponse is one persisted participant submission as handed to the
// aggregator. AxisScores and Pole use the lowercase storage keys produced by
// Result.Stored.
type StoredResponse struct {
	ID               string           `json:"id,omitempty"`
	SessionCode      string           `json:"sessionCode,omitempty"`
	LeadershipType   string           `json:"leadershipType"`
	AxisScores       StoredAxisScores `json:"axisScores"`
	Pole             StoredPoles      `json:"pole"`
	ParticipantName  string           `json:"participantName,omitempty"`
	ParticipantEmail string           `json:"participantEmail,omitempty"`
	ClientHash       string           `json:"clientHash,omitempty"`
	SubmittedAt      time.Time        `json:"submittedAt,omitzero"`
}

// TypeCount is one entry of the type distribution.
type TypeCount struct {
	Type  string  `json:"type"`
	Count int     `json:"count"`
	Ratio float64 `json:"ratio"`
}

// AxisStat summarises one axis across a session.
type AxisStat struct {
	Axis             Axis               `json:"axis"`
	PoleDistribution map[string]float64 `json:"poleDistribution"`
	MeanScore        float64            `json:"meanScore"`
	StddevScore      float64            `json:"stddevScore"`
}

// HighVarianceAxis is an axis ranked by spread of its representative score.
type HighVarianceAxis struct {
	Axis   Axis    `json:"axis"`
	Stddev float64 `json:"stddev"`
}

// SkewedAxis is an axis ranked by how one-sided its pole distribution is.
// DominantPole is empty when the axis has no non-balanced pole and then
// encodes as JSON null.
type SkewedAxis struct {
	Axis         Axis    `json:"axis"`
	DominantPole string  `json:"dominantPole"`
	PoleRatio    float64 `json:"poleRatio"`
}

// MarshalJSON implements json.Marshaler.
func (s SkewedAxis) MarshalJSON() ([]byte, error) {
	out := struct {
		Axis         Axis    `json:"axis"`
		DominantPole *string `json:"dominantPole"`
		PoleRatio    float64 `json:"poleRatio"`
	}{Axis: s.Axis, PoleRatio: s.PoleRatio}
	if s.DominantPole != "" {
		out.DominantPole = &s.DominantPole
	}
	return json.Marshal(out)
}

// Insights are the debrief highlights derived from axis statistics.
type Insights struct {
	HighVarianceAxes []HighVarianceAxis `json:"highVarianceAxes"`
	SkewedAxes       []SkewedAxis       `json:"skewedAxes"`
}

// AggregateReport is the session-level summary. It is recomputed from a
// snapshot on every request and never persisted.
type AggregateReport struct {
	TotalResponses   int         `json:"totalResponses"`
	TypeDistribution []TypeCount `json:"typeDistribution"`
	AxisStats        []AxisStat  `json:"axisStats"`
	Insights         Insights    `json:"insights"`
}

// EmptyReport returns the zeroed report with non-nil empty lists so it
// serialises as [] rather than null.
func EmptyReport() AggregateReport {
	return AggregateReport{
		TypeDistribution: []TypeCount{},
		AxisStats:        []AxisStat{},
		Insights: Insights{
			HighVarianceAxes: []HighVarianceAxis{},
			SkewedAxes:       []SkewedAxis{},
		},
	}
}

// Participant identifies a respondent in administrator listings.
type Participant struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// TypeGroup lists the participants classified under one type code.
type TypeGroup struct {
	Type         string        `json:"type"`
	Participants []Participant `json:"participants"`
	Count        int           `json:"count"`
}

// ScoredParticipant is a participant with their score on one pole.
type ScoredParticipant struct {
	Participant
	Score float64 `json:"score"`
}

// PoleGroup lists the participants whose dominant pole on an axis is Pole.
type PoleGroup struct {
	Pole         string              `json:"pole"`
	Participants []ScoredParticipant `json:"participants"`
	Count        int                 `json:"count"`
}

// AxisGroup lists the pole groups of one axis.
type AxisGroup struct {
	Axis  string      `json:"axis"`
	Poles []PoleGroup `json:"poles"`
}
