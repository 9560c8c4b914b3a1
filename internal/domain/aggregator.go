package domain

// Shuffler produces the per-session presentation order of a catalog's sets.
// Implementations must be deterministic: the same session identifier and the
// same input always yield the same order, in any process.
type Shuffler interface {
	// Shuffle returns a permutation of sets keyed by sessionID. The input
	// slice must not be modified.
	Shuffle(sessionID string, sets []Set) []Set
}

// Scorer classifies one participant from their answers.
// Implementations never fail: malformed or missing answers degrade to a
// balanced default per axis rather than an error.
type Scorer interface {
	// Score computes the four axis scores and the type code. The answer map
	// must not be modified.
	Score(answers AnswerMap) Result
}

// Aggregator summarises a snapshot of stored responses for debriefing.
// It is a pure function over its input: re-running it on the same snapshot
// yields the same report and nothing accumulates across calls.
//
// Example:
//
//	report := aggregator.Aggregate(responses)
//	for _, stat := range report.AxisStats {
//	    fmt.Println(stat.Axis, stat.MeanScore, stat.StddevScore)
//	}
type Aggregator interface {
	// Aggregate returns the session report. An empty snapshot yields
	// EmptyReport().
	Aggregate(responses []StoredResponse) AggregateReport
}
