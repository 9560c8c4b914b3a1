package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-mfdc/internal/domain"
)

// Session is a registered survey session. Participants can only submit to
// sessions known to the registry.
type Session struct {
	Code      string
	Title     string
	CreatedAt time.Time
}

// SessionRegistry records which session codes exist.
// How codes are generated is the caller's concern.
type SessionRegistry interface {
	// CreateSession registers a session. It returns an error wrapping
	// domain.ErrSessionExists when the code is already taken.
	CreateSession(ctx context.Context, session Session) error

	// GetSession returns the session for code, or an error wrapping
	// domain.ErrSessionNotFound.
	GetSession(ctx context.Context, code string) (Session, error)
}

// ResponseStore persists scored submissions and hands out snapshots for
// aggregation. Stored records are never mutated by readers.
type ResponseStore interface {
	// SaveResponse appends one response to its session.
	SaveResponse(ctx context.Context, response domain.StoredResponse) error

	// ListResponses returns a snapshot of the session's responses in
	// submission order. An empty session yields an empty slice.
	ListResponses(ctx context.Context, sessionCode string) ([]domain.StoredResponse, error)
}

// OrderStore persists the presentation order computed for a session so the
// order survives restarts and catalog edits made after the first request.
type OrderStore interface {
	// GetOrder returns the stored set ids for sessionCode and whether an
	// order was found.
	GetOrder(ctx context.Context, sessionCode string) ([]string, bool, error)

	// PutOrder stores the set ids for sessionCode. Existing orders are kept;
	// the first writer wins.
	PutOrder(ctx context.Context, sessionCode string, setIDs []string) error
}

// Metric names with dedicated series in metrics backends. Other names are
// recorded as generic operation counters and gauges.
const (
	// MetricResponsesScored counts scored submissions, labelled by "type".
	MetricResponsesScored = "responses_scored_total"

	// MetricAxisScore observes dimension1 percentages, labelled by "axis".
	MetricAxisScore = "axis_score"

	// MetricSessionSize is the snapshot size of a session, labelled by
	// "session".
	MetricSessionSize = "session_responses"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like axis scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
