// Package storage provides decorators shared by the storage backends.
package storage

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

// Default retry configuration constants.
const (
	// DefaultMaxAttempts is the default number of retries.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the default delay before the first retry.
	DefaultBaseDelay = 50 * time.Millisecond
	// DefaultMaxDelay is the default cap on a single delay.
	DefaultMaxDelay = time.Second
	// DefaultJitterPercent is the default jitter percentage.
	DefaultJitterPercent = 0.1
)

// RetryConfig controls the exponential backoff of a RetryingStore.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the first failure. Zero
	// disables retrying.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Later delays double.
	BaseDelay time.Duration

	// MaxDelay caps a single delay.
	MaxDelay time.Duration

	// JitterPercent spreads each delay by up to this fraction either way.
	JitterPercent float64
}

// DefaultRetryConfig returns the default backoff settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   DefaultMaxAttempts,
		BaseDelay:     DefaultBaseDelay,
		MaxDelay:      DefaultMaxDelay,
		JitterPercent: DefaultJitterPercent,
	}
}

// Backend is a store serving all three storage ports.
type Backend interface {
	ports.SessionRegistry
	ports.ResponseStore
	ports.OrderStore
}

var _ Backend = (*RetryingStore)(nil)

// RetryingStore retries transient failures of a Backend. Errors that
// isTransient rejects, such as duplicate sessions or missing records, are
// returned on the first attempt. It is safe for concurrent use when the
// wrapped backend is.
type RetryingStore struct {
	next        Backend
	config      RetryConfig
	isTransient func(error) bool
}

// NewRetryingStore wraps next. isTransient classifies the backend's errors.
func NewRetryingStore(next Backend, config RetryConfig, isTransient func(error) bool) *RetryingStore {
	return &RetryingStore{next: next, config: config, isTransient: isTransient}
}

// CreateSession implements ports.SessionRegistry.
func (r *RetryingStore) CreateSession(ctx context.Context, session ports.Session) error {
	return r.do(ctx, "CreateSession", func() error {
		return r.next.CreateSession(ctx, session)
	})
}

// GetSession implements ports.SessionRegistry.
func (r *RetryingStore) GetSession(ctx context.Context, code string) (ports.Session, error) {
	var session ports.Session
	err := r.do(ctx, "GetSession", func() error {
		var err error
		session, err = r.next.GetSession(ctx, code)
		return err
	})
	return session, err
}

// SaveResponse implements ports.ResponseStore.
func (r *RetryingStore) SaveResponse(ctx context.Context, response domain.StoredResponse) error {
	return r.do(ctx, "SaveResponse", func() error {
		return r.next.SaveResponse(ctx, response)
	})
}

// ListResponses implements ports.ResponseStore.
func (r *RetryingStore) ListResponses(ctx context.Context, sessionCode string) ([]domain.StoredResponse, error) {
	var responses []domain.StoredResponse
	err := r.do(ctx, "ListResponses", func() error {
		var err error
		responses, err = r.next.ListResponses(ctx, sessionCode)
		return err
	})
	return responses, err
}

// GetOrder implements ports.OrderStore.
func (r *RetryingStore) GetOrder(ctx context.Context, sessionCode string) ([]string, bool, error) {
	var (
		ids   []string
		found bool
	)
	err := r.do(ctx, "GetOrder", func() error {
		var err error
		ids, found, err = r.next.GetOrder(ctx, sessionCode)
		return err
	})
	return ids, found, err
}

// PutOrder implements ports.OrderStore.
func (r *RetryingStore) PutOrder(ctx context.Context, sessionCode string, setIDs []string) error {
	return r.do(ctx, "PutOrder", func() error {
		return r.next.PutOrder(ctx, sessionCode, setIDs)
	})
}

func (r *RetryingStore) do(ctx context.Context, op string, call func() error) error {
	attempt := 0
	for {
		err := call()
		if err == nil {
			return nil
		}
		if attempt == 0 && (r.isTransient == nil || !r.isTransient(err)) {
			return err
		}
		if attempt == r.config.MaxAttempts || !r.isTransient(err) {
			return fmt.Errorf("%s failed after %d attempts: %w", op, attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during %s retry: %w", op, ctx.Err())
		case <-time.After(r.delay(attempt)):
		}
		attempt++
	}
}

// delay returns the exponential backoff for attempt with jitter applied.
func (r *RetryingStore) delay(attempt int) time.Duration {
	delay := r.config.BaseDelay * time.Duration(1<<attempt)
	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	jitter := int64(float64(delay) * r.config.JitterPercent)
	if jitter > 0 {
		//nolint:gosec // G404: math/rand is acceptable for retry jitter timing.
		delay += time.Duration(rand.Int64N(2*jitter) - jitter)
	}

	if delay < r.config.BaseDelay {
		return r.config.BaseDelay
	}
	return delay
}
