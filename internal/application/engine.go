package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-mfdc/infrastructure/units"
	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

// UnitMiddleware decorates a unit before it is placed in a pipeline.
type UnitMiddleware func(ports.Unit) ports.Unit

// EngineDeps are the collaborators an Engine orchestrates. Catalog and the
// three stores are required; the rest default to no-ops.
type EngineDeps struct {
	Catalog   *domain.Catalog
	Sessions  ports.SessionRegistry
	Responses ports.ResponseStore
	Orders    ports.OrderStore

	Metrics    ports.MetricsCollector
	Logger     *zap.Logger
	Middleware []UnitMiddleware

	// Clock stamps stored responses and new sessions. Defaults to time.Now.
	Clock func() time.Time
}

// Submission is one participant's completed questionnaire.
type Submission struct {
	SessionCode      string
	Answers          domain.AnswerMap
	ParticipantName  string
	ParticipantEmail string
	ClientHash       string
}

// Receipt is returned for an accepted submission.
type Receipt struct {
	ResponseID string        `json:"responseId"`
	Result     domain.Result `json:"result"`
}

// Engine runs the order, score and aggregate pipelines against a session's
// persisted state.
type Engine struct {
	catalog   *domain.Catalog
	setsByID  map[string]domain.Set
	pipelines map[string]*Pipeline

	sessions  ports.SessionRegistry
	responses ports.ResponseStore
	orders    ports.OrderStore
	// orderCache maps session code to stored set ids. Nil when disabled.
	orderCache *lru.Cache[string, []string]
	// submitLimiter paces Submit. Nil when unlimited.
	submitLimiter *rate.Limiter

	metrics ports.MetricsCollector
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine builds an engine whose pipelines follow cfg.
func NewEngine(cfg *EngineConfig, deps EngineDeps) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: engine config is nil", domain.ErrInvalidConfiguration)
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog is nil", domain.ErrInvalidConfiguration)
	}
	if deps.Sessions == nil || deps.Responses == nil || deps.Orders == nil {
		return nil, fmt.Errorf("%w: session, response and order stores are required", domain.ErrInvalidConfiguration)
	}

	e := &Engine{
		catalog:   deps.Catalog,
		setsByID:  make(map[string]domain.Set, len(deps.Catalog.Sets())),
		sessions:  deps.Sessions,
		responses: deps.Responses,
		orders:    deps.Orders,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Clock,
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	for _, set := range deps.Catalog.Sets() {
		e.setsByID[set.ID] = set
	}

	if size := cfg.Storage.OrderCacheSize; size > 0 {
		cache, err := lru.New[string, []string](size)
		if err != nil {
			return nil, fmt.Errorf("create order cache: %w", err)
		}
		e.orderCache = cache
	}

	if limit := cfg.Limits; limit.SubmitPerSecond > 0 {
		e.submitLimiter = rate.NewLimiter(rate.Limit(limit.SubmitPerSecond), max(limit.SubmitBurst, 1))
	}

	pipelines, err := BuildPipelines(cfg, NewDefaultUnitRegistry(deps.Catalog), deps.Middleware...)
	if err != nil {
		return nil, err
	}
	for _, op := range []string{OperationOrder, OperationScore, OperationAggregate} {
		if _, ok := pipelines[op]; !ok {
			return nil, fmt.Errorf("%w: no %s pipeline configured", domain.ErrInvalidConfiguration, op)
		}
	}
	e.pipelines = pipelines

	return e, nil
}

// BuildPipelines creates one pipeline per configured operation. Each unit
// is created through registry, wrapped by middleware in order (the first
// middleware ends up outermost), and bounded by its configured timeout.
func BuildPipelines(
	cfg *EngineConfig,
	registry ports.UnitRegistry,
	middleware ...UnitMiddleware,
) (map[string]*Pipeline, error) {
	pipelines := make(map[string]*Pipeline, len(cfg.Pipelines))

	for _, pc := range cfg.Pipelines {
		pipeline := NewPipeline(pc.ID)
		for _, unitID := range pc.Units {
			uc, ok := cfg.Unit(unitID)
			if !ok {
				return nil, fmt.Errorf("pipeline %s: unknown unit %s", pc.ID, unitID)
			}

			params, err := parameterMap(uc.Parameters)
			if err != nil {
				return nil, fmt.Errorf("unit %s: %w", unitID, err)
			}
			unit, err := registry.CreateUnit(uc.Type, uc.ID, params)
			if err != nil {
				return nil, err
			}
			if err := unit.Validate(); err != nil {
				return nil, fmt.Errorf("unit %s: %w", unitID, err)
			}

			for i := len(middleware) - 1; i >= 0; i-- {
				unit = middleware[i](unit)
			}

			timeout := time.Duration(uc.Timeout.ExecutionTimeout) * time.Second
			if err := pipeline.Add(NewUnitAdapter(unit, uc.ID).WithTimeout(timeout)); err != nil {
				return nil, fmt.Errorf("pipeline %s: %w", pc.ID, err)
			}
		}
		pipelines[pc.ID] = pipeline
	}

	return pipelines, nil
}

func parameterMap(node yaml.Node) (map[string]any, error) {
	params := make(map[string]any)
	if node.Kind == 0 {
		return params, nil
	}
	if err := node.Decode(&params); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if params == nil {
		params = make(map[string]any)
	}
	return params, nil
}

// Catalog returns the catalog the engine scores against.
func (e *Engine) Catalog() *domain.Catalog { return e.catalog }

// CreateSession registers a caller-supplied session code.
func (e *Engine) CreateSession(ctx context.Context, code, title string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return units.ErrEmptySession
	}
	err := e.sessions.CreateSession(ctx, ports.Session{
		Code:      code,
		Title:     strings.TrimSpace(title),
		CreatedAt: e.now(),
	})
	e.recordOutcome("create_session", err)
	if err != nil {
		return err
	}
	e.logger.Info("session created", zap.String("session", code))
	return nil
}

// SetOrder returns the session's set order. The first call for a session
// computes it and persists it; later calls return the stored order even
// when the catalog has changed since.
func (e *Engine) SetOrder(ctx context.Context, sessionCode string) ([]domain.Set, error) {
	if _, err := e.sessions.GetSession(ctx, sessionCode); err != nil {
		return nil, err
	}

	if e.orderCache != nil {
		if ids, ok := e.orderCache.Get(sessionCode); ok {
			return e.resolveSets(ids), nil
		}
	}

	ids, found, err := e.orders.GetOrder(ctx, sessionCode)
	if err != nil {
		return nil, err
	}
	if !found {
		ids, err = e.computeOrder(ctx, sessionCode)
		if err != nil {
			return nil, err
		}
	}

	if e.orderCache != nil {
		e.orderCache.Add(sessionCode, ids)
		e.metrics.RecordGauge("order_cache_entries", float64(e.orderCache.Len()), map[string]string{"unit": "engine"})
	}
	return e.resolveSets(ids), nil
}

func (e *Engine) computeOrder(ctx context.Context, sessionCode string) ([]string, error) {
	state := domain.With(domain.NewState(), domain.KeySessionCode, sessionCode)
	out, err := e.run(ctx, OperationOrder, state)
	if err != nil {
		return nil, err
	}
	sets, ok := domain.Get(out, domain.KeySetOrder)
	if !ok {
		return nil, domain.MissingKey(domain.KeySetOrder, OperationOrder)
	}

	ids := make([]string, len(sets))
	for i, set := range sets {
		ids[i] = set.ID
	}
	if err := e.orders.PutOrder(ctx, sessionCode, ids); err != nil {
		return nil, err
	}

	// A concurrent first call may have stored its order before ours.
	stored, found, err := e.orders.GetOrder(ctx, sessionCode)
	if err != nil {
		return nil, err
	}
	if found {
		ids = stored
	}
	e.logger.Debug("set order stored", zap.String("session", sessionCode), zap.Int("sets", len(ids)))
	return ids, nil
}

// resolveSets maps stored ids back onto the catalog. Ids no longer in the
// catalog are dropped and sets added since are appended in catalog order.
func (e *Engine) resolveSets(ids []string) []domain.Set {
	out := make([]domain.Set, 0, len(e.setsByID))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set, ok := e.setsByID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, set)
	}
	for _, set := range e.catalog.Sets() {
		if _, ok := seen[set.ID]; !ok {
			out = append(out, set)
		}
	}
	return out
}

// Score classifies answers without persisting anything.
func (e *Engine) Score(ctx context.Context, answers domain.AnswerMap) (domain.Result, error) {
	state := domain.With(domain.NewState(), domain.KeyAnswers, answers)
	out, err := e.run(ctx, OperationScore, state)
	if err != nil {
		return domain.Result{}, err
	}
	result, ok := domain.Get(out, domain.KeyResult)
	if !ok || result == nil {
		return domain.Result{}, domain.MissingKey(domain.KeyResult, OperationScore)
	}
	return *result, nil
}

// Submit scores a complete submission and stores it under its session.
func (e *Engine) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	receipt, err := e.submit(ctx, sub)
	e.recordOutcome("submit", err)
	return receipt, err
}

func (e *Engine) submit(ctx context.Context, sub Submission) (*Receipt, error) {
	if e.submitLimiter != nil {
		if err := e.submitLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("submit rate limit: %w", err)
		}
	}
	if _, err := e.sessions.GetSession(ctx, sub.SessionCode); err != nil {
		return nil, err
	}
	if err := sub.Answers.ValidateComplete(e.catalog); err != nil {
		return nil, fmt.Errorf("%w: %w", units.ErrIncompleteAnswers, err)
	}

	state := domain.With(domain.NewState(), domain.KeySessionCode, sub.SessionCode)
	state = domain.With(state, domain.KeyAnswers, sub.Answers)
	out, err := e.run(ctx, OperationScore, state)
	if err != nil {
		return nil, err
	}
	result, ok := domain.Get(out, domain.KeyResult)
	if !ok || result == nil {
		return nil, domain.MissingKey(domain.KeyResult, OperationScore)
	}

	scores, poles := result.Stored()
	stored := domain.StoredResponse{
		ID:               uuid.NewString(),
		SessionCode:      sub.SessionCode,
		LeadershipType:   result.Code,
		AxisScores:       scores,
		Pole:             poles,
		ParticipantName:  strings.TrimSpace(sub.ParticipantName),
		ParticipantEmail: strings.TrimSpace(sub.ParticipantEmail),
		ClientHash:       sub.ClientHash,
		SubmittedAt:      e.now().UTC(),
	}
	if err := e.responses.SaveResponse(ctx, stored); err != nil {
		return nil, err
	}

	e.metrics.RecordCounter(ports.MetricResponsesScored, 1, map[string]string{"type": result.Code})
	for _, s := range result.Scores {
		if spec, ok := domain.SpecFor(s.Axis); ok {
			e.metrics.RecordHistogram(ports.MetricAxisScore, s.Score1, map[string]string{"axis": spec.Key})
		}
	}
	e.logger.Info("response stored",
		zap.String("session", sub.SessionCode),
		zap.String("response_id", stored.ID),
		zap.String("type", result.Code),
	)

	return &Receipt{ResponseID: stored.ID, Result: *result}, nil
}

// Aggregates builds the report for the session's current responses.
func (e *Engine) Aggregates(ctx context.Context, sessionCode string) (domain.AggregateReport, error) {
	responses, err := e.snapshot(ctx, sessionCode)
	if err != nil {
		return domain.AggregateReport{}, err
	}

	state := domain.With(domain.NewState(), domain.KeySessionCode, sessionCode)
	state = domain.With(state, domain.KeyResponses, responses)
	out, err := e.run(ctx, OperationAggregate, state)
	if err != nil {
		return domain.AggregateReport{}, err
	}
	report, ok := domain.Get(out, domain.KeyReport)
	if !ok || report == nil {
		return domain.AggregateReport{}, domain.MissingKey(domain.KeyReport, OperationAggregate)
	}

	e.metrics.RecordGauge(ports.MetricSessionSize, float64(len(responses)), map[string]string{"session": sessionCode})
	return *report, nil
}

// ParticipantsByType lists the session's participants grouped by type code.
func (e *Engine) ParticipantsByType(ctx context.Context, sessionCode string) ([]domain.TypeGroup, error) {
	responses, err := e.snapshot(ctx, sessionCode)
	if err != nil {
		return nil, err
	}
	return units.GroupByType(responses), nil
}

// ParticipantsByAxis lists the session's participants grouped by dominant
// pole on each axis.
func (e *Engine) ParticipantsByAxis(ctx context.Context, sessionCode string) ([]domain.AxisGroup, error) {
	responses, err := e.snapshot(ctx, sessionCode)
	if err != nil {
		return nil, err
	}
	return units.GroupByAxisPole(responses), nil
}

// snapshot checks the session and reads its responses concurrently.
func (e *Engine) snapshot(ctx context.Context, sessionCode string) ([]domain.StoredResponse, error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := e.sessions.GetSession(gctx, sessionCode)
		return err
	})

	var responses []domain.StoredResponse
	g.Go(func() error {
		var err error
		responses, err = e.responses.ListResponses(gctx, sessionCode)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if responses == nil {
		responses = []domain.StoredResponse{}
	}
	return responses, nil
}

// run executes the pipeline for op under a fresh execution context.
func (e *Engine) run(ctx context.Context, op string, state domain.State) (domain.State, error) {
	pipeline, ok := e.pipelines[op]
	if !ok {
		return state, fmt.Errorf("%w: no %s pipeline configured", domain.ErrInvalidConfiguration, op)
	}

	execID := uuid.NewString()
	state = state.WithExecutionContext(domain.ExecutionContext{
		PipelineID:  pipeline.ID(),
		Operation:   op,
		ExecutionID: execID,
	})

	start := time.Now()
	out, err := pipeline.Execute(ctx, state)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, ports.ErrTimeout) {
			status = "timeout"
		}
		e.logger.Warn("pipeline failed",
			zap.String("operation", op),
			zap.String("execution_id", execID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	} else {
		e.logger.Debug("pipeline completed",
			zap.String("operation", op),
			zap.String("execution_id", execID),
			zap.Duration("elapsed", elapsed),
		)
	}
	e.metrics.RecordLatency(op, elapsed, map[string]string{"unit": "engine", "status": status})
	return out, err
}

func (e *Engine) recordOutcome(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordCounter(op, 1, map[string]string{"unit": "engine", "status": status})
}

type nopMetrics struct{}

func (nopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (nopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (nopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (nopMetrics) RecordHistogram(string, float64, map[string]string)     {}
