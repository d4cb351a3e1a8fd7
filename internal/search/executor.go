// Package search executes resolved search specs against a search backend:
// submit, bounded polling, payload normalization, one retry, circuit breaking,
// result caching with a stale fallback and hotel detail hydration.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
	"github.com/shubhsaxena/tour-concierge/internal/resilience"
)

var (
	// ErrTimeout means the backend never reported completion within the poll
	// ceiling.
	ErrTimeout = errors.New("search backend did not complete in time")
	// ErrUnavailable is returned once the retry also failed and no cached
	// answer exists.
	ErrUnavailable = errors.New("search backend unavailable")
)

// Outcome sources.
const (
	SourceBackend = "backend"
	SourceCache   = "cache"
	SourceStale   = "stale_cache"
)

// PollResult is one poll answer. Payload is the backend's raw result
// document; it may be partial while Done is false.
type PollResult struct {
	Done    bool
	Payload json.RawMessage
}

// Backend is the asynchronous search collaborator.
type Backend interface {
	Name() string
	Submit(ctx context.Context, spec models.SearchSpec) (string, error)
	Poll(ctx context.Context, requestID string) (PollResult, error)
}

// ResultCache stores outcomes per search spec page. Get misses return nil
// without error.
type ResultCache interface {
	Get(ctx context.Context, spec models.SearchSpec) (*models.SearchOutcome, error)
	GetStale(ctx context.Context, spec models.SearchSpec) (*models.SearchOutcome, error)
	Set(ctx context.Context, spec models.SearchSpec, outcome models.SearchOutcome) error
}

// Hydrator fills hotel details missing from backend payloads.
type Hydrator interface {
	Hydrate(ctx context.Context, results []models.TourResult) ([]models.TourResult, error)
}

type Executor struct {
	backend      Backend
	breaker      *gobreaker.CircuitBreaker
	retry        resilience.RetryConfig
	pollInterval time.Duration
	pollTimeout  time.Duration
	maxResults   int
	currency     string
	cache        ResultCache
	hydrator     Hydrator
	slow         *observability.SlowSearchDetector
	logger       *zap.Logger
}

type Option func(*Executor)

func WithCache(c ResultCache) Option {
	return func(e *Executor) { e.cache = c }
}

func WithHydrator(h Hydrator) Option {
	return func(e *Executor) { e.hydrator = h }
}

// WithBreaker guards every Submit and Poll call.
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(e *Executor) { e.breaker = cb }
}

func WithSlowSearchDetector(d *observability.SlowSearchDetector) Option {
	return func(e *Executor) { e.slow = d }
}

func WithCurrency(c string) Option {
	return func(e *Executor) { e.currency = c }
}

func NewExecutor(backend Backend, cfg config.SearchConfig, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		backend:      backend,
		retry:        resilience.RetryConfigFrom(cfg.Retry),
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		maxResults:   cfg.MaxResults,
		currency:     "RUB",
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retry.MaxAttempts <= 0 {
		e.retry.MaxAttempts = 2
	}
	if e.pollInterval <= 0 {
		e.pollInterval = 1500 * time.Millisecond
	}
	if e.pollTimeout <= 0 {
		e.pollTimeout = 20 * time.Second
	}
	return e
}

func (e *Executor) Backend() string {
	return e.backend.Name()
}

// Execute runs spec. A fresh cached answer short-circuits the backend. A
// backend failure is retried once; if the retry fails too a stale cached
// answer is served, otherwise ErrUnavailable.
func (e *Executor) Execute(ctx context.Context, spec models.SearchSpec) (models.SearchOutcome, error) {
	name := e.backend.Name()
	ctx, span := observability.StartSpan(ctx, "search.execute",
		attribute.String("backend", name),
		attribute.Int("country_id", spec.Country.ID),
		attribute.Int("offset", spec.Offset),
	)
	defer span.End()
	start := time.Now()

	if e.cache != nil {
		cached, err := e.cache.Get(ctx, spec)
		if err != nil {
			e.logger.Warn("result cache lookup failed", zap.Error(err))
		}
		if cached != nil {
			cached.Source = SourceCache
			observability.SearchRequestsTotal.WithLabelValues(name, "cache_hit").Inc()
			return *cached, nil
		}
	}

	retryCfg := e.retry
	retryCfg.OnRetry = func(attempt int, err error) {
		e.logger.Warn("search attempt failed, retrying",
			zap.String("backend", name),
			zap.Int("attempt", attempt),
			zap.String("trace_id", observability.TraceIDFromContext(ctx)),
			zap.Error(err),
		)
	}

	var out models.SearchOutcome
	err := resilience.Retry(ctx, retryCfg, func() error {
		var execErr error
		out, execErr = e.executeOnce(ctx, spec)
		return execErr
	})
	duration := time.Since(start)

	if err != nil {
		observability.SearchRequestsTotal.WithLabelValues(name, "error").Inc()
		observability.SearchDuration.WithLabelValues(name, "error").Observe(duration.Seconds())
		e.logger.Warn("search failed",
			zap.String("backend", name),
			zap.String("trace_id", observability.TraceIDFromContext(ctx)),
			zap.Error(err),
		)
		if stale, ok := e.staleFallback(ctx, spec); ok {
			return stale, nil
		}
		return models.SearchOutcome{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if e.maxResults > 0 && len(out.Results) > e.maxResults {
		out.Results = out.Results[:e.maxResults]
	}
	out.Results = e.hydrate(ctx, out.Results)
	out.Backend = name
	out.Source = SourceBackend
	out.TookMs = duration.Milliseconds()

	if e.cache != nil && len(out.Results) > 0 && !out.TimedOut {
		if err := e.cache.Set(ctx, spec, out); err != nil {
			e.logger.Warn("result cache write failed", zap.Error(err))
		}
	}

	status := "success"
	if out.TimedOut {
		status = "timed_out"
	}
	observability.SearchRequestsTotal.WithLabelValues(name, status).Inc()
	observability.SearchDuration.WithLabelValues(name, out.Source).Observe(duration.Seconds())
	observability.SearchPolls.WithLabelValues(name).Observe(float64(out.PollCount))
	if e.slow != nil {
		e.slow.Intercept(ctx, spec, out, duration)
	}
	return out, nil
}

func (e *Executor) staleFallback(ctx context.Context, spec models.SearchSpec) (models.SearchOutcome, bool) {
	if e.cache == nil || ctx.Err() != nil {
		return models.SearchOutcome{}, false
	}
	stale, err := e.cache.GetStale(ctx, spec)
	if err != nil {
		e.logger.Warn("stale cache lookup failed", zap.Error(err))
		return models.SearchOutcome{}, false
	}
	if stale == nil {
		return models.SearchOutcome{}, false
	}
	stale.Source = SourceStale
	observability.SearchRequestsTotal.WithLabelValues(e.backend.Name(), "stale_cache").Inc()
	return *stale, true
}

// executeOnce submits spec and polls until completion or the poll ceiling.
// At the ceiling whatever partial results arrived are returned flagged
// TimedOut; with none, ErrTimeout.
func (e *Executor) executeOnce(ctx context.Context, spec models.SearchSpec) (models.SearchOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.pollTimeout)
	defer cancel()

	requestID, err := guarded(e.breaker, func() (string, error) {
		return e.backend.Submit(ctx, spec)
	})
	if err != nil {
		return models.SearchOutcome{}, fmt.Errorf("submit: %w", err)
	}

	out := models.SearchOutcome{RequestID: requestID}
	var last json.RawMessage
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.timedOut(out, last, ctx.Err())
		case <-timer.C:
		}

		res, err := guarded(e.breaker, func() (PollResult, error) {
			return e.backend.Poll(ctx, requestID)
		})
		if err != nil {
			if ctx.Err() != nil {
				return e.timedOut(out, last, ctx.Err())
			}
			return models.SearchOutcome{}, fmt.Errorf("poll %s: %w", requestID, err)
		}
		out.PollCount++
		if len(res.Payload) > 0 {
			last = res.Payload
		}
		if res.Done {
			results, err := Normalize(res.Payload, e.currency)
			if err != nil {
				return models.SearchOutcome{}, err
			}
			out.Results = results
			return out, nil
		}
		timer.Reset(e.pollInterval)
	}
}

func (e *Executor) timedOut(out models.SearchOutcome, last json.RawMessage, cause error) (models.SearchOutcome, error) {
	if len(last) > 0 {
		if results, err := Normalize(last, e.currency); err == nil && len(results) > 0 {
			out.Results = results
			out.TimedOut = true
			return out, nil
		}
	}
	return models.SearchOutcome{}, fmt.Errorf("%w after %d polls: %v", ErrTimeout, out.PollCount, cause)
}

func guarded[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}
	return resilience.Call(cb, fn)
}

func (e *Executor) hydrate(ctx context.Context, results []models.TourResult) []models.TourResult {
	if e.hydrator == nil || !needsHydration(results) {
		return results
	}
	hydrated, err := e.hydrator.Hydrate(ctx, results)
	if err != nil {
		e.logger.Warn("hotel hydration failed", zap.Error(err))
		return results
	}
	return hydrated
}

func needsHydration(results []models.TourResult) bool {
	for _, r := range results {
		if r.HotelName == "" || r.Stars == 0 || r.ImageURL == "" {
			return true
		}
	}
	return false
}
