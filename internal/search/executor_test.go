package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/resilience"
)

type fakeBackend struct {
	mu         sync.Mutex
	submits    int
	polls      int
	submitErrs []error
	// script is consumed one entry per poll; the last entry repeats.
	script []PollResult
	pollErr error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Submit(_ context.Context, _ models.SearchSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("req-%d", f.submits), nil
}

func (f *fakeBackend) Poll(_ context.Context, _ string) (PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return PollResult{}, f.pollErr
	}
	if len(f.script) == 0 {
		return PollResult{}, nil
	}
	res := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	return res, nil
}

func (f *fakeBackend) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.polls
}

type memoryCache struct {
	mu    sync.Mutex
	fresh map[string]models.SearchOutcome
	stale map[string]models.SearchOutcome
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		fresh: make(map[string]models.SearchOutcome),
		stale: make(map[string]models.SearchOutcome),
	}
}

func (c *memoryCache) Get(_ context.Context, spec models.SearchSpec) (*models.SearchOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.fresh[spec.CacheKey()]; ok {
		return &o, nil
	}
	return nil, nil
}

func (c *memoryCache) GetStale(_ context.Context, spec models.SearchSpec) (*models.SearchOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.stale[spec.CacheKey()]; ok {
		return &o, nil
	}
	return nil, nil
}

func (c *memoryCache) Set(_ context.Context, spec models.SearchSpec, o models.SearchOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.fresh[spec.CacheKey()] = o
	c.stale[spec.CacheKey()] = o
	return nil
}

type fakeHydrator struct{ calls int }

func (h *fakeHydrator) Hydrate(_ context.Context, results []models.TourResult) ([]models.TourResult, error) {
	h.calls++
	out := make([]models.TourResult, len(results))
	for i, r := range results {
		if r.HotelName == "" {
			r.HotelName = fmt.Sprintf("Hotel %d", r.HotelID)
		}
		out[i] = r
	}
	return out, nil
}

func payload(t *testing.T, hotelIDs ...int) json.RawMessage {
	t.Helper()
	items := make([]map[string]any, 0, len(hotelIDs))
	for _, id := range hotelIDs {
		items = append(items, map[string]any{"hotel_id": id, "price": 50000 + id, "stars": 4, "image": "img"})
	}
	b, err := json.Marshal(map[string]any{"results": items})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func testConfig() config.SearchConfig {
	return config.SearchConfig{
		PollInterval: time.Millisecond,
		PollTimeout:  200 * time.Millisecond,
		MaxResults:   10,
		Retry: config.RetryConfig{
			MaxAttempts: 2,
			InitialWait: time.Millisecond,
			MaxWait:     5 * time.Millisecond,
			Multiplier:  2,
		},
	}
}

func testSpec() models.SearchSpec {
	tr, _ := models.CountryByID(4)
	return models.SearchSpec{
		Country:  tr,
		Nights:   models.ExactNights(7),
		Budget:   models.NewMaxBudget(150000),
		Meal:     models.MealAny,
		DateFrom: "2025-06-11",
		DateTo:   "2025-07-11",
		Adults:   2,
		Sort:     models.SortPriceAsc,
		Limit:    5,
	}
}

func TestExecute_PollsUntilDone(t *testing.T) {
	b := &fakeBackend{script: []PollResult{
		{Done: false},
		{Done: false, Payload: payload(t, 1)},
		{Done: true, Payload: payload(t, 1, 2, 3)},
	}}
	e := NewExecutor(b, testConfig(), zap.NewNop())

	out, err := e.Execute(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Results) != 3 || out.TimedOut {
		t.Fatalf("results = %d timedOut = %v", len(out.Results), out.TimedOut)
	}
	if out.PollCount != 3 {
		t.Errorf("poll count = %d, want 3", out.PollCount)
	}
	if out.RequestID != "req-1" || out.Backend != "fake" || out.Source != SourceBackend {
		t.Errorf("unexpected outcome metadata %+v", out)
	}
}

func TestExecute_TimeoutWithPartialResults(t *testing.T) {
	b := &fakeBackend{script: []PollResult{{Done: false, Payload: payload(t, 7, 8)}}}
	cfg := testConfig()
	cfg.PollTimeout = 30 * time.Millisecond
	e := NewExecutor(b, cfg, zap.NewNop())

	out, err := e.Execute(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("partial results should not fail: %v", err)
	}
	if !out.TimedOut || len(out.Results) != 2 {
		t.Errorf("timedOut = %v results = %d", out.TimedOut, len(out.Results))
	}
	if submits, _ := b.counts(); submits != 1 {
		t.Errorf("partial results must not be retried, submits = %d", submits)
	}
}

func TestExecute_TimeoutWithoutResultsRetriesOnce(t *testing.T) {
	b := &fakeBackend{script: []PollResult{{Done: false}}}
	cfg := testConfig()
	cfg.PollTimeout = 20 * time.Millisecond
	e := NewExecutor(b, cfg, zap.NewNop())

	_, err := e.Execute(context.Background(), testSpec())
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want unavailable wrapping timeout", err)
	}
	if submits, _ := b.counts(); submits != 2 {
		t.Errorf("submits = %d, want 2", submits)
	}
}

func TestExecute_RetrySucceeds(t *testing.T) {
	b := &fakeBackend{
		submitErrs: []error{errors.New("connection reset")},
		script:     []PollResult{{Done: true, Payload: payload(t, 5)}},
	}
	e := NewExecutor(b, testConfig(), zap.NewNop())

	out, err := e.Execute(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Results) != 1 || out.RequestID != "req-2" {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestExecute_PollErrorFailsAttempt(t *testing.T) {
	b := &fakeBackend{pollErr: errors.New("502")}
	e := NewExecutor(b, testConfig(), zap.NewNop())

	_, err := e.Execute(context.Background(), testSpec())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if submits, polls := b.counts(); submits != 2 || polls != 2 {
		t.Errorf("submits = %d polls = %d, want 2 and 2", submits, polls)
	}
}

func TestExecute_CacheHitSkipsBackend(t *testing.T) {
	b := &fakeBackend{}
	cache := newMemoryCache()
	spec := testSpec()
	cache.fresh[spec.CacheKey()] = models.SearchOutcome{RequestID: "cached", Results: []models.TourResult{{HotelID: 1, Price: 1}}}
	e := NewExecutor(b, testConfig(), zap.NewNop(), WithCache(cache))

	out, err := e.Execute(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	if out.Source != SourceCache || out.RequestID != "cached" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if submits, _ := b.counts(); submits != 0 {
		t.Errorf("backend called %d times on cache hit", submits)
	}
}

func TestExecute_StaleFallback(t *testing.T) {
	b := &fakeBackend{submitErrs: []error{errors.New("down"), errors.New("down")}}
	cache := newMemoryCache()
	spec := testSpec()
	cache.stale[spec.CacheKey()] = models.SearchOutcome{RequestID: "old", Results: []models.TourResult{{HotelID: 1, Price: 1}}}
	e := NewExecutor(b, testConfig(), zap.NewNop(), WithCache(cache))

	out, err := e.Execute(context.Background(), spec)
	if err != nil {
		t.Fatalf("stale fallback expected, got %v", err)
	}
	if out.Source != SourceStale || out.RequestID != "old" {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestExecute_CachesCompleteResults(t *testing.T) {
	b := &fakeBackend{script: []PollResult{{Done: true, Payload: payload(t, 1, 2)}}}
	cache := newMemoryCache()
	e := NewExecutor(b, testConfig(), zap.NewNop(), WithCache(cache))

	if _, err := e.Execute(context.Background(), testSpec()); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}

	empty := &fakeBackend{script: []PollResult{{Done: true, Payload: json.RawMessage(`[]`)}}}
	cache2 := newMemoryCache()
	e2 := NewExecutor(empty, testConfig(), zap.NewNop(), WithCache(cache2))
	out, err := e2.Execute(context.Background(), testSpec())
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 0 || cache2.sets != 0 {
		t.Errorf("empty result set must not be cached, sets = %d", cache2.sets)
	}
}

func TestExecute_BreakerOpens(t *testing.T) {
	b := &fakeBackend{submitErrs: []error{errors.New("down"), errors.New("down")}}
	cb := resilience.NewCircuitBreaker("test-search", config.CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, zap.NewNop())
	e := NewExecutor(b, testConfig(), zap.NewNop(), WithBreaker(cb))

	_, err := e.Execute(context.Background(), testSpec())
	if !errors.Is(err, ErrUnavailable) || !resilience.IsBreakerRejection(err) {
		t.Fatalf("err = %v, want breaker rejection", err)
	}
	if submits, _ := b.counts(); submits != 1 {
		t.Errorf("open breaker must short-circuit the retry, submits = %d", submits)
	}
}

func TestExecute_CapAndHydrate(t *testing.T) {
	ids := make([]int, 15)
	for i := range ids {
		ids[i] = i + 1
	}
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{"hotel_id": id, "price": 1000 * id})
	}
	raw, _ := json.Marshal(items)

	b := &fakeBackend{script: []PollResult{{Done: true, Payload: raw}}}
	h := &fakeHydrator{}
	e := NewExecutor(b, testConfig(), zap.NewNop(), WithHydrator(h))

	out, err := e.Execute(context.Background(), testSpec())
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 10 {
		t.Errorf("results = %d, want capped at 10", len(out.Results))
	}
	if h.calls != 1 || out.Results[0].HotelName != "Hotel 1" {
		t.Errorf("hydration not applied: calls = %d first = %+v", h.calls, out.Results[0])
	}
}
