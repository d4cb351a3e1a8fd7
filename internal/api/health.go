package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusChecker reports a cluster colour (green, yellow, red) next to the
// error, as Elasticsearch does.
type StatusChecker interface {
	HealthCheck(ctx context.Context) (string, error)
}

// CheckFunc adapts a plain function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks   map[string]HealthChecker
	statuses map[string]StatusChecker
	info     map[string]string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks:   make(map[string]HealthChecker),
		statuses: make(map[string]StatusChecker),
		info:     make(map[string]string),
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

func (h *HealthHandler) Register(name string, checker HealthChecker) {
	h.checks[name] = checker
}

func (h *HealthHandler) RegisterStatus(name string, checker StatusChecker) {
	h.statuses[name] = checker
}

// SetInfo attaches a static fact to readiness answers, e.g. the active
// search backend.
func (h *HealthHandler) SetInfo(key, value string) {
	h.info[key] = value
}

type componentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// Readiness runs every registered check concurrently. Any unhealthy or red
// component degrades the service.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make(map[string]componentHealth, len(h.checks)+len(h.statuses))
	var mu sync.Mutex
	var wg sync.WaitGroup
	record := func(name string, ch componentHealth) {
		mu.Lock()
		results[name] = ch
		mu.Unlock()
	}

	for name, checker := range h.checks {
		wg.Add(1)
		go func(n string, c HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := c.HealthCheck(ctx)
			ch := componentHealth{Status: "healthy", Latency: time.Since(start).String()}
			if err != nil {
				ch.Status = "unhealthy"
				ch.Error = err.Error()
			}
			record(n, ch)
		}(name, checker)
	}

	for name, checker := range h.statuses {
		wg.Add(1)
		go func(n string, c StatusChecker) {
			defer wg.Done()
			start := time.Now()
			status, err := c.HealthCheck(ctx)
			ch := componentHealth{Status: status, Latency: time.Since(start).String()}
			if err != nil {
				ch.Error = err.Error()
				if ch.Status == "" {
					ch.Status = "unhealthy"
				}
			}
			record(n, ch)
		}(name, checker)
	}

	wg.Wait()

	overallStatus := http.StatusOK
	overall := "healthy"
	for name, ch := range results {
		if ch.Status == "unhealthy" || ch.Status == "red" {
			overallStatus = http.StatusServiceUnavailable
			overall = "degraded"
			h.logger.Warn("readiness check failed", zap.String("component", name), zap.String("error", ch.Error))
		}
	}

	body := map[string]any{
		"status":     overall,
		"components": results,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range h.info {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(overallStatus)
	json.NewEncoder(w).Encode(body)
}
