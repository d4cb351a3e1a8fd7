package observability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

type SlowSearchDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	analyticsWriter   AnalyticsWriter
}

type AnalyticsWriter interface {
	WriteSearchEvent(ctx context.Context, event *models.SearchEvent) error
}

func NewSlowSearchDetector(warning, critical time.Duration, logger *zap.Logger, aw AnalyticsWriter) *SlowSearchDetector {
	return &SlowSearchDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		analyticsWriter:   aw,
	}
}

// Intercept records searches slower than the warning threshold. Fast searches
// return immediately.
func (d *SlowSearchDetector) Intercept(ctx context.Context, spec models.SearchSpec, outcome models.SearchOutcome, duration time.Duration) {
	if duration <= d.warningThreshold {
		return
	}

	traceID := TraceIDFromContext(ctx)
	severity := d.classifySeverity(duration)
	specHash := HashSpec(spec.FilterKey())

	SlowSearchCounter.WithLabelValues(severity, outcome.Backend).Inc()

	d.logger.Warn("slow search detected",
		zap.String("trace_id", traceID),
		zap.String("spec_hash", specHash),
		zap.String("backend", outcome.Backend),
		zap.String("request_id", outcome.RequestID),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Int("poll_count", outcome.PollCount),
		zap.Int("results", len(outcome.Results)),
		zap.Bool("timed_out", outcome.TimedOut),
		zap.String("severity", severity),
	)

	if d.analyticsWriter == nil {
		return
	}
	_, budgetMax := spec.Budget.Bounds()
	event := &models.SearchEvent{
		EventType:  "slow_search",
		RequestID:  outcome.RequestID,
		SpecHash:   specHash,
		CountryID:  spec.Country.ID,
		Nights:     spec.Nights.Min,
		BudgetMax:  budgetMax,
		Meal:       string(spec.Meal),
		Backend:    outcome.Backend,
		Source:     outcome.Source,
		DurationMs: float64(duration.Milliseconds()),
		Results:    len(outcome.Results),
		PollCount:  outcome.PollCount,
		TimedOut:   outcome.TimedOut,
		Timestamp:  time.Now().UTC(),
		TraceID:    traceID,
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.analyticsWriter.WriteSearchEvent(writeCtx, event); err != nil {
			d.logger.Error("failed to write slow search event",
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
		}
	}()
}

func (d *SlowSearchDetector) classifySeverity(dur time.Duration) string {
	if dur > d.criticalThreshold {
		return "critical"
	}
	if dur > d.warningThreshold {
		return "warning"
	}
	return "normal"
}

// HashSpec is a short stable digest of a search spec key for logs and
// analytics rows.
func HashSpec(key string) string {
	return fmt.Sprintf("%016x", hashUint64(key))
}

func hashUint64(s string) uint64 {
	h := uint64(0)
	for _, c := range s {
		h = h*31 + uint64(c)
	}
	return h
}
