// Package indexing applies inventory change events to the tour catalog:
// events are buffered into bulk requests, archived for analytics and the
// affected destination's cached search pages are dropped.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/cache"
	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/elasticsearch"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
)

type BulkIndexer interface {
	BulkIndex(ctx context.Context, actions []models.IndexAction) error
}

type EventArchiver interface {
	InsertInventoryEvent(ctx context.Context, event *models.InventoryEvent) error
}

type CacheInvalidator interface {
	InvalidatePattern(ctx context.Context, patterns []string) error
}

type StreamProcessor struct {
	indexer  BulkIndexer
	archiver EventArchiver
	cache    CacheInvalidator
	esCfg    config.ElasticsearchConfig
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	buffer []models.IndexAction
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewStreamProcessor starts the periodic flush loop. archiver and cache may
// be nil.
func NewStreamProcessor(
	indexer BulkIndexer,
	archiver EventArchiver,
	cache CacheInvalidator,
	esCfg config.ElasticsearchConfig,
	logger *zap.Logger,
) *StreamProcessor {
	if esCfg.BulkSize <= 0 {
		esCfg.BulkSize = 500
	}
	if esCfg.BulkFlushInterval <= 0 {
		esCfg.BulkFlushInterval = 5 * time.Second
	}
	sp := &StreamProcessor{
		indexer:  indexer,
		archiver: archiver,
		cache:    cache,
		esCfg:    esCfg,
		logger:   logger,
		now:      time.Now,
		buffer:   make([]models.IndexAction, 0, esCfg.BulkSize),
		ticker:   time.NewTicker(esCfg.BulkFlushInterval),
		done:     make(chan struct{}),
	}

	go sp.flushLoop()
	return sp
}

func (sp *StreamProcessor) HandleEvent(ctx context.Context, event *models.InventoryEvent) error {
	action, err := sp.transformEvent(event)
	if err != nil {
		return fmt.Errorf("transforming event: %w", err)
	}

	sp.mu.Lock()
	sp.buffer = append(sp.buffer, *action)
	shouldFlush := len(sp.buffer) >= sp.esCfg.BulkSize
	sp.mu.Unlock()

	if shouldFlush {
		if err := sp.flush(ctx); err != nil {
			sp.logger.Error("flush on buffer full failed", zap.Error(err))
		}
	}

	if sp.archiver != nil {
		sp.wg.Add(1)
		go func() {
			defer sp.wg.Done()
			chCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sp.archiver.InsertInventoryEvent(chCtx, event); err != nil {
				sp.logger.Warn("inventory event archive failed",
					zap.String("tour_id", event.TourID),
					zap.Error(err),
				)
			}
		}()
	}

	if sp.cache != nil {
		sp.wg.Add(1)
		go func() {
			defer sp.wg.Done()
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := sp.cache.InvalidatePattern(cacheCtx, buildInvalidationKeys(event)); err != nil {
				sp.logger.Warn("cache invalidation failed",
					zap.String("tour_id", event.TourID),
					zap.Error(err),
				)
			}
		}()
	}
	return nil
}

// PublishInventory applies a batch without going through the event stream.
// Invalid events are skipped and reported together.
func (sp *StreamProcessor) PublishInventory(ctx context.Context, events []*models.InventoryEvent) error {
	var errs []error
	for _, e := range events {
		if err := sp.HandleEvent(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("tour %s: %w", e.TourID, err))
		}
	}
	return errors.Join(errs...)
}

func (sp *StreamProcessor) transformEvent(event *models.InventoryEvent) (*models.IndexAction, error) {
	if event.TourID == "" {
		return nil, fmt.Errorf("event without tour id")
	}
	countryID := event.CountryID
	if countryID == 0 && event.Tour != nil {
		countryID = event.Tour.CountryID
	}
	if countryID == 0 {
		return nil, fmt.Errorf("tour %s: no country", event.TourID)
	}
	event.CountryID = countryID

	action := &models.IndexAction{
		ID:        event.TourID,
		Index:     elasticsearch.TourIndex(sp.esCfg.IndexPrefix, countryID),
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case "UPSERT":
		if event.Tour == nil {
			return nil, fmt.Errorf("upsert of %s without document", event.TourID)
		}
		doc := *event.Tour
		doc.TourID = event.TourID
		doc.CountryID = countryID
		doc.UpdatedAt = sp.now().UTC()
		action.Action = "index"
		action.Body = &doc
	case "DELETE":
		action.Action = "delete"
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
	return action, nil
}

func (sp *StreamProcessor) flushLoop() {
	for {
		select {
		case <-sp.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sp.flush(ctx); err != nil {
				sp.logger.Error("periodic flush failed", zap.Error(err))
			}
			cancel()
		case <-sp.done:
			return
		}
	}
}

func (sp *StreamProcessor) flush(ctx context.Context) error {
	sp.mu.Lock()
	if len(sp.buffer) == 0 {
		sp.mu.Unlock()
		return nil
	}
	batch := make([]models.IndexAction, len(sp.buffer))
	copy(batch, sp.buffer)
	sp.buffer = sp.buffer[:0]
	sp.mu.Unlock()

	start := time.Now()
	if err := sp.indexer.BulkIndex(ctx, batch); err != nil {
		// Failed items go back to the front of the buffer.
		sp.mu.Lock()
		sp.buffer = append(batch, sp.buffer...)
		sp.mu.Unlock()

		observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
		return fmt.Errorf("bulk index flush: %w", err)
	}

	observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Add(float64(len(batch)))
	sp.logger.Info("bulk flush completed",
		zap.Int("count", len(batch)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (sp *StreamProcessor) Pending() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.buffer)
}

func (sp *StreamProcessor) Stop() error {
	sp.ticker.Stop()
	close(sp.done)
	sp.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sp.flush(ctx)
}

// buildInvalidationKeys drops the fresh result pages of the event's
// destination. Stale copies stay as the outage fallback.
func buildInvalidationKeys(event *models.InventoryEvent) []string {
	return []string{cache.SearchPattern(event.CountryID)}
}
