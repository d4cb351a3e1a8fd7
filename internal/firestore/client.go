// Package firestore reads hotel details from the hotels collection to fill in
// what search backends leave out. Documents are keyed by hotel id and kept in
// a local cache that a snapshot listener keeps current.
package firestore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
)

type Hotel struct {
	ID       int
	Name     string
	Stars    int
	Rating   float64
	Region   string
	ImageURL string
}

type Client struct {
	client *firestore.Client
	cfg    config.FirestoreConfig
	logger *zap.Logger
	fetch  func(ctx context.Context, ids []string) (map[string]map[string]any, error)

	mu     sync.RWMutex
	hotels map[int]Hotel
}

func NewClient(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	logger.Info("firestore client connected", zap.String("project", cfg.ProjectID))

	c := &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
		hotels: make(map[int]Hotel),
	}
	c.fetch = func(ctx context.Context, ids []string) (map[string]map[string]any, error) {
		return c.GetMulti(ctx, cfg.HotelCollection, ids)
	}
	return c, nil
}

func (c *Client) GetMulti(ctx context.Context, collection string, docIDs []string) (map[string]map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.get_multi",
		attribute.String("collection", collection),
		attribute.Int("count", len(docIDs)),
	)
	defer span.End()

	result := make(map[string]map[string]any, len(docIDs))

	batchSize := c.cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for i := 0; i < len(docIDs); i += batchSize {
		end := min(i+batchSize, len(docIDs))
		batch := docIDs[i:end]

		// Each batch gets its own timeout so sequential batches don't starve.
		batchCtx, batchCancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = c.client.Collection(collection).Doc(id)
		}

		docs, err := c.client.GetAll(batchCtx, refs)
		batchCancel()
		if err != nil {
			return nil, fmt.Errorf("firestore get_all batch %d: %w", i/batchSize, err)
		}

		for _, doc := range docs {
			if doc.Exists() {
				result[doc.Ref.ID] = doc.Data()
			}
		}
	}
	return result, nil
}

// Hydrate fills missing hotel name, stars, rating, region and image from the
// hotel catalog. Values present in results are never overwritten. A lookup
// failure returns results unchanged.
func (c *Client) Hydrate(ctx context.Context, results []models.TourResult) ([]models.TourResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	ctx, span := observability.StartSpan(ctx, "firestore.hydrate",
		attribute.Int("results", len(results)),
	)
	defer span.End()

	var missing []string
	seen := make(map[int]bool)
	c.mu.RLock()
	for _, r := range results {
		if _, ok := c.hotels[r.HotelID]; !ok && !seen[r.HotelID] {
			seen[r.HotelID] = true
			missing = append(missing, strconv.Itoa(r.HotelID))
		}
	}
	c.mu.RUnlock()

	if len(missing) > 0 {
		docs, err := c.fetch(ctx, missing)
		if err != nil {
			c.logger.Warn("hydration failed, returning unhydrated results", zap.Error(err))
			return results, nil
		}
		c.mu.Lock()
		for id, doc := range docs {
			if h, ok := hotelFromDoc(id, doc); ok {
				c.hotels[h.ID] = h
			}
		}
		c.mu.Unlock()
	}

	out := make([]models.TourResult, len(results))
	c.mu.RLock()
	for i, r := range results {
		if h, ok := c.hotels[r.HotelID]; ok {
			r = applyHotel(r, h)
		}
		out[i] = r
	}
	c.mu.RUnlock()
	return out, nil
}

func applyHotel(r models.TourResult, h Hotel) models.TourResult {
	if r.HotelName == "" {
		r.HotelName = h.Name
	}
	if r.Stars == 0 {
		r.Stars = h.Stars
	}
	if r.Rating == 0 {
		r.Rating = h.Rating
	}
	if r.Region == "" {
		r.Region = h.Region
	}
	if r.ImageURL == "" {
		r.ImageURL = h.ImageURL
	}
	return r
}

func hotelFromDoc(docID string, data map[string]any) (Hotel, bool) {
	id, err := strconv.Atoi(docID)
	if err != nil || id <= 0 {
		return Hotel{}, false
	}
	h := Hotel{ID: id}
	h.Name, _ = data["name"].(string)
	h.Region, _ = data["region"].(string)
	h.ImageURL, _ = data["image_url"].(string)
	if v, ok := number(data["stars"]); ok {
		h.Stars = int(v)
	}
	if v, ok := number(data["rating"]); ok {
		h.Rating = v
	}
	return h, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ListenChanges keeps the local hotel cache in step with the collection
// until ctx ends.
func (c *Client) ListenChanges(ctx context.Context) error {
	snapIter := c.client.Collection(c.cfg.HotelCollection).Snapshots(ctx)
	defer snapIter.Stop()

	for {
		snap, err := snapIter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("snapshot iterator error", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, change := range snap.Changes {
			c.applyChange(change.Kind, change.Doc.Ref.ID, change.Doc.Data())
		}
	}
}

func (c *Client) applyChange(kind firestore.DocumentChangeKind, docID string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case firestore.DocumentAdded, firestore.DocumentModified:
		if h, ok := hotelFromDoc(docID, data); ok {
			c.hotels[h.ID] = h
		}
	case firestore.DocumentRemoved:
		if id, err := strconv.Atoi(docID); err == nil {
			delete(c.hotels, id)
		}
	}
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	iter := c.client.Collection(c.cfg.HotelCollection).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	// iterator.Done means the collection is empty; Firestore is reachable.
	if err != nil && err != iterator.Done {
		return fmt.Errorf("firestore health check: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
