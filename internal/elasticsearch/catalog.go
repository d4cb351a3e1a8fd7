package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/search"
)

type searcher interface {
	Search(ctx context.Context, index string, query map[string]any) (*SearchResult, error)
}

// CatalogBackend serves searches from the indexed tour catalog. The query
// runs at Submit; Poll hands back the stored answer once.
type CatalogBackend struct {
	es     searcher
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	answers map[string]storedAnswer
}

type storedAnswer struct {
	payload json.RawMessage
	expires time.Time
}

var _ search.Backend = (*CatalogBackend)(nil)

func NewCatalogBackend(es searcher, indexPrefix string, logger *zap.Logger) *CatalogBackend {
	return &CatalogBackend{
		es:      es,
		prefix:  indexPrefix,
		ttl:     time.Minute,
		logger:  logger,
		now:     time.Now,
		answers: make(map[string]storedAnswer),
	}
}

func (b *CatalogBackend) Name() string {
	return "catalog"
}

func (b *CatalogBackend) Submit(ctx context.Context, spec models.SearchSpec) (string, error) {
	index := TourIndex(b.prefix, spec.Country.ID)
	res, err := b.es.Search(ctx, index, BuildTourQuery(spec))
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]any{"results": res.Hits, "total": res.Total})
	if err != nil {
		return "", fmt.Errorf("encoding catalog answer: %w", err)
	}

	id := uuid.NewString()
	now := b.now()
	b.mu.Lock()
	for k, a := range b.answers {
		if now.After(a.expires) {
			delete(b.answers, k)
		}
	}
	b.answers[id] = storedAnswer{payload: payload, expires: now.Add(b.ttl)}
	b.mu.Unlock()

	b.logger.Debug("catalog search answered",
		zap.String("request_id", id),
		zap.String("index", index),
		zap.Int("hits", len(res.Hits)),
		zap.Int64("took_ms", res.TookMs),
	)
	return id, nil
}

func (b *CatalogBackend) Poll(_ context.Context, requestID string) (search.PollResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.answers[requestID]
	if !ok {
		return search.PollResult{}, fmt.Errorf("unknown catalog request %s", requestID)
	}
	delete(b.answers, requestID)
	return search.PollResult{Done: true, Payload: a.payload}, nil
}
