package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
	"github.com/shubhsaxena/tour-concierge/internal/resilience"
)

type Client struct {
	es       *elasticsearch.Client
	cb       *gobreaker.CircuitBreaker
	cfg      config.ElasticsearchConfig
	retryCfg resilience.RetryConfig
	logger   *zap.Logger
}

func NewClient(cfg config.ElasticsearchConfig, searchCfg config.SearchConfig, logger *zap.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	res, err := es.Ping()
	if err != nil {
		return nil, fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned status: %s", res.Status())
	}

	logger.Info("elasticsearch client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		es:       es,
		cb:       resilience.NewCircuitBreaker("elasticsearch-catalog", searchCfg.CircuitBreaker, logger),
		cfg:      cfg,
		retryCfg: resilience.RetryConfigFrom(searchCfg.Retry),
		logger:   logger,
	}, nil
}

// SearchResult carries the raw _source documents of the matched tours.
type SearchResult struct {
	Hits     []json.RawMessage
	Total    int64
	TookMs   int64
	TimedOut bool
}

func (c *Client) Search(ctx context.Context, index string, query map[string]any) (*SearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "es.search",
		attribute.String("es.index", index),
	)
	defer span.End()

	start := time.Now()
	result, err := resilience.Call(c.cb, func() (*SearchResult, error) {
		var out *SearchResult
		retryErr := resilience.Retry(ctx, c.retryCfg, func() error {
			var execErr error
			out, execErr = c.executeSearch(ctx, index, query)
			return execErr
		})
		return out, retryErr
	})
	duration := time.Since(start)

	if err != nil {
		observability.ESQueryDuration.WithLabelValues(index, "error").Observe(duration.Seconds())
		return nil, fmt.Errorf("es search (index=%s): %w", index, err)
	}
	observability.ESQueryDuration.WithLabelValues(index, "success").Observe(duration.Seconds())
	return result, nil
}

func (c *Client) executeSearch(ctx context.Context, index string, query map[string]any) (*SearchResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshaling es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTimeout(c.cfg.RequestTimeout),
		c.es.Search.WithTrackTotalHits(true),
		c.es.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, fmt.Errorf("executing es search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es search error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decoding es response: %w", err)
	}

	hits := make([]json.RawMessage, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		if len(h.Source) > 0 {
			hits = append(hits, h.Source)
		}
	}
	return &SearchResult{
		Hits:     hits,
		Total:    esResp.Hits.Total.Value,
		TookMs:   esResp.Took,
		TimedOut: esResp.TimedOut,
	}, nil
}

func (c *Client) BulkIndex(ctx context.Context, actions []models.IndexAction) error {
	if len(actions) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "es.bulk_index",
		attribute.Int("batch_size", len(actions)),
	)
	defer span.End()

	body, err := BulkBody(actions)
	if err != nil {
		return err
	}

	res, err := c.es.Bulk(
		bytes.NewReader(body),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}
	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			for _, result := range item {
				if result.Error != nil {
					errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s", result.ID, result.Error.Reason))
				}
			}
		}
		return fmt.Errorf("bulk indexing had errors: %s", strings.Join(errMsgs, "; "))
	}
	return nil
}

// BulkBody renders actions as an NDJSON bulk request. Deletes carry no
// document line.
func BulkBody(actions []models.IndexAction) ([]byte, error) {
	var buf bytes.Buffer
	for _, action := range actions {
		inner := map[string]any{
			"_index": action.Index,
			"_id":    action.ID,
		}
		if action.Routing != "" {
			inner["routing"] = action.Routing
		}
		metaLine, err := json.Marshal(map[string]any{action.Action: inner})
		if err != nil {
			return nil, fmt.Errorf("marshaling bulk meta: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		if action.Action != "delete" && action.Body != nil {
			bodyLine, err := json.Marshal(action.Body)
			if err != nil {
				return nil, fmt.Errorf("marshaling bulk body: %w", err)
			}
			buf.Write(bodyLine)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// ResolveIndex names the catalog index of one destination country.
func (c *Client) ResolveIndex(countryID int) string {
	return TourIndex(c.cfg.IndexPrefix, countryID)
}

func TourIndex(prefix string, countryID int) string {
	return fmt.Sprintf("%s-tours-%d", prefix, countryID)
}

func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return "red", fmt.Errorf("es health check: %w", err)
	}
	defer res.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "red", fmt.Errorf("decoding health response: %w", err)
	}
	return health.Status, nil
}

func (c *Client) Close() error {
	return nil
}

type esSearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

type esHit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}
