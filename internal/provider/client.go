// Package provider talks to the live tour inventory API: a search is
// submitted once and its result document is polled by request id.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
	"github.com/shubhsaxena/tour-concierge/internal/search"
)

var ErrNoRequestID = errors.New("provider response has no request id")

const maxBody = 8 << 20

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

var _ search.Backend = (*Client)(nil)

func NewClient(cfg config.ProviderConfig, client *http.Client, logger *zap.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  logger,
	}
}

func (c *Client) Name() string {
	return config.BackendProvider
}

type searchRequest struct {
	CountryID  int     `json:"country_id"`
	NightsFrom int     `json:"nights_from"`
	NightsTo   int     `json:"nights_to"`
	PriceFrom  int     `json:"price_from,omitempty"`
	PriceTo    int     `json:"price_to,omitempty"`
	Meal       string  `json:"meal,omitempty"`
	DateFrom   string  `json:"date_from"`
	DateTo     string  `json:"date_to"`
	Stars      float64 `json:"stars,omitempty"`
	Adults     int     `json:"adults"`
	Children   int     `json:"children,omitempty"`
	Sort       string  `json:"sort,omitempty"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit,omitempty"`
}

func newSearchRequest(spec models.SearchSpec) searchRequest {
	priceFrom, priceTo := spec.Budget.Bounds()
	req := searchRequest{
		CountryID:  spec.Country.ID,
		NightsFrom: spec.Nights.Min,
		NightsTo:   spec.Nights.Max,
		PriceFrom:  priceFrom,
		PriceTo:    priceTo,
		DateFrom:   spec.DateFrom,
		DateTo:     spec.DateTo,
		Stars:      spec.Rating,
		Adults:     spec.Adults,
		Children:   spec.Children,
		Sort:       string(spec.Sort),
		Offset:     spec.Offset,
		Limit:      spec.Limit,
	}
	if spec.Meal != models.MealAny {
		req.Meal = string(spec.Meal)
	}
	return req
}

// Submit starts a search and returns the provider's request id.
func (c *Client) Submit(ctx context.Context, spec models.SearchSpec) (string, error) {
	ctx, span := observability.StartSpan(ctx, "provider.submit",
		attribute.Int("country_id", spec.Country.ID),
	)
	defer span.End()

	body, err := json.Marshal(newSearchRequest(spec))
	if err != nil {
		return "", fmt.Errorf("encoding search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("submitting search: %w", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	for _, k := range []string{"requestId", "request_id", "id"} {
		switch v := resp[k].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return fmt.Sprintf("%.0f", v), nil
		}
	}
	return "", ErrNoRequestID
}

// Poll fetches the current result document. The raw body is handed on as
// the payload; completion is read from a status string or a boolean flag.
func (c *Client) Poll(ctx context.Context, requestID string) (search.PollResult, error) {
	ctx, span := observability.StartSpan(ctx, "provider.poll",
		attribute.String("request_id", requestID),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/"+url.PathEscape(requestID), nil)
	if err != nil {
		return search.PollResult{}, fmt.Errorf("building poll request: %w", err)
	}
	raw, err := c.do(req)
	if err != nil {
		return search.PollResult{}, fmt.Errorf("polling %s: %w", requestID, err)
	}

	var status struct {
		Status     string `json:"status"`
		State      string `json:"state"`
		Done       *bool  `json:"done"`
		IsFinished *bool  `json:"isFinished"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		// A bare result list carries no status and is final.
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			return search.PollResult{Done: true, Payload: raw}, nil
		}
		return search.PollResult{}, fmt.Errorf("decoding poll response: %w", err)
	}
	return search.PollResult{Done: isDone(status.Status, status.State, status.Done, status.IsFinished), Payload: raw}, nil
}

func isDone(status, state string, flags ...*bool) bool {
	for _, f := range flags {
		if f != nil {
			return *f
		}
	}
	for _, s := range []string{status, state} {
		switch strings.ToLower(s) {
		case "done", "finished", "complete", "completed", "ready":
			return true
		}
	}
	return false
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if res.StatusCode >= 300 {
		c.logger.Warn("provider returned error status",
			zap.String("url", req.URL.Path),
			zap.Int("status", res.StatusCode),
		)
		return nil, fmt.Errorf("status %d", res.StatusCode)
	}
	return body, nil
}
