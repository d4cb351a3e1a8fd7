package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
)

type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))
	return &Client{conn: conn, logger: logger}, nil
}

// WriteSearchEvent records one executed search.
func (c *Client) WriteSearchEvent(ctx context.Context, event *models.SearchEvent) error {
	query := `
		INSERT INTO search_events (
			event_type, chat_id, request_id, spec_hash, country_id, nights,
			budget_max, meal, backend, source, duration_ms, results,
			poll_count, timed_out, failed, timestamp, trace_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.exec(ctx, "search_event", query,
		event.EventType,
		event.ChatID,
		event.RequestID,
		event.SpecHash,
		int32(event.CountryID),
		int32(event.Nights),
		int64(event.BudgetMax),
		event.Meal,
		event.Backend,
		event.Source,
		event.DurationMs,
		int32(event.Results),
		int32(event.PollCount),
		event.TimedOut,
		event.Failed,
		event.Timestamp,
		event.TraceID,
	)
}

func (c *Client) InsertInventoryEvent(ctx context.Context, event *models.InventoryEvent) error {
	query := `
		INSERT INTO inventory_changelog (
			tour_id, country_id, operation, timestamp, version
		) VALUES (?, ?, ?, ?, ?)
	`
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return c.exec(ctx, "inventory_event", query,
		event.TourID,
		int32(event.CountryID),
		event.Type,
		ts,
		event.Version,
	)
}

func (c *Client) Name() string { return "clickhouse" }

// Record archives a lead. The full search spec is kept as JSON.
func (c *Client) Record(ctx context.Context, lead models.Lead) error {
	spec, err := json.Marshal(lead.Spec)
	if err != nil {
		return fmt.Errorf("encoding lead spec: %w", err)
	}
	query := `
		INSERT INTO leads (
			id, timestamp, chat_id, user_id, username, name, phone,
			request_id, hotel_id, hotel_name, price, currency, country_id, spec
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.exec(ctx, "lead", query,
		lead.ID,
		lead.Timestamp,
		lead.ChatID,
		lead.UserID,
		lead.Username,
		lead.Name,
		lead.Phone,
		lead.RequestID,
		int64(lead.HotelID),
		lead.HotelName,
		int64(lead.Price),
		lead.Currency,
		int32(lead.Spec.Country.ID),
		string(spec),
	)
}

// TopDestinations ranks destinations by searches since the given time.
func (c *Client) TopDestinations(ctx context.Context, since time.Time, limit int) ([]models.DestinationStat, error) {
	ctx, span := observability.StartSpan(ctx, "ch.top_destinations",
		attribute.Int("limit", limit),
	)
	defer span.End()

	start := time.Now()
	query := `
		SELECT
			country_id,
			count() AS searches,
			avgIf(budget_max, budget_max > 0) AS avg_budget
		FROM search_events
		WHERE timestamp >= ? AND event_type = 'search'
		GROUP BY country_id
		ORDER BY searches DESC
		LIMIT ?
	`
	rows, err := c.conn.Query(ctx, query, since, limit)
	if err != nil {
		observability.CHQueryDuration.WithLabelValues("top_destinations", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("ch top destinations: %w", err)
	}
	defer rows.Close()

	var stats []models.DestinationStat
	for rows.Next() {
		var (
			countryID int32
			searches  uint64
			avgBudget float64
		)
		if err := rows.Scan(&countryID, &searches, &avgBudget); err != nil {
			return nil, fmt.Errorf("scanning destination row: %w", err)
		}
		stats = append(stats, destinationStat(int(countryID), searches, avgBudget))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating destination rows: %w", err)
	}

	observability.CHQueryDuration.WithLabelValues("top_destinations", "success").Observe(time.Since(start).Seconds())
	return stats, nil
}

func destinationStat(countryID int, searches uint64, avgBudget float64) models.DestinationStat {
	stat := models.DestinationStat{CountryID: countryID, Searches: searches, AvgBudget: avgBudget}
	if c, ok := models.CountryByID(countryID); ok {
		stat.Country = c.Name
	}
	return stat
}

func (c *Client) exec(ctx context.Context, queryType, query string, args ...any) error {
	start := time.Now()
	err := c.conn.Exec(ctx, query, args...)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CHQueryDuration.WithLabelValues(queryType, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("ch insert %s: %w", queryType, err)
	}
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	for _, ddl := range tableDDL {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	c.logger.Info("clickhouse tables ensured")
	return nil
}

var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS search_events (
		event_type String,
		chat_id String,
		request_id String,
		spec_hash String,
		country_id Int32,
		nights Int32,
		budget_max Int64,
		meal LowCardinality(String),
		backend LowCardinality(String),
		source LowCardinality(String),
		duration_ms Float64,
		results Int32,
		poll_count Int32,
		timed_out Bool,
		failed Bool,
		timestamp DateTime,
		trace_id String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, country_id)`,

	`CREATE TABLE IF NOT EXISTS inventory_changelog (
		tour_id String,
		country_id Int32,
		operation LowCardinality(String),
		timestamp DateTime,
		version Int64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, tour_id)`,

	`CREATE TABLE IF NOT EXISTS leads (
		id String,
		timestamp DateTime,
		chat_id String,
		user_id String,
		username String,
		name String,
		phone String,
		request_id String,
		hotel_id Int64,
		hotel_name String,
		price Int64,
		currency LowCardinality(String),
		country_id Int32,
		spec String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, chat_id)`,
}
