package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Firestore     FirestoreConfig     `yaml:"firestore"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Search        SearchConfig        `yaml:"search"`
	Provider      ProviderConfig      `yaml:"provider"`
	Synthetic     SyntheticConfig     `yaml:"synthetic"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Dialog        DialogConfig        `yaml:"dialog"`
	Leads         LeadsConfig         `yaml:"leads"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimitRPS    int           `yaml:"rate_limit_rps"`
}

type ElasticsearchConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Addresses         []string      `yaml:"addresses"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	IndexPrefix       string        `yaml:"index_prefix"`
	NumShards         int           `yaml:"num_shards"`
	NumReplicas       int           `yaml:"num_replicas"`
	RefreshInterval   string        `yaml:"refresh_interval"`
	BulkSize          int           `yaml:"bulk_size"`
	BulkFlushInterval time.Duration `yaml:"bulk_flush_interval"`
}

type RedisConfig struct {
	Enabled      bool           `yaml:"enabled"`
	Addresses    []string       `yaml:"addresses"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	PoolSize     int            `yaml:"pool_size"`
	MinIdleConns int            `yaml:"min_idle_conns"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	ReadTimeout  time.Duration  `yaml:"read_timeout"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	TTL          CacheTTLConfig `yaml:"ttl"`
}

type CacheTTLConfig struct {
	SearchResults time.Duration `yaml:"search_results"`
	StaleFallback time.Duration `yaml:"stale_fallback"`
	Conversation  time.Duration `yaml:"conversation"`
}

type ClickHouseConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type FirestoreConfig struct {
	Enabled         bool          `yaml:"enabled"`
	ProjectID       string        `yaml:"project_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	HotelCollection string        `yaml:"hotel_collection"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
	ListenChanges   bool          `yaml:"listen_changes"`
}

type KafkaConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Brokers        []string      `yaml:"brokers"`
	TopicInventory string        `yaml:"topic_inventory"`
	TopicDLQ       string        `yaml:"topic_dlq"`
	TopicLeads     string        `yaml:"topic_leads"`
	ConsumerGroup  string        `yaml:"consumer_group"`
	BatchSize      int           `yaml:"batch_size"`
	BatchTimeout   time.Duration `yaml:"batch_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// Search backends.
const (
	BackendSynthetic = "synthetic"
	BackendProvider  = "provider"
	BackendCatalog   = "catalog"
)

type SearchConfig struct {
	Backend        string               `yaml:"backend"`
	PollInterval   time.Duration        `yaml:"poll_interval"`
	PollTimeout    time.Duration        `yaml:"poll_timeout"`
	PageSize       int                  `yaml:"page_size"`
	MaxResults     int                  `yaml:"max_results"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	SlowSearch     SlowSearchConfig     `yaml:"slow_search"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowSearchConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Currency       string        `yaml:"currency"`
}

type SyntheticConfig struct {
	// Seed of 0 derives the seed from the search parameters.
	Seed         uint64 `yaml:"seed"`
	ResultCount  int    `yaml:"result_count"`
	PendingPolls int    `yaml:"pending_polls"`
	ImageBaseURL string `yaml:"image_base_url"`
	ImageCount   int    `yaml:"image_count"`
}

type ClassifierConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Classifier calls are bounded to this window.
const (
	MinClassifierTimeout = 3500 * time.Millisecond
	MaxClassifierTimeout = 8 * time.Second
)

type DialogConfig struct {
	// DefaultYear of 0 means the current calendar year.
	DefaultYear        int           `yaml:"default_year"`
	WindowDays         int           `yaml:"window_days"`
	DefaultAdults      int           `yaml:"default_adults"`
	DedupeWindow       time.Duration `yaml:"dedupe_window"`
	SessionIdleTTL     time.Duration `yaml:"session_idle_ttl"`
	SessionStore       string        `yaml:"session_store"`
	CollectionMaxTours int           `yaml:"collection_max_tours"`
	ChatRateLimit      float64       `yaml:"chat_rate_limit"`
	ChatRateBurst      int           `yaml:"chat_rate_burst"`
}

type LeadsConfig struct {
	FilePath     string `yaml:"file_path"`
	PublishKafka bool   `yaml:"publish_kafka"`
	ArchiveCH    bool   `yaml:"archive_clickhouse"`
}

type ObservabilityConfig struct {
	MetricsPort      int     `yaml:"metrics_port"`
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
	LogLevel         string  `yaml:"log_level"`
	ServiceName      string  `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    200,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:         []string{"http://localhost:9200"},
			MaxRetries:        3,
			RequestTimeout:    2 * time.Second,
			IndexPrefix:       "tours",
			NumShards:         2,
			NumReplicas:       1,
			RefreshInterval:   "1s",
			BulkSize:          1000,
			BulkFlushInterval: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			TTL: CacheTTLConfig{
				SearchResults: 10 * time.Minute,
				StaleFallback: 6 * time.Hour,
				Conversation:  24 * time.Hour,
			},
		},
		ClickHouse: ClickHouseConfig{
			Addresses:    []string{"localhost:9000"},
			Database:     "tour_analytics",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Firestore: FirestoreConfig{
			HotelCollection: "hotels",
			RequestTimeout:  2 * time.Second,
			MaxBatchSize:    100,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			TopicInventory: "tours.inventory",
			TopicDLQ:       "tours.inventory.dlq",
			TopicLeads:     "tours.leads",
			ConsumerGroup:  "tour-indexer",
			BatchSize:      500,
			BatchTimeout:   1 * time.Second,
			MaxRetries:     3,
		},
		Search: SearchConfig{
			Backend:      BackendSynthetic,
			PollInterval: 1500 * time.Millisecond,
			PollTimeout:  20 * time.Second,
			PageSize:     5,
			MaxResults:   50,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      5,
				Interval:         60 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			Retry: RetryConfig{
				MaxAttempts: 2,
				InitialWait: 500 * time.Millisecond,
				MaxWait:     2 * time.Second,
				Multiplier:  2.0,
			},
			SlowSearch: SlowSearchConfig{
				WarningThreshold:  5 * time.Second,
				CriticalThreshold: 15 * time.Second,
			},
		},
		Provider: ProviderConfig{
			RequestTimeout: 10 * time.Second,
			Currency:       "RUB",
		},
		Synthetic: SyntheticConfig{
			ResultCount:  20,
			PendingPolls: 1,
			ImageBaseURL: "/static/hotels",
			ImageCount:   24,
		},
		Classifier: ClassifierConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 5 * time.Second,
		},
		Dialog: DialogConfig{
			WindowDays:         30,
			DefaultAdults:      2,
			DedupeWindow:       30 * time.Second,
			SessionIdleTTL:     24 * time.Hour,
			SessionStore:       "memory",
			CollectionMaxTours: 10,
			ChatRateLimit:      2,
			ChatRateBurst:      5,
		},
		Leads: LeadsConfig{
			FilePath: "data/leads.jsonl",
		},
		Observability: ObservabilityConfig{
			MetricsPort:      9090,
			TraceSampleRatio: 1.0,
			LogLevel:         "info",
			ServiceName:      "tour-concierge",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Search.Backend {
	case BackendSynthetic:
	case BackendProvider:
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("provider backend requires provider.base_url")
		}
	case BackendCatalog:
		if !c.Elasticsearch.Enabled || len(c.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("catalog backend requires an enabled elasticsearch with at least one address")
		}
	default:
		return fmt.Errorf("unknown search backend %q", c.Search.Backend)
	}
	if c.Redis.Enabled && len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker required")
	}
	if c.Firestore.Enabled && c.Firestore.ProjectID == "" {
		return fmt.Errorf("firestore requires project_id")
	}
	if c.Search.PageSize <= 0 || c.Search.PageSize > c.Search.MaxResults {
		return fmt.Errorf("page size must be between 1 and max_results (%d)", c.Search.MaxResults)
	}
	if c.Search.PollInterval <= 0 || c.Search.PollTimeout < c.Search.PollInterval {
		return fmt.Errorf("poll interval must be positive and not exceed poll timeout")
	}
	// One submission plus exactly one retry.
	if c.Search.Retry.MaxAttempts != 2 {
		return fmt.Errorf("search retry max_attempts must be 2, got %d", c.Search.Retry.MaxAttempts)
	}
	if c.Classifier.Enabled {
		if c.Classifier.BaseURL == "" || c.Classifier.Model == "" {
			return fmt.Errorf("classifier requires base_url and model")
		}
		if c.Classifier.Timeout < MinClassifierTimeout || c.Classifier.Timeout > MaxClassifierTimeout {
			return fmt.Errorf("classifier timeout must be between %s and %s", MinClassifierTimeout, MaxClassifierTimeout)
		}
	}
	if c.Dialog.WindowDays <= 0 {
		return fmt.Errorf("dialog window days must be positive")
	}
	if c.Dialog.DefaultAdults < 1 {
		return fmt.Errorf("dialog default adults must be at least 1")
	}
	if c.Dialog.SessionStore != "memory" && c.Dialog.SessionStore != "redis" {
		return fmt.Errorf("unknown session store %q", c.Dialog.SessionStore)
	}
	if c.Dialog.SessionStore == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis session store requires redis.enabled")
	}
	return nil
}
