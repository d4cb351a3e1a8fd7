package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/api"
	"github.com/shubhsaxena/tour-concierge/internal/cache"
	"github.com/shubhsaxena/tour-concierge/internal/clickhouse"
	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/elasticsearch"
	"github.com/shubhsaxena/tour-concierge/internal/firestore"
	"github.com/shubhsaxena/tour-concierge/internal/indexing"
	"github.com/shubhsaxena/tour-concierge/internal/intent"
	"github.com/shubhsaxena/tour-concierge/internal/kafka"
	"github.com/shubhsaxena/tour-concierge/internal/leads"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
	"github.com/shubhsaxena/tour-concierge/internal/orchestrator"
	"github.com/shubhsaxena/tour-concierge/internal/provider"
	"github.com/shubhsaxena/tour-concierge/internal/resilience"
	"github.com/shubhsaxena/tour-concierge/internal/search"
	"github.com/shubhsaxena/tour-concierge/internal/session"
	"github.com/shubhsaxena/tour-concierge/internal/synthetic"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting tour concierge",
		zap.String("service", cfg.Observability.ServiceName),
		zap.String("search_backend", cfg.Search.Backend),
	)

	tp := observability.InitTracing(cfg.Observability.ServiceName, cfg.Observability.TraceSampleRatio)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := api.NewHealthHandler(logger)
	healthHandler.SetInfo("search_backend", cfg.Search.Backend)

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("initializing redis: %w", err)
		}
		defer redisCache.Close()
		healthHandler.Register("redis", redisCache)
		logger.Info("redis cache initialized")
	}

	var esClient *elasticsearch.Client
	if cfg.Elasticsearch.Enabled {
		esClient, err = elasticsearch.NewClient(cfg.Elasticsearch, cfg.Search, logger)
		if err != nil {
			return fmt.Errorf("initializing elasticsearch: %w", err)
		}
		defer esClient.Close()
		healthHandler.RegisterStatus("elasticsearch", esClient)
		logger.Info("elasticsearch client initialized")
	}

	var chClient *clickhouse.Client
	if cfg.ClickHouse.Enabled {
		chClient, err = clickhouse.NewClient(cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("clickhouse initialization failed, analytics will be unavailable", zap.Error(err))
			chClient = nil
		} else {
			defer chClient.Close()
			if err := chClient.EnsureTables(ctx); err != nil {
				logger.Warn("clickhouse table creation failed", zap.Error(err))
			}
			healthHandler.Register("clickhouse", chClient)
			logger.Info("clickhouse client initialized")
		}
	}

	var fsClient *firestore.Client
	if cfg.Firestore.Enabled {
		fsClient, err = firestore.NewClient(ctx, cfg.Firestore, logger)
		if err != nil {
			logger.Warn("firestore initialization failed, hydration will be unavailable", zap.Error(err))
			fsClient = nil
		} else {
			defer fsClient.Close()
			healthHandler.Register("firestore", fsClient)
			if cfg.Firestore.ListenChanges {
				go func() {
					if err := fsClient.ListenChanges(ctx); err != nil && ctx.Err() == nil {
						logger.Error("hotel change listener stopped", zap.Error(err))
					}
				}()
			}
			logger.Info("firestore client initialized")
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		healthHandler.Register("kafka_producer", producer)
	}

	// Catalog indexing pipeline: Kafka inventory events, or direct API
	// batches when Kafka is off.
	var inventory api.InventoryPublisher
	if esClient != nil {
		var archiver indexing.EventArchiver
		if chClient != nil {
			archiver = chClient
		}
		var invalidator indexing.CacheInvalidator
		if redisCache != nil {
			invalidator = redisCache
		}
		streamProcessor := indexing.NewStreamProcessor(esClient, archiver, invalidator, cfg.Elasticsearch, logger)
		defer streamProcessor.Stop()
		inventory = streamProcessor

		if cfg.Kafka.Enabled {
			consumer := kafka.NewConsumer(cfg.Kafka, streamProcessor.HandleEvent, logger)
			if err := consumer.Start(ctx); err != nil {
				logger.Warn("kafka consumer start failed, indexing pipeline will be unavailable", zap.Error(err))
			} else {
				defer consumer.Stop()
				healthHandler.Register("kafka_consumer", consumer)
			}
			inventory = producer
		}
	}

	var analyticsWriter observability.AnalyticsWriter
	if chClient != nil {
		analyticsWriter = chClient
	}

	executor := newExecutor(cfg, esClient, redisCache, fsClient, analyticsWriter, logger)

	classifierOpts := []intent.Option{}
	if cfg.Classifier.Enabled {
		model := intent.NewChatModel(cfg.Classifier, nil)
		cb := resilience.NewCircuitBreaker("classifier", cfg.Search.CircuitBreaker, logger)
		classifierOpts = append(classifierOpts, intent.WithModel(model, cb))
		logger.Info("external classifier enabled", zap.String("model", cfg.Classifier.Model))
	}
	classifier := intent.NewClassifier(cfg.Classifier, cfg.Dialog, logger, classifierOpts...)

	var (
		store   session.Store
		deduper session.Deduper
	)
	if cfg.Dialog.SessionStore == "redis" {
		store = cache.NewConversationStore(redisCache)
		deduper = cache.NewDeduper(redisCache)
	} else {
		memStore := session.NewMemoryStore(cfg.Dialog.SessionIdleTTL, logger)
		go memStore.Run(ctx, time.Minute)
		store = memStore
		deduper = session.NewMemoryDeduper()
	}

	limiter := session.NewChatLimiter(cfg.Dialog.ChatRateLimit, cfg.Dialog.ChatRateBurst, cfg.Dialog.SessionIdleTTL)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune()
			}
		}
	}()

	leadSink, err := newLeadSink(cfg, producer, chClient, logger)
	if err != nil {
		return err
	}

	outbox := api.NewOutbox()
	orchOpts := []orchestrator.Option{orchestrator.WithLimiter(limiter)}
	if analyticsWriter != nil {
		orchOpts = append(orchOpts, orchestrator.WithAnalytics(analyticsWriter))
	}
	orch := orchestrator.New(
		store, classifier, executor, deduper, leadSink, outbox,
		cfg.Dialog, cfg.Search, logger, orchOpts...,
	)
	defer orch.Close()

	handlerOpts := []api.HandlerOption{}
	if chClient != nil {
		handlerOpts = append(handlerOpts, api.WithStats(chClient))
	}
	if inventory != nil {
		handlerOpts = append(handlerOpts, api.WithInventory(inventory))
	}
	handler := api.NewHandler(orch, outbox, logger, handlerOpts...)
	router := api.NewRouter(handler, healthHandler, cfg.Server.RateLimitRPS, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// In-flight chat requests finish their searches before this returns.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// newExecutor picks the configured backend. Config validation guarantees an
// Elasticsearch client for the catalog backend.
func newExecutor(
	cfg *config.Config,
	esClient *elasticsearch.Client,
	redisCache *cache.RedisCache,
	fsClient *firestore.Client,
	aw observability.AnalyticsWriter,
	logger *zap.Logger,
) *search.Executor {
	var backend search.Backend
	switch cfg.Search.Backend {
	case config.BackendProvider:
		backend = provider.NewClient(cfg.Provider, nil, logger)
	case config.BackendCatalog:
		backend = elasticsearch.NewCatalogBackend(esClient, cfg.Elasticsearch.IndexPrefix, logger)
	default:
		backend = synthetic.New(cfg.Synthetic, logger)
	}

	opts := []search.Option{
		search.WithBreaker(resilience.NewCircuitBreaker("search_"+backend.Name(), cfg.Search.CircuitBreaker, logger)),
		search.WithSlowSearchDetector(observability.NewSlowSearchDetector(
			cfg.Search.SlowSearch.WarningThreshold,
			cfg.Search.SlowSearch.CriticalThreshold,
			logger,
			aw,
		)),
	}
	if cfg.Provider.Currency != "" {
		opts = append(opts, search.WithCurrency(cfg.Provider.Currency))
	}
	if redisCache != nil {
		opts = append(opts, search.WithCache(redisCache))
	}
	if fsClient != nil {
		opts = append(opts, search.WithHydrator(fsClient))
	}

	logger.Info("search executor initialized", zap.String("backend", backend.Name()))
	return search.NewExecutor(backend, cfg.Search, logger, opts...)
}

// newLeadSink writes leads to the local file first; Kafka and ClickHouse
// copies are best effort.
func newLeadSink(cfg *config.Config, producer *kafka.Producer, chClient *clickhouse.Client, logger *zap.Logger) (leads.Sink, error) {
	fileSink, err := leads.NewFileSink(cfg.Leads.FilePath)
	if err != nil {
		return nil, fmt.Errorf("initializing lead file: %w", err)
	}
	var secondary []leads.Sink
	if cfg.Leads.PublishKafka && producer != nil {
		secondary = append(secondary, producer)
	}
	if cfg.Leads.ArchiveCH && chClient != nil {
		secondary = append(secondary, chClient)
	}
	if len(secondary) == 0 {
		return fileSink, nil
	}
	return leads.NewMultiSink(logger, fileSink, secondary...), nil
}
