package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/observability"
)

type RedisCache struct {
	client redis.UniversalClient
	ttl    config.CacheTTLConfig
	logger *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}

	var client redis.UniversalClient
	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))
	return NewRedisCacheWithClient(client, cfg.TTL, logger), nil
}

func NewRedisCacheWithClient(client redis.UniversalClient, ttl config.CacheTTLConfig, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (rc *RedisCache) Get(ctx context.Context, spec models.SearchSpec) (*models.SearchOutcome, error) {
	return rc.getOutcome(ctx, searchKey(spec), "search")
}

func (rc *RedisCache) GetStale(ctx context.Context, spec models.SearchSpec) (*models.SearchOutcome, error) {
	return rc.getOutcome(ctx, staleKey(spec), "stale")
}

// Set stores outcome under both the fresh key and the longer-lived stale
// key used when the backend is down.
func (rc *RedisCache) Set(ctx context.Context, spec models.SearchSpec, outcome models.SearchOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	pipe := rc.client.Pipeline()
	pipe.Set(ctx, searchKey(spec), data, rc.ttl.SearchResults)
	pipe.Set(ctx, staleKey(spec), data, rc.ttl.StaleFallback)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (rc *RedisCache) InvalidatePattern(ctx context.Context, patterns []string) error {
	for _, pattern := range patterns {
		iter := rc.client.Scan(ctx, 0, pattern, 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			rc.logger.Warn("cache scan error", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				rc.logger.Warn("cache delete error", zap.Strings("keys", keys), zap.Error(err))
			}
		}
	}
	return nil
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) getOutcome(ctx context.Context, key, kind string) (*models.SearchOutcome, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.CacheMisses.WithLabelValues(kind).Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	observability.CacheHits.WithLabelValues(kind).Inc()
	var out models.SearchOutcome
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, fmt.Errorf("cache unmarshal: %w", err)
	}
	return &out, nil
}

// SearchPattern matches every fresh result page of one destination.
func SearchPattern(countryID int) string {
	return fmt.Sprintf("sr:%d:*", countryID)
}

func searchKey(spec models.SearchSpec) string {
	return fmt.Sprintf("sr:%d:%s", spec.Country.ID, hashString(spec.CacheKey()))
}

func staleKey(spec models.SearchSpec) string {
	return fmt.Sprintf("srs:%d:%s", spec.Country.ID, hashString(spec.CacheKey()))
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
