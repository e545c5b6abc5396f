package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

const snapshotKey = "market:directory:snapshot"

// RedisStore handles Redis operations for rate limiting and the shared
// directory snapshot.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveSnapshot stores the directory snapshot. ttl should be the poll
// interval so readers never see a picture older than one interval.
func (s *RedisStore) SaveSnapshot(ctx context.Context, snap *models.DirectorySnapshot, ttl time.Duration) error {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.client.Set(ctx, snapshotKey, data, ttl).Err()
}

// LoadSnapshot returns the stored snapshot, or nil when none is live.
func (s *RedisStore) LoadSnapshot(ctx context.Context) (*models.DirectorySnapshot, error) {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	data, err := s.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snap models.DirectorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
