package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/i474232898/bom-weather/internal/weather"

	log "github.com/sirupsen/logrus"
)

const redisKeyPrefix = "bom-weather:today-temps:"

// RedisStore is a weather.TempStore backed by Redis, so remembered values
// survive restarts and are shared between replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis instance at url.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opt), ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(loc weather.Location) string {
	return redisKeyPrefix + loc.Key()
}

// SaveTodayTemps stores temps as JSON with the configured TTL.
func (s *RedisStore) SaveTodayTemps(ctx context.Context, loc weather.Location, temps weather.TodayTemps) error {
	payload, err := json.Marshal(temps)
	if err != nil {
		return fmt.Errorf("marshal temps: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(loc), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", redisKey(loc), err)
	}
	return nil
}

// GetTodayTemps returns ErrNotFound on a cache miss.
func (s *RedisStore) GetTodayTemps(ctx context.Context, loc weather.Location) (weather.TodayTemps, error) {
	key := redisKey(loc)
	res, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		log.WithFields(log.Fields{"key": key}).Debug("today temps cache miss")
		return weather.TodayTemps{}, ErrNotFound
	} else if err != nil {
		return weather.TodayTemps{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	var temps weather.TodayTemps
	if err := json.Unmarshal([]byte(res), &temps); err != nil {
		return weather.TodayTemps{}, fmt.Errorf("decode temps for %s: %w", key, err)
	}
	return temps, nil
}
