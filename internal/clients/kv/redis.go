package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpTimeout bounds every Redis round trip.
const OpTimeout = 5 * time.Second

// RedisOptions configures the Redis connection
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	PingTimeout time.Duration
	Namespace   string // prefixed to every key, e.g. "viterbi:"
}

// RedisStorage stores values as plain Redis strings
type RedisStorage struct {
	client    *redis.Client
	namespace string
}

// NewRedisStorage connects to Redis and checks it answers. The caller owns
// the storage and must Close it.
func NewRedisStorage(ctx context.Context, opts RedisOptions, log *slog.Logger) (*RedisStorage, error) {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = OpTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error("failed to ping redis", "addr", opts.Addr, "err", err)
		return nil, fmt.Errorf("redis unavailable at %s: %w", opts.Addr, err)
	}

	log.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return &RedisStorage{client: client, namespace: opts.Namespace}, nil
}

// GetItem reads the value stored under key
func (s *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetItem stores value under key without expiry
func (s *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	return s.client.Set(ctx, s.namespace+key, value, 0).Err()
}

// Close releases the Redis connection pool.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
