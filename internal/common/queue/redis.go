package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appErr "botarena/pkg/errors"
)

// RedisConfig holds the configuration for the Redis queue client.
type RedisConfig struct {
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	MaxRetries      int           `yaml:"maxRetries"`
	MinRetryBackoff time.Duration `yaml:"minRetryBackoff"`
	MaxRetryBackoff time.Duration `yaml:"maxRetryBackoff"`
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	PoolSize        int           `yaml:"poolSize"`
	MinIdleConns    int           `yaml:"minIdleConns"`
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
	}
}

// RedisQueue implements Queue over Redis lists and pub/sub.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a Redis queue client with default config.
func NewRedisQueue(addr string) (*RedisQueue, error) {
	config := DefaultRedisConfig()
	config.Addr = addr
	return NewRedisQueueWithConfig(config)
}

// NewRedisQueueWithConfig creates a Redis queue client with custom config.
func NewRedisQueueWithConfig(config *RedisConfig) (*RedisQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}

	options := &redis.Options{
		Addr:            config.Addr,
		Password:        config.Password,
		DB:              config.DB,
		MaxRetries:      config.MaxRetries,
		MinRetryBackoff: config.MinRetryBackoff,
		MaxRetryBackoff: config.MaxRetryBackoff,
		DialTimeout:     config.DialTimeout,
		PoolSize:        config.PoolSize,
		MinIdleConns:    config.MinIdleConns,
		// Blocking pops run longer than any sane read timeout.
		ReadTimeout: -1,
	}

	client := redis.NewClient(options)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, appErr.Wrapf(err, appErr.QueueUnavailable, "failed to ping redis: %v", err)
	}

	return &RedisQueue{client: client}, nil
}

// NewRedisQueueWithClient creates a Redis queue from an existing redis.Client.
func NewRedisQueueWithClient(client *redis.Client) (*RedisQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	return &RedisQueue{client: client}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, queue string, payload []byte) error {
	if err := q.client.LPush(ctx, queue, payload).Err(); err != nil {
		return appErr.Wrapf(err, appErr.QueueUnavailable, "enqueue on %s failed: %v", queue, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, queue).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, appErr.Wrapf(err, appErr.QueueUnavailable, "dequeue from %s failed: %v", queue, err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, false, appErr.Newf(appErr.QueueUnavailable, "unexpected BRPOP reply length %d", len(res))
	}
	return []byte(res[1]), true, nil
}

func (q *RedisQueue) Notify(ctx context.Context, channel string, payload []byte) error {
	if err := q.client.Publish(ctx, channel, payload).Err(); err != nil {
		return appErr.Wrapf(err, appErr.QueueUnavailable, "notify on %s failed: %v", channel, err)
	}
	return nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)
