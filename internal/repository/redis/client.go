package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	scanBatch    = 100
	retryBackoff = 200 * time.Millisecond
)

type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	TLS      bool
	// Retries is the number of extra ping attempts before giving up.
	Retries uint64
}

// Connect opens a client and pings it with exponential backoff. The client is
// closed when every attempt fails.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	clientOpts := &redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLS {
		clientOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(clientOpts)

	backoff := retry.WithMaxRetries(opts.Retries, retry.NewExponential(retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Store implements the session key-value capability on top of redis.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

func NewStore(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger.With("component", "redis")}
}

// Set stores a key-value pair with expiration
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value by key
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrKeyNotFound
	}
	return val, err
}

// GetDel reads and removes a key in one round trip.
func (s *Store) GetDel(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrKeyNotFound
	}
	return val, err
}

// Del deletes keys
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Keys walks the keyspace with SCAN.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	s.logger.Info("closing redis connection")
	return s.client.Close()
}
