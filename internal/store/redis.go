package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to every key, e.g. "device-auth:"
	KeyPrefix string

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s)
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// String returns a string representation with the password masked
func (c RedisConfig) String() string {
	return fmt.Sprintf("RedisConfig{Addr: %s, Password: [REDACTED], DB: %d, KeyPrefix: %s}", c.Addr, c.DB, c.KeyPrefix)
}

// RedisStore implements Store on top of a Redis server
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	log.WithFields(logrus.Fields{
		"redis_addr": cfg.Addr,
		"redis_db":   cfg.DB,
	}).Info("Connecting to redis")

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: failed to connect to redis: %w", ErrUnavailable, err)
	}

	return &RedisStore{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

// NewRedisStoreWithClient wraps a pre-configured client. Tests use it with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(k string) string {
	return s.keyPrefix + k
}

func (s *RedisStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	ok, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, unavailable("setnx", err)
	}
	return ok, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", unavailable("get", err)
	}
	return value, nil
}

func (s *RedisStore) Take(ctx context.Context, key string) (string, error) {
	value, err := s.client.GetDel(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", unavailable("getdel", err)
	}
	return value, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// unavailable wraps a client error. Keys are never included since they may be tokens.
func unavailable(op string, err error) error {
	log.WithError(err).WithField("op", op).Error("Redis operation failed")
	return fmt.Errorf("%w: redis %s: %w", ErrUnavailable, op, err)
}
