package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or has expired
	ErrNotFound = errors.New("store: key not found")

	// ErrUnavailable wraps every failure that is not an absent key
	// (connectivity loss, timeouts, protocol errors)
	ErrUnavailable = errors.New("store: unavailable")

	// ErrInvalidTTL is returned when a write is attempted without a positive expiry
	ErrInvalidTTL = errors.New("store: ttl must be positive")
)

// Store is an expiring key/value store. Every operation is atomic for a single
// key; there are no multi-key transactions.
type Store interface {
	// SetWithExpiry writes value under key, replacing any previous value
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsent writes value only if key does not exist. It reports whether the write happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get returns the value under key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	// Take atomically reads and deletes key. Only one caller can observe a given value.
	Take(ctx context.Context, key string) (string, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping checks the store is reachable
	Ping(ctx context.Context) error
	Close() error
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
