// Package codegen allocates the random codes that identify device sessions.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

const (
	// MaxAttempts bounds every allocation and status write
	MaxAttempts = 5

	UserCodeLength   = 12
	DeviceCodeLength = 69
)

// ErrAllocationExhausted is returned once MaxAttempts writes have failed
var ErrAllocationExhausted = errors.New("could not allocate code")

var log = logrus.WithField("component", "codegen")

// Generate returns a random URL-safe code of the given length
func Generate(length int) (string, error) {
	return gonanoid.New(length)
}

// Allocator writes freshly generated codes into a store, retrying on collision
// or store failure up to a fixed bound.
type Allocator struct {
	store       store.Store
	generate    func(length int) (string, error)
	maxAttempts int
}

// NewAllocator creates an allocator backed by s
func NewAllocator(s store.Store) *Allocator {
	return &Allocator{
		store:       s,
		generate:    Generate,
		maxAttempts: MaxAttempts,
	}
}

// WithGenerator replaces the code source. Tests use it to force collisions.
func (a *Allocator) WithGenerator(fn func(length int) (string, error)) *Allocator {
	a.generate = fn
	return a
}

// Allocate generates a code of the given length and stores value under it.
// The write only succeeds if the code is not already in use.
func (a *Allocator) Allocate(ctx context.Context, length int, ttl time.Duration, value string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := a.generate(length)
		if err != nil {
			lastErr = fmt.Errorf("generate code: %w", err)
			continue
		}

		ok, err := a.store.SetIfAbsent(ctx, code, value, ttl)
		switch {
		case err != nil:
			lastErr = err
		case !ok:
			lastErr = errors.New("code collision")
		default:
			return code, nil
		}

		log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": a.maxAttempts,
			"code_length":  length,
			"error":        lastErr.Error(),
		}).Warn("Code allocation attempt failed")
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrAllocationExhausted, a.maxAttempts, lastErr)
}

// Set writes a known key with the same bounded retry policy as Allocate.
func (a *Allocator) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = a.store.SetWithExpiry(ctx, key, value, ttl); lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, store.ErrInvalidTTL) {
			return lastErr
		}
		log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": a.maxAttempts,
			"error":        lastErr.Error(),
		}).Warn("Store write attempt failed")
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrAllocationExhausted, a.maxAttempts, lastErr)
}
