package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errClosed = errors.New("memory store closed")

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-instance development.
// Expired entries are invisible immediately and removed by a background loop.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	closed          bool
}

// NewMemoryStore creates a memory store with a one minute cleanup interval
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithInterval(time.Minute)
}

// NewMemoryStoreWithInterval creates a memory store with a custom cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewMemoryStoreWithInterval(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &MemoryStore{
		entries:         make(map[string]entry),
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// SetClock replaces the time source. Used by tests to simulate expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// lookup returns the live entry for key, dropping it if expired. Caller holds mu.
func (s *MemoryStore) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *MemoryStore) SetWithExpiry(_ context.Context, key, value string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailableMemory()
	}
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, unavailableMemory()
	}
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", unavailableMemory()
	}
	e, ok := s.lookup(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *MemoryStore) Take(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", unavailableMemory()
	}
	e, ok := s.lookup(key)
	if !ok {
		return "", ErrNotFound
	}
	delete(s.entries, key)
	return e.value, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailableMemory()
	}
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailableMemory()
	}
	return nil
}

// Close stops the cleanup loop. Every later call fails with ErrUnavailable.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
		s.mu.Lock()
		s.closed = true
		s.entries = make(map[string]entry)
		s.mu.Unlock()
	})
	return nil
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if _, ok := s.lookup(k); ok {
			n++
		}
	}
	return n
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			cleaned++
		}
	}
	if cleaned > 0 {
		log.WithField("cleaned", cleaned).Debug("Removed expired entries")
	}
}

func unavailableMemory() error {
	return errors.Join(ErrUnavailable, errClosed)
}
