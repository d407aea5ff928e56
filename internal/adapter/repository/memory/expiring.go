package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// store is a TTL map shared by the cache, idempotency and blocklist types.
type store struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func newStore() *store {
	return &store{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

func (s *store) getLocked(key string) ([]byte, bool) {
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.items, key)
		return nil, false
	}
	return e.value, true
}

func (s *store) setLocked(key string, value []byte, ttl time.Duration) {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = e
}

// Cache implements usecase.Cache in memory. Missing keys return (nil, nil).
type Cache struct {
	s *store
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{s: newStore()}
}

// Get retrieves a value by key.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	v, _ := c.s.getLocked(key)
	return v, nil
}

// Set stores a value with TTL.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.setLocked(key, value, ttl)
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.items, key)
	return nil
}

// IdempotencyStore implements usecase.IdempotencyStore in memory.
type IdempotencyStore struct {
	s *store
}

// NewIdempotencyStore creates an empty IdempotencyStore.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{s: newStore()}
}

var processing = []byte("processing")

// CheckAndSet atomically checks if key exists, sets if not.
func (i *IdempotencyStore) CheckAndSet(_ context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	if existing, ok := i.s.getLocked(key); ok {
		return true, existing, nil
	}

	if response == nil {
		response = processing
	}
	i.s.setLocked(key, response, ttl)

	return false, nil, nil
}

// Update updates an existing key with the final response.
func (i *IdempotencyStore) Update(_ context.Context, key string, response []byte, ttl time.Duration) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	i.s.setLocked(key, response, ttl)
	return nil
}

// Release removes key.
func (i *IdempotencyStore) Release(_ context.Context, key string) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	delete(i.s.items, key)
	return nil
}

// TokenBlocklist implements usecase.TokenBlocklist in memory.
type TokenBlocklist struct {
	s *store
}

// NewTokenBlocklist creates an empty TokenBlocklist.
func NewTokenBlocklist() *TokenBlocklist {
	return &TokenBlocklist{s: newStore()}
}

// Revoke marks tokenID revoked for ttl.
func (b *TokenBlocklist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.s.setLocked(tokenID, []byte{1}, ttl)
	return nil
}

// IsRevoked reports whether tokenID is revoked.
func (b *TokenBlocklist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	_, ok := b.s.getLocked(tokenID)
	return ok, nil
}
