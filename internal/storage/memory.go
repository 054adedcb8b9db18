package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCache implements the RateCache interface using in-memory storage
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*RateEntry
	now     func() time.Time
}

// MemoryOption is a function that configures the memory cache
type MemoryOption func(*MemoryCache)

// WithMemoryClock replaces the clock used for validity checks.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(mc *MemoryCache) {
		mc.now = now
	}
}

// NewMemoryCache creates a new in-memory cache instance
func NewMemoryCache(options ...MemoryOption) *MemoryCache {
	cache := &MemoryCache{
		entries: make(map[string]*RateEntry),
		now:     time.Now,
	}
	for _, option := range options {
		option(cache)
	}
	return cache
}

func (mc *MemoryCache) Get(_ context.Context, base string) (*RateEntry, error) {
	key := NormalizeBase(base)

	mc.mu.RLock()
	entry, found := mc.entries[key]
	mc.mu.RUnlock()

	if !found {
		return nil, nil
	}
	if entry.ValidAt(mc.now()) {
		return entry, nil
	}

	mc.mu.Lock()
	// a concurrent Put may have replaced it while we were unlocked
	if cur, ok := mc.entries[key]; ok && cur == entry {
		delete(mc.entries, key)
	}
	mc.mu.Unlock()
	return nil, nil
}

func (mc *MemoryCache) Put(_ context.Context, entry *RateEntry) error {
	if entry == nil || entry.Base == "" {
		return fmt.Errorf("invalid rate entry")
	}
	mc.mu.Lock()
	mc.entries[NormalizeBase(entry.Base)] = entry
	mc.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, stale ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	mc.entries = make(map[string]*RateEntry)
	mc.mu.Unlock()
	return nil
}
