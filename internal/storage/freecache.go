package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/coocood/freecache"
)

// FreeCache implements the RateCache interface on top of a freecache byte
// cache, keeping the rate tables off the Go heap.
type FreeCache struct {
	cache *freecache.Cache
	opts  *CacheOptions
	now   func() time.Time
}

// FreeCacheOption is a function that configures the freecache backend
type FreeCacheOption func(*FreeCache)

// WithFreeCacheClock replaces the clock used for validity checks.
func WithFreeCacheClock(now func() time.Time) FreeCacheOption {
	return func(fc *FreeCache) {
		fc.now = now
	}
}

// MinFreeCacheSize is the smallest cache NewFreeCache accepts. freecache
// refuses entries larger than 1/1024 of its size, and a full table of ~160
// currencies encodes to about 4KB.
const MinFreeCacheSize = 16 * 1024 * 1024

var ErrFreeCacheTooSmall = fmt.Errorf("freecache size must be at least %d bytes", MinFreeCacheSize)

// NewFreeCache allocates a freecache of size bytes.
// Recommended size: 16MB = 16 * 1024 * 1024
func NewFreeCache(size int, options ...FreeCacheOption) (*FreeCache, error) {
	if size < MinFreeCacheSize {
		return nil, fmt.Errorf("%w: got %d", ErrFreeCacheTooSmall, size)
	}
	fc := &FreeCache{
		cache: freecache.NewCache(size),
		opts:  DefaultCacheOptions(),
		now:   time.Now,
	}
	for _, option := range options {
		option(fc)
	}
	return fc, nil
}

func (fc *FreeCache) key(base string) []byte {
	return []byte(fc.opts.KeyPrefix + NormalizeBase(base))
}

func (fc *FreeCache) Get(_ context.Context, base string) (*RateEntry, error) {
	key := fc.key(base)
	data, err := fc.cache.Get(key)
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var entry RateEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		fc.cache.Del(key)
		return nil, nil
	}
	if !entry.ValidAt(fc.now()) {
		fc.cache.Del(key)
		return nil, nil
	}
	return &entry, nil
}

func (fc *FreeCache) Put(_ context.Context, entry *RateEntry) error {
	if entry == nil || entry.Base == "" {
		return fmt.Errorf("invalid rate entry")
	}
	key := fc.key(entry.Base)

	remaining := entry.ExpiresAt().Sub(fc.now())
	if remaining <= 0 {
		fc.cache.Del(key)
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal rate entry: %w", err)
	}

	// freecache works in whole seconds and treats 0 as "never expire"
	ttlSeconds := int(math.Ceil(remaining.Seconds()))
	if err := fc.cache.Set(key, data, ttlSeconds); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (fc *FreeCache) Close() error {
	fc.cache.Clear()
	return nil
}
