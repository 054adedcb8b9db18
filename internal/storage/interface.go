package storage

import (
	"context"
	"time"
)

// RateCache is an expiring store of rate tables keyed by base currency.
// Implementations must be safe for concurrent use; a single cache is meant to
// be shared by every Converter that should see the same rates.
type RateCache interface {
	// Get returns the entry for base only while it is valid. A missing or
	// stale entry yields (nil, nil); stale entries are removed.
	Get(ctx context.Context, base string) (*RateEntry, error)
	// Put overwrites whatever is stored for entry.Base.
	Put(ctx context.Context, entry *RateEntry) error
	Close() error
}

// Unlocker releases a lock obtained from a Locker.
type Unlocker func(ctx context.Context) error

// Locker serializes fetches for a base currency across processes.
type Locker interface {
	Lock(ctx context.Context, base string) (Unlocker, error)
}

// LockProvider is implemented by caches that are shared between processes
// and can hand out a matching Locker.
type LockProvider interface {
	Locker() Locker
}

type CacheOptions struct {
	DefaultTTL time.Duration `json:"defaultTTL"`
	KeyPrefix  string        `json:"keyPrefix"`
}

func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		DefaultTTL: DefaultTTL,
		KeyPrefix:  ratesKeyPrefix,
	}
}
