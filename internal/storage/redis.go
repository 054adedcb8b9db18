package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache implements the RateCache interface using Redis. Every process
// pointing at the same Redis database shares the cached rate tables.
type RedisCache struct {
	client *redis.Client
	opts   *CacheOptions
	lg     *zap.Logger
	now    func() time.Time
	locker Locker
}

// RedisOption is a function that configures Redis cache options
type RedisOption func(*RedisCache)

// WithRedisOptions sets cache options
func WithRedisOptions(opts *CacheOptions) RedisOption {
	return func(rc *RedisCache) {
		rc.opts = opts
	}
}

// WithRedisLogger sets the logger used for cache diagnostics
func WithRedisLogger(lg *zap.Logger) RedisOption {
	return func(rc *RedisCache) {
		rc.lg = lg
	}
}

// WithRedisClock replaces the clock used for validity checks.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(rc *RedisCache) {
		rc.now = now
	}
}

// ParseRedisURL turns tcp://[:password@]host:port[/db] into client options.
func ParseRedisURL(addr string) (*redis.Options, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("can't parse url for redis: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in redis url %q", addr)
	}
	var passwd string
	if u.User != nil {
		passwd, _ = u.User.Password()
	}
	db := 0
	if 1 < len(u.Path) {
		db, err = strconv.Atoi(u.Path[1:])
		if err != nil {
			return nil, fmt.Errorf("can't convert string into int for redis db %q: %w", addr, err)
		}
	}
	network := u.Scheme
	if network == "" || network == "redis" {
		network = "tcp"
	}
	return &redis.Options{
		Network:  network,
		Addr:     u.Host,
		Password: passwd,
		DB:       db,
	}, nil
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(addr string, options ...RedisOption) (*RedisCache, error) {
	ropts, err := ParseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(ropts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, options...), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, options ...RedisOption) *RedisCache {
	cache := &RedisCache{
		client: client,
		opts:   DefaultCacheOptions(),
		lg:     zap.NewNop(),
		now:    time.Now,
	}

	// Apply options
	for _, option := range options {
		option(cache)
	}

	cache.locker = NewRedisLocker(client)
	return cache
}

func (rc *RedisCache) key(base string) string {
	return rc.opts.KeyPrefix + NormalizeBase(base)
}

func (rc *RedisCache) Get(ctx context.Context, base string) (*RateEntry, error) {
	key := rc.key(base)
	data, err := rc.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rates from Redis: %w", err)
	}

	var entry RateEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		rc.lg.Warn("dropping undecodable rate entry", zap.String("key", key), zap.Error(err))
		_ = rc.client.Del(ctx, key).Err()
		return nil, nil
	}

	if !entry.ValidAt(rc.now()) {
		if err := rc.client.Del(ctx, key).Err(); err != nil {
			rc.lg.Warn("failed to delete stale rate entry", zap.String("key", key), zap.Error(err))
		}
		return nil, nil
	}
	return &entry, nil
}

func (rc *RedisCache) Put(ctx context.Context, entry *RateEntry) error {
	if entry == nil || entry.Base == "" {
		return fmt.Errorf("invalid rate entry")
	}
	key := rc.key(entry.Base)

	ttl := entry.ExpiresAt().Sub(rc.now())
	if ttl <= 0 {
		// already stale; a zero expiry would keep it forever
		return rc.client.Del(ctx, key).Err()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal rate entry: %w", err)
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

// Locker returns a redsync-backed locker on the same Redis database.
func (rc *RedisCache) Locker() Locker {
	return rc.locker
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
