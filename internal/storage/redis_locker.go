package storage

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidLockKey  = errors.New("invalid lock key")
	ErrLockNotAcquired = errors.New("lock not acquired")
)

type redisLocker struct {
	rs         *redsync.Redsync
	expiry     time.Duration
	retryDelay time.Duration
	tries      int
}

// NewRedisLocker creates a Locker whose keys live next to the cached rates.
// The lock expiry covers a full fetch (10s timeout) with headroom.
func NewRedisLocker(client *redis.Client) Locker {
	pool := goredis.NewPool(client)
	return &redisLocker{
		rs:         redsync.New(pool),
		expiry:     15 * time.Second,
		retryDelay: 50 * time.Millisecond,
		tries:      300,
	}
}

func (l *redisLocker) Lock(ctx context.Context, base string) (Unlocker, error) {
	base = NormalizeBase(base)
	if base == "" {
		return nil, ErrInvalidLockKey
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	mutex := l.rs.NewMutex(lockKeyPrefix+base,
		redsync.WithExpiry(l.expiry),
		redsync.WithRetryDelay(l.retryDelay),
		redsync.WithTries(l.tries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var errTaken *redsync.ErrTaken
		if errors.As(err, &errTaken) || errors.Is(err, redsync.ErrFailed) {
			return nil, ErrLockNotAcquired
		}
		return nil, err
	}

	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("failed to unlock")
		}
		return nil
	}, nil
}
