package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when another holder owns the key.
var ErrNotObtained = errors.New("lock not obtained")

// Locker hands out per-key distributed locks backed by Redis.
type Locker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
}

func NewLocker(rdb *redis.Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{
		client: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
	}
}

// Lock is a held key. Release it when done.
type Lock struct {
	lock *redislock.Lock
}

// Obtain takes the lock for key without waiting.
func (l *Locker) Obtain(ctx context.Context, key string) (*Lock, error) {
	lk, err := l.client.Obtain(ctx, fmt.Sprintf("%s:%s", l.prefix, key), l.ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, ErrNotObtained
	} else if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return &Lock{lock: lk}, nil
}

// Release frees the lock. Releasing an expired lock is not an error.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	err := l.lock.Release(ctx)
	if err == redislock.ErrLockNotHeld {
		return nil
	}
	return err
}
