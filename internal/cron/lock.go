package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 55 * time.Minute

// Lock keeps cron cycles exclusive across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock implements Lock with SETNX plus a TTL. Release only deletes the
// key while this instance still owns it.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.client.DelIfValue(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.owner = ""
	return nil
}
