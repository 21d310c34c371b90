package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("job lock not acquired")
)

// Locker guards batch jobs so overlapping triggers for the same job do not
// interleave. The slot inventory itself stays correct without it, this only
// avoids wasted duplicate runs.
type Locker interface {
	WithJobLock(ctx context.Context, job string, fn func(ctx context.Context) error) error
}

type redisJobLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJobLocker creates a locker that uses a per job Redis key.
func NewRedisJobLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisJobLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisJobLocker) WithJobLock(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:job:%s", job)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisJobLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release job lock: %w", err)
	}
	return nil
}
