package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out short-lived mutual exclusion keyed by name.
type Locker struct {
	rdb    goredis.Cmdable
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

func NewLocker(rdb goredis.Cmdable, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{rdb: rdb, prefix: prefix, ttl: ttl, wait: ttl, poll: 50 * time.Millisecond}
}

// Lock blocks until name is free (or the wait budget runs out) and returns
// the release function. The key expires by itself after ttl.
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	key := l.prefix + name
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
