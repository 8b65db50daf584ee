package entitylock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix           = "fsm:lock:"
	defaultRetryInterval    = 50 * time.Millisecond
	defaultMaxRetryInterval = time.Second
)

var errLockHeld = errors.New("entity lock held")

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes invocations across processes sharing a Redis server.
// Locks are SET NX PX keys holding a random token.
type RedisLocker struct {
	client           redis.UniversalClient
	prefix           string
	retryInterval    time.Duration
	maxRetryInterval time.Duration
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithPrefix sets the key prefix. Defaults to "fsm:lock:".
func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// WithRetryInterval sets the first wait of a blocked Lock. Later waits grow
// exponentially with jitter. Defaults to 50ms.
func WithRetryInterval(interval time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if interval > 0 {
			l.retryInterval = interval
		}
	}
}

// WithMaxRetryInterval caps the wait between attempts. Defaults to 1s.
func WithMaxRetryInterval(interval time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if interval > 0 {
			l.maxRetryInterval = interval
		}
	}
}

// NewRedisLocker creates a locker on top of client.
func NewRedisLocker(client redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:           client,
		prefix:           defaultPrefix,
		retryInterval:    defaultRetryInterval,
		maxRetryInterval: defaultMaxRetryInterval,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Key returns the Redis key guarding key.
func (l *RedisLocker) Key(key string) string {
	return l.prefix + key
}

// Lock retries SET NX with exponential backoff until the key is acquired or
// ctx is done. Redis errors end the wait immediately.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (statemachine.UnlockFunc, error) {
	if ttl <= 0 {
		ttl = statemachine.DefaultLockTTL
	}

	lockKey := l.Key(key)
	token := uuid.NewString()

	acquire := func() (bool, error) {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return false, backoff.Permanent(ctx.Err())
			}

			return false, backoff.Permanent(
				logger.AnnotateError(fmt.Errorf("acquiring entity lock: %w", err), "lock_key", lockKey))
		}

		if !ok {
			return false, errLockHeld
		}

		return true, nil
	}

	_, err := backoff.Retry(ctx, acquire,
		backoff.WithBackOff(l.backOff()),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, err
	}

	return l.unlocker(lockKey, token), nil
}

func (l *RedisLocker) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.retryInterval
	b.MaxInterval = max(l.maxRetryInterval, l.retryInterval)

	return b
}

func (l *RedisLocker) unlocker(lockKey, token string) statemachine.UnlockFunc {
	return func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Int()
		if err != nil {
			return logger.AnnotateError(fmt.Errorf("releasing entity lock: %w", err), "lock_key", lockKey)
		}

		if deleted == 0 {
			return logger.AnnotateError(ErrLockLost, "lock_key", lockKey)
		}

		return nil
	}
}
