package entitylock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, opts ...RedisOption) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLocker(client, opts...), mr
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	t.Parallel()

	locker, mr := newRedisLocker(t)

	unlock, err := locker.Lock(t.Context(), "doc:1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("fsm:lock:doc:1"))
	assert.Equal(t, 5*time.Second, mr.TTL("fsm:lock:doc:1"))

	require.NoError(t, unlock(t.Context()))
	assert.False(t, mr.Exists("fsm:lock:doc:1"))
}

func TestRedisLocker_Contention(t *testing.T) {
	t.Parallel()

	locker, mr := newRedisLocker(t, WithPrefix("test:"), WithRetryInterval(10*time.Millisecond))

	unlock, err := locker.Lock(t.Context(), "doc:1", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test:doc:1", locker.Key("doc:1"))

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "doc:1", 5*time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(t.Context()))

	second, err := locker.Lock(t.Context(), "doc:1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:doc:1"))
	require.NoError(t, second(t.Context()))
}

func TestRedisLocker_LostLock(t *testing.T) {
	t.Parallel()

	locker, mr := newRedisLocker(t)

	stale, err := locker.Lock(t.Context(), "doc:1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Lock(t.Context(), "doc:1", time.Minute)
	require.NoError(t, err)

	err = stale(t.Context())
	require.ErrorIs(t, err, ErrLockLost)
	assert.Equal(t, "fsm:lock:doc:1", logger.ErrorAttrs(err)[0].Value.String())

	assert.True(t, mr.Exists("fsm:lock:doc:1"))
	require.NoError(t, fresh(t.Context()))
}

func TestRedisLocker_ServerDown(t *testing.T) {
	t.Parallel()

	locker, mr := newRedisLocker(t)
	mr.Close()

	_, err := locker.Lock(t.Context(), "doc:1", time.Second)
	require.Error(t, err)
	assert.NotEmpty(t, logger.ErrorAttrs(err))
}

func TestRedisLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	t.Parallel()

	locker, _ := newRedisLocker(t,
		WithRetryInterval(5*time.Millisecond),
		WithMaxRetryInterval(20*time.Millisecond),
	)

	unlock, err := locker.Lock(t.Context(), "doc:1", 5*time.Second)
	require.NoError(t, err)

	acquired := make(chan error, 1)

	go func() {
		release, lockErr := locker.Lock(t.Context(), "doc:1", 5*time.Second)
		if lockErr == nil {
			lockErr = release(context.Background())
		}

		acquired <- lockErr
	}()

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, unlock(t.Context()))

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestRedisLocker_BackOffBounds(t *testing.T) {
	t.Parallel()

	locker, _ := newRedisLocker(t, WithRetryInterval(2*time.Second), WithMaxRetryInterval(time.Second))

	b := locker.backOff()
	assert.Equal(t, 2*time.Second, b.InitialInterval)
	assert.Equal(t, 2*time.Second, b.MaxInterval)
}
