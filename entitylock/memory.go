// Package entitylock provides statemachine.Locker implementations that
// serialize transitions on the same entity, in process or across processes.
package entitylock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// ErrLockLost is returned by an unlock function when the lock expired and was
// taken over, or was already released.
var ErrLockLost = errors.New("entity lock no longer held")

var (
	_ statemachine.Locker = (*MemoryLocker)(nil)
	_ statemachine.Locker = (*RedisLocker)(nil)
)

// MemoryLocker serializes invocations within a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]*memoryLock
}

type memoryLock struct {
	expires  time.Time
	released chan struct{}
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]*memoryLock)}
}

// Lock blocks until key is free, its holder's ttl runs out, or ctx is done.
func (m *MemoryLocker) Lock(ctx context.Context, key string, ttl time.Duration) (statemachine.UnlockFunc, error) {
	if ttl <= 0 {
		ttl = statemachine.DefaultLockTTL
	}

	for {
		m.mu.Lock()

		current, ok := m.held[key]
		if !ok || !time.Now().Before(current.expires) {
			if ok {
				close(current.released)
			}

			lock := &memoryLock{
				expires:  time.Now().Add(ttl),
				released: make(chan struct{}),
			}
			m.held[key] = lock
			m.mu.Unlock()

			return m.unlocker(key, lock), nil
		}

		wait := time.Until(current.expires)
		released := current.released
		m.mu.Unlock()

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, ctx.Err()
		case <-released:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (m *MemoryLocker) unlocker(key string, lock *memoryLock) statemachine.UnlockFunc {
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.held[key] != lock {
			return ErrLockLost
		}

		delete(m.held, key)
		close(lock.released)

		return nil
	}
}

// Held reports whether key is currently locked and unexpired.
func (m *MemoryLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.held[key]

	return ok && time.Now().Before(lock.expires)
}
