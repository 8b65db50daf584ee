package statemachine

import (
	"context"
	"time"
)

// UnlockFunc releases a lock acquired through a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker serializes invocations against the same entity key. Implementations
// live in the entitylock package.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The lock expires after
	// ttl if it is never released.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// DefaultLockTTL bounds how long an entity lock may be held when WithLocker
// is given a non-positive ttl.
const DefaultLockTTL = 30 * time.Second
