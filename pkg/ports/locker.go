package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It lets the session manager serialize submits on one thread across replicas.
type DistributedLocker interface {
	// Lock attempts to acquire a distributed lock for the given key (a thread ID).
	// It blocks until the lock is acquired or the context is canceled.
	// The lock expires after ttl even if never released.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// TryLocker is implemented by lockers that can attempt a lock without waiting.
// ok is false when another holder owns the key.
type TryLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock UnlockFunc, ok bool, err error)
}
