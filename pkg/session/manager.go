package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// Policy decides what happens when a thread is already held.
type Policy string

const (
	// PolicyQueue waits for the current holder (honouring ctx).
	PolicyQueue Policy = "queue"
	// PolicyReject fails fast with domain.ErrThreadBusy.
	PolicyReject Policy = "reject"
)

// ParsePolicy maps a configuration value to a Policy. Empty means queue.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyQueue:
		return PolicyQueue, nil
	case PolicyReject:
		return PolicyReject, nil
	}
	return "", fmt.Errorf("unknown session policy %q", s)
}

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 2 * time.Minute

// ErrNotSupported is returned when the store lacks an optional capability.
var ErrNotSupported = ports.ErrNotSupported

// lockEntry holds the per-thread semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager serializes access to threads, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.CheckpointStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	policy  Policy
	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithPolicy selects queue or reject behaviour for contended threads.
func WithPolicy(p Policy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new Session Manager over the given checkpoint store.
func NewManager(store ports.CheckpointStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		policy:  PolicyQueue,
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST call release(threadID) once done with the entry.
func (m *Manager) acquire(threadID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[threadID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, threadID)
	}
}

// WithLock executes fn while holding the lock for the thread.
func (m *Manager) WithLock(ctx context.Context, threadID string, fn func(context.Context) error) error {
	entry := m.acquire(threadID)
	defer m.release(threadID)

	if err := m.lockLocal(ctx, entry); err != nil {
		return err
	}
	defer func() { <-entry.sem }()

	if m.locker != nil {
		unlock, err := m.lockDistributed(ctx, threadID)
		if err != nil {
			return err
		}
		defer func() {
			// The caller's ctx may already be canceled; the unlock must still go out.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"thread_id", threadID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager) lockLocal(ctx context.Context, entry *lockEntry) error {
	if m.policy == PolicyReject {
		select {
		case entry.sem <- struct{}{}:
			return nil
		default:
			return domain.ErrThreadBusy
		}
	}

	select {
	case entry.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lockDistributed(ctx context.Context, threadID string) (ports.UnlockFunc, error) {
	if m.policy == PolicyReject {
		if tl, ok := m.locker.(ports.TryLocker); ok {
			unlock, held, err := tl.TryLock(ctx, threadID, m.lockTTL)
			if err != nil {
				return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
			}
			if !held {
				return nil, domain.ErrThreadBusy
			}
			return unlock, nil
		}
	}

	unlock, err := m.locker.Lock(ctx, threadID, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	return unlock, nil
}

// Delete removes the thread from the store.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	deleter, ok := m.store.(ports.Deleter)
	if !ok {
		return ErrNotSupported
	}
	return m.WithLock(ctx, threadID, func(ctx context.Context) error {
		return deleter.Delete(ctx, threadID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	lister, ok := m.store.(ports.Lister)
	if !ok {
		return nil, ErrNotSupported
	}
	return lister.List(ctx)
}
