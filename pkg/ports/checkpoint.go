package ports

import (
	"context"
	"errors"

	"github.com/aretw0/turnstile/pkg/domain"
)

// CheckpointStore defines the interface for persisting conversation threads.
// This allows for durable execution, enabling "Stop & Resume" conversations.
//
// Implementations must be safe for concurrent use on disjoint thread IDs.
type CheckpointStore interface {
	// Save persists the full thread for a given thread ID, replacing any previous copy.
	Save(ctx context.Context, threadID string, thread domain.Thread) error

	// Load retrieves the thread for a given thread ID.
	// Returns domain.ErrThreadNotFound if the thread does not exist.
	Load(ctx context.Context, threadID string) (domain.Thread, error)
}

// Lister is implemented by stores that can enumerate their threads.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Deleter is implemented by stores that support removing a checkpoint.
// Retention is an administrative concern; the orchestrator never deletes.
type Deleter interface {
	Delete(ctx context.Context, threadID string) error
}

// ErrNotSupported is returned when a store lacks an optional capability.
var ErrNotSupported = errors.New("operation not supported by store")
