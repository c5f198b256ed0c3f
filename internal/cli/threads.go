package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// Admin operations work on the store directly: no generator is needed.

// ListThreads prints the stored thread ids.
func ListThreads(ctx context.Context, opts Options, out io.Writer) error {
	return withStore(opts, func(store ports.CheckpointStore) error {
		lister, ok := store.(ports.Lister)
		if !ok {
			return fmt.Errorf("listing threads: %w", ports.ErrNotSupported)
		}
		ids, err := lister.List(ctx)
		if err != nil {
			return fmt.Errorf("error listing threads: %w", err)
		}

		if len(ids) == 0 {
			fmt.Fprintln(out, "No threads found.")
			return nil
		}
		fmt.Fprintln(out, "Threads:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	})
}

// InspectThread prints a thread as indented JSON.
func InspectThread(ctx context.Context, opts Options, threadID string, out io.Writer) error {
	return withStore(opts, func(store ports.CheckpointStore) error {
		thread, err := store.Load(ctx, threadID)
		if err != nil {
			return fmt.Errorf("error loading thread '%s': %w", threadID, err)
		}
		data, err := json.MarshalIndent(thread, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling thread: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	})
}

// RemoveThreads deletes every given thread and reports each result.
func RemoveThreads(ctx context.Context, opts Options, threadIDs []string, out io.Writer) error {
	return withStore(opts, func(store ports.CheckpointStore) error {
		deleter, ok := store.(ports.Deleter)
		if !ok {
			return fmt.Errorf("removing threads: %w", ports.ErrNotSupported)
		}

		var errs []error
		for _, id := range threadIDs {
			if err := deleter.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrThreadNotFound) {
				fmt.Fprintf(out, "Error removing '%s': %v\n", id, err)
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(out, "Removed thread '%s'\n", id)
		}
		return errors.Join(errs...)
	})
}

func withStore(opts Options, fn func(ports.CheckpointStore) error) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	backend, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(backend.Store)
}
