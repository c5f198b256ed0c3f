package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger configures the application logger.
// In debug mode, it writes to Stderr (to separate from Stdout chat UI).
func NewLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(slog.LevelWarn)
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCycleStart: func(ctx context.Context, e *domain.CycleEvent) {
			logger.Debug("Cycle Start", "thread_id", e.ThreadID)
		},
		OnCycleEnd: func(ctx context.Context, e *domain.CycleEvent) {
			if e.Err != nil {
				logger.Debug("Cycle End (Error)", "thread_id", e.ThreadID, "err", e.Err)
			} else {
				logger.Debug("Cycle End", "thread_id", e.ThreadID, "produced", e.Produced)
			}
		},
		OnModeEnter: func(ctx context.Context, e *domain.ModeEvent) {
			logger.Debug("Enter Mode", "thread_id", e.ThreadID, "mode", e.Mode)
		},
		OnModeLeave: func(ctx context.Context, e *domain.ModeEvent) {
			logger.Debug("Leave Mode", "thread_id", e.ThreadID, "mode", e.Mode, "duration", e.Duration, "err", e.Err)
		},
		OnTurnCommitted: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("Turn Committed", "thread_id", e.ThreadID, "role", e.Turn.Role, "mode_switch", domain.IsModeSwitch(e.Turn))
		},
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}

// handleExecutionError maps interruptions to a clean exit.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}
