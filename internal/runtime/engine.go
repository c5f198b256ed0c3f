package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// MaxInvocations bounds the handler calls of one cycle:
// Gathering, then Generating when gathering produced a mode switch.
const MaxInvocations = 2

// Engine drives one cycle of the conversation for a thread: it appends the
// human turn, routes, invokes mode handlers until the router yields
// AwaitingInput, and commits the result to the checkpoint store.
//
// Engine holds no per-thread state. Callers must serialize Submit calls that
// target the same thread (see pkg/session).
type Engine struct {
	store    ports.CheckpointStore
	handlers map[domain.Mode]Handler
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	timeout  time.Duration
	now      func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithGenerationTimeout bounds every handler invocation. Zero disables it.
func WithGenerationTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine from a store and the two mode handlers.
func NewEngine(store ports.CheckpointStore, gathering, generating Handler, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		handlers: map[domain.Mode]Handler{
			domain.ModeGathering:  gathering,
			domain.ModeGenerating: generating,
		},
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit runs one full cycle for the human input and returns the assistant
// turns produced, in order.
//
// The thread is saved exactly once, after the router yields AwaitingInput.
// On any error nothing is saved.
func (e *Engine) Submit(ctx context.Context, threadID, input string) (produced []domain.Turn, err error) {
	e.emitCycle(ctx, e.hooks.OnCycleStart, domain.EventCycleStart, threadID, 0, nil)
	defer func() {
		e.emitCycle(ctx, e.hooks.OnCycleEnd, domain.EventCycleEnd, threadID, len(produced), err)
	}()

	text, err := SanitizeInput(input)
	if err != nil {
		return nil, err
	}

	thread, err := e.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	committedLen := thread.Len()
	thread = thread.Append(domain.NewHumanTurn(text))

	for invocations := 0; ; invocations++ {
		mode, err := Route(thread)
		if err != nil {
			return nil, e.invariant(threadID, fmt.Errorf("router failed: %w", err))
		}
		if mode.IsTerminal() {
			break
		}
		if invocations >= MaxInvocations {
			return nil, e.invariant(threadID, fmt.Errorf("cycle exceeded %d handler invocations", MaxInvocations))
		}

		handler, ok := e.handlers[mode]
		if !ok || handler == nil {
			return nil, e.invariant(threadID, fmt.Errorf("no handler for mode %s", mode))
		}

		reply, err := e.invoke(ctx, handler, thread)
		if err != nil {
			if errors.Is(err, domain.ErrInvariantViolation) {
				return nil, e.invariant(threadID, err)
			}
			e.logger.Warn("generation failed", "thread_id", threadID, "mode", mode, "err", err)
			return nil, err
		}
		thread = thread.Append(reply)
		produced = append(produced, reply.Clone())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, threadID, thread); err != nil {
		return nil, fmt.Errorf("failed to save thread %s: %w", threadID, err)
	}

	for _, turn := range thread.Since(committedLen) {
		if e.hooks.OnTurnCommitted != nil {
			e.hooks.OnTurnCommitted(ctx, &domain.TurnEvent{
				EventBase: e.base(domain.EventTurnCommitted, threadID),
				Turn:      turn,
			})
		}
	}

	e.logger.Debug("cycle committed", "thread_id", threadID, "turns", thread.Len(), "produced", len(produced))
	return produced, nil
}

// Load returns the persisted thread, or an empty one for an unseen id.
func (e *Engine) Load(ctx context.Context, threadID string) (domain.Thread, error) {
	thread, err := e.store.Load(ctx, threadID)
	if errors.Is(err, domain.ErrThreadNotFound) {
		return domain.NewThread(threadID), nil
	}
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}
	for i, turn := range thread.Turns {
		if err := turn.Validate(); err != nil {
			return domain.Thread{}, fmt.Errorf("thread %s turn %d: %w", threadID, i, err)
		}
	}
	if thread.ID == "" {
		thread.ID = threadID
	}
	return thread, nil
}

func (e *Engine) invoke(ctx context.Context, h Handler, thread domain.Thread) (domain.Turn, error) {
	mode := h.Mode()
	if e.hooks.OnModeEnter != nil {
		e.hooks.OnModeEnter(ctx, &domain.ModeEvent{
			EventBase: e.base(domain.EventModeEnter, thread.ID),
			Mode:      mode,
		})
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Debug("invoking handler", "thread_id", thread.ID, "mode", mode, "turns", thread.Len())
	start := e.now()
	reply, err := h.Run(callCtx, thread)
	if err == nil {
		// A handler that ignores cancellation must not commit a late reply.
		if ctxErr := callCtx.Err(); ctxErr != nil {
			err = domain.NewGenerationFailed(mode, ctxErr)
		}
	}

	if e.hooks.OnModeLeave != nil {
		e.hooks.OnModeLeave(ctx, &domain.ModeEvent{
			EventBase: e.base(domain.EventModeLeave, thread.ID),
			Mode:      mode,
			Duration:  e.now().Sub(start),
			Err:       err,
		})
	}
	return reply, err
}

func (e *Engine) invariant(threadID string, err error) error {
	if !errors.Is(err, domain.ErrInvariantViolation) {
		err = fmt.Errorf("%w: %w", domain.ErrInvariantViolation, err)
	}
	e.logger.Error("orchestrator invariant violated", "thread_id", threadID, "err", err)
	return err
}

func (e *Engine) emitCycle(ctx context.Context, hook func(context.Context, *domain.CycleEvent), typ domain.EventType, threadID string, produced int, err error) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.CycleEvent{
		EventBase: e.base(typ, threadID),
		Produced:  produced,
		Err:       err,
	})
}

func (e *Engine) base(typ domain.EventType, threadID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: typ, ThreadID: threadID}
}
