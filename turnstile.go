package turnstile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/internal/runtime"
	loamAdapter "github.com/aretw0/turnstile/pkg/adapters/loam"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/session"
)

// Version is the release of the library and the CLI. Overridden at build time with -ldflags.
var Version = "0.1.0"

// Engine is the high-level entry point for the Turnstile library.
// It wraps the internal runtime with per-thread serialization and provides a
// simplified API for consumers.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager

	gathering      string
	generating     string
	instructionDir string
	timeout        time.Duration
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	sessionOpts    []session.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls are merged.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithInstructions sets the instruction texts. Empty values keep the defaults
// (or the documents loaded by WithInstructionDir).
func WithInstructions(gathering, generating string) Option {
	return func(e *Engine) {
		if gathering != "" {
			e.gathering = gathering
		}
		if generating != "" {
			e.generating = generating
		}
	}
}

// WithInstructionDir loads instructions from a Loam repository (gathering.md, generating.md).
// Texts given with WithInstructions take precedence.
func WithInstructionDir(dir string) Option {
	return func(e *Engine) {
		e.instructionDir = dir
	}
}

// WithGenerationTimeout bounds every generator call.
func WithGenerationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithSessionPolicy selects what happens when a thread is already busy.
func WithSessionPolicy(p session.Policy) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithPolicy(p))
	}
}

// WithLocker serializes threads across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithLocker(locker), session.WithLockTTL(ttl))
	}
}

// New initializes a new Turnstile Engine over a checkpoint store and a text generator.
func New(store ports.CheckpointStore, gen ports.Generator, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}

	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	gathering, generating, err := eng.resolveInstructions()
	if err != nil {
		return nil, err
	}

	generatingHandler, err := runtime.NewGeneratingHandler(gen, generating)
	if err != nil {
		return nil, fmt.Errorf("invalid generating instruction: %w", err)
	}

	eng.runtime = runtime.NewEngine(store,
		runtime.NewGatheringHandler(gen, gathering),
		generatingHandler,
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithGenerationTimeout(eng.timeout),
	)
	eng.sessions = session.NewManager(store, append(eng.sessionOpts, session.WithLogger(eng.logger))...)
	return eng, nil
}

func (e *Engine) resolveInstructions() (string, string, error) {
	gathering := runtime.DefaultGatheringInstruction
	generating := runtime.DefaultGeneratingInstruction

	if e.instructionDir != "" {
		loader, err := loamAdapter.Open(e.instructionDir)
		if err != nil {
			return "", "", err
		}
		docs, err := loader.Load(context.Background())
		if err != nil {
			return "", "", fmt.Errorf("failed to load instructions: %w", err)
		}
		if docs.Gathering != "" {
			gathering = docs.Gathering
		}
		if docs.Generating != "" {
			generating = docs.Generating
		}
	}

	if e.gathering != "" {
		gathering = e.gathering
	}
	if e.generating != "" {
		generating = e.generating
	}
	return gathering, generating, nil
}

// Submit appends the human text to the thread, runs the conversation cycle and
// returns the assistant turns it produced. The thread is checkpointed only when
// the whole cycle succeeds.
func (e *Engine) Submit(ctx context.Context, threadID, text string) ([]domain.Turn, error) {
	var produced []domain.Turn
	err := e.sessions.WithLock(ctx, threadID, func(ctx context.Context) error {
		var err error
		produced, err = e.runtime.Submit(ctx, threadID, text)
		return err
	})
	return produced, err
}

// Thread returns the persisted history. Unseen ids yield an empty thread.
func (e *Engine) Thread(ctx context.Context, threadID string) (domain.Thread, error) {
	var thread domain.Thread
	err := e.sessions.WithLock(ctx, threadID, func(ctx context.Context) error {
		var err error
		thread, err = e.runtime.Load(ctx, threadID)
		return err
	})
	return thread, err
}

// NextMode reports the mode that will handle the next human input:
// Generating once the thread has latched, Gathering before.
func (e *Engine) NextMode(ctx context.Context, threadID string) (domain.Mode, error) {
	thread, err := e.Thread(ctx, threadID)
	if err != nil {
		return "", err
	}
	if runtime.Latched(thread) {
		return domain.ModeGenerating, nil
	}
	return domain.ModeGathering, nil
}

// Threads lists the stored thread ids. It returns ports.ErrNotSupported when the store cannot list.
func (e *Engine) Threads(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Delete removes a thread. It returns ports.ErrNotSupported when the store cannot delete.
func (e *Engine) Delete(ctx context.Context, threadID string) error {
	return e.sessions.Delete(ctx, threadID)
}
