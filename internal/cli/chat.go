package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/presentation/tui"
	"github.com/aretw0/turnstile/pkg/ports"
)

// ChatOptions configures the interactive chat.
type ChatOptions struct {
	Options
	// ThreadID resumes a thread; empty starts a new one.
	ThreadID string
	Headless bool
	// Fresh deletes the thread before starting.
	Fresh bool
}

// RunChat runs the interactive loop on in/out.
func RunChat(opts ChatOptions, in io.Reader, out io.Writer) error {
	cfg, err := LoadConfig(opts.Options)
	if err != nil {
		return err
	}
	logger := NewLogger(opts.Debug)

	backend, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return err
	}

	engine, err := NewEngine(cfg, backend, gen, logger, opts.Debug)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	return chat(sigCtx, engine, opts, in, out)
}

func chat(ctx context.Context, engine *turnstile.Engine, opts ChatOptions, in io.Reader, out io.Writer) error {
	threadID := opts.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	if opts.Fresh {
		if err := engine.Delete(ctx, threadID); err != nil && !errors.Is(err, ports.ErrNotSupported) {
			return fmt.Errorf("failed to reset thread: %w", err)
		}
	}

	thread, err := engine.Thread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to load thread: %w", err)
	}

	r := turnstile.NewRunner()
	r.Input = in
	r.Output = out
	r.Headless = opts.Headless
	r.Banner = func(w io.Writer) {
		tui.PrintBanner(w, threadID, thread.Len())
	}
	if !opts.Headless && isTerminal(out) {
		r.Renderer = tui.NewRenderer()
	}

	runErr := handleExecutionError(r.Run(ctx, engine, threadID))
	if !opts.Headless && runErr == nil {
		printSystemMessage(out, "Resume with: turnstile chat --thread %s", threadID)
	}
	return runErr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
