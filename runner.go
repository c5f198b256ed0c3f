package turnstile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/turnstile/internal/runtime"
	"github.com/aretw0/turnstile/pkg/domain"
)

// Runner handles the interactive loop of the Turnstile engine using provided IO.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
	// Banner replaces the default header when set.
	Banner func(w io.Writer)
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a new Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run reads one line per human turn, submits it and prints the assistant
// turns until the input ends or the human types exit/quit.
//
// Generation failures and busy threads are reported and the loop goes on:
// the thread is left untouched, so the same text can be sent again.
func (r *Runner) Run(ctx context.Context, engine *Engine, threadID string) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	writer := r.Output

	switch {
	case r.Headless:
	case r.Banner != nil:
		r.Banner(writer)
	default:
		fmt.Fprintf(writer, "--- Turnstile (thread %s) ---\n", threadID)
	}

	done := make(chan struct{})
	defer close(done)
	lines := r.readLines(done)

	for {
		if !r.Headless {
			fmt.Fprint(writer, "> ")
		}

		var line lineResult
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line = <-lines:
		}
		if line.err != nil && !errors.Is(line.err, io.EOF) {
			return fmt.Errorf("input error: %w", line.err)
		}
		eof := line.err != nil

		input := strings.TrimSpace(line.text)
		if input == "exit" || input == "quit" {
			if !r.Headless {
				fmt.Fprintln(writer, "Bye!")
			}
			return nil
		}

		if input != "" {
			if err := r.submit(ctx, engine, threadID, input); err != nil {
				return err
			}
		}

		if eof {
			return nil
		}
	}
}

type lineResult struct {
	text string
	err  error
}

// readLines feeds lines from Input until an error (EOF included) or until done is closed.
// A read that is already blocked finishes on its own.
func (r *Runner) readLines(done <-chan struct{}) <-chan lineResult {
	lines := make(chan lineResult)
	reader := bufio.NewReader(r.Input)
	go func() {
		for {
			text, err := reader.ReadString('\n')
			select {
			case lines <- lineResult{text: text, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

func (r *Runner) submit(ctx context.Context, engine *Engine, threadID, input string) error {
	turns, err := engine.Submit(ctx, threadID, input)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrGenerationFailed), errors.Is(err, domain.ErrThreadBusy),
		errors.Is(err, domain.ErrEmptyInput), errors.Is(err, runtime.ErrInputTooLarge), errors.Is(err, runtime.ErrInvalidUTF8):
		fmt.Fprintf(r.Output, "error: %v (nothing was saved, try again)\n", err)
		return nil
	default:
		return fmt.Errorf("submit failed: %w", err)
	}

	for _, turn := range turns {
		output := Format(turn)
		if r.Renderer != nil {
			if rendered, err := r.Renderer(output); err == nil {
				output = rendered
			}
		}
		fmt.Fprintln(r.Output, strings.TrimSpace(output))
	}
	return nil
}

// Format renders an assistant turn as markdown. A mode-switch turn without
// text is shown as the captured requirements.
func Format(turn domain.Turn) string {
	if turn.Payload == nil || turn.Content != "" {
		return turn.Content
	}

	p := turn.Payload
	var b strings.Builder
	fmt.Fprintf(&b, "**Objective:** %s\n", p.Objective)
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n**%s:**\n", title)
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	section("Variables", p.Variables)
	section("Constraints", p.Constraints)
	section("Requirements", p.Requirements)
	return b.String()
}
