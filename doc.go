/*
Package turnstile is a resumable, turn-taking dialogue orchestrator.

Every human turn is routed, by a pure function of the persisted history, to one
of two conversational modes: Gathering collects requirements from the human,
and Generating produces the artifact once the model has emitted a structured
mode switch. The switch latches: later turns of the thread are handled by the
Generating mode. The thread is checkpointed once per successful cycle, so a
conversation can be resumed after a restart and a failed cycle leaves nothing
behind.

# Usage

	store := memory.NewStore()
	gen := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"))

	eng, err := turnstile.New(store, gen, turnstile.WithGenerationTimeout(time.Minute))
	if err != nil {
		log.Fatal(err)
	}

	turns, err := eng.Submit(ctx, "thread-1", "I need a prompt that extracts invoices")

# Architecture

  - pkg/domain: turns, threads, modes and the mode-switch signal.
  - pkg/ports: the checkpoint store and generator interfaces.
  - pkg/adapters: stores (memory, file, redis, sqlite), generators (anthropic, openai, gemini), HTTP and MCP surfaces.
  - pkg/session: per-thread serialization.
*/
package turnstile
