package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// ErrScriptExhausted is returned when the generator is called more often than scripted.
var ErrScriptExhausted = errors.New("scripted generator exhausted")

// Step is one scripted generator response.
type Step struct {
	Turn domain.Turn
	Err  error
	// Block makes the call wait for ctx to be done and return its error.
	Block bool
}

// Reply scripts a plain assistant reply.
func Reply(content string) Step {
	return Step{Turn: domain.NewAssistantTurn(content)}
}

// Switch scripts a mode-switch reply.
func Switch(payload domain.Payload) Step {
	return Step{Turn: domain.NewModeSwitchTurn("", payload)}
}

// Fail scripts a generator error.
func Fail(err error) Step {
	return Step{Err: err}
}

// Hang scripts a call that only returns when its context is done.
func Hang() Step {
	return Step{Block: true}
}

// ScriptedGenerator is a ports.Generator replaying a fixed list of steps and
// recording every request it receives. It is safe for concurrent use.
type ScriptedGenerator struct {
	mu       sync.Mutex
	steps    []Step
	requests []ports.GenerationRequest
}

// NewScriptedGenerator creates a generator replaying steps in order.
func NewScriptedGenerator(steps ...Step) *ScriptedGenerator {
	return &ScriptedGenerator{steps: steps}
}

// Push appends more steps to the script.
func (g *ScriptedGenerator) Push(steps ...Step) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps = append(g.steps, steps...)
}

func (g *ScriptedGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (domain.Turn, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	if len(g.steps) == 0 {
		g.mu.Unlock()
		return domain.Turn{}, ErrScriptExhausted
	}
	step := g.steps[0]
	g.steps = g.steps[1:]
	g.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return domain.Turn{}, ctx.Err()
	}
	if step.Err != nil {
		return domain.Turn{}, step.Err
	}
	return step.Turn.Clone(), nil
}

// Requests returns the requests received so far.
func (g *ScriptedGenerator) Requests() []ports.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.GenerationRequest(nil), g.requests...)
}

// Calls returns the number of Generate calls so far.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}
