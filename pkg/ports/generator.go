package ports

import (
	"context"

	"github.com/aretw0/turnstile/pkg/domain"
)

// OutputSchema describes the structured output a generator may attach to its reply.
type OutputSchema struct {
	// Name is the identifier exposed to the model (tool / function name).
	Name        string
	Description string
	// Parameters is a JSON Schema object.
	Parameters map[string]any
}

// GenerationRequest is everything a generator needs for one call.
type GenerationRequest struct {
	Instruction string
	History     []domain.Turn
	// Schema is nil when plain text is expected.
	Schema *OutputSchema
}

// Generator is the external text generation service (a hosted language model).
// It returns exactly one assistant turn. When Schema is set, the generator may
// attach a Payload to the turn; it never has to.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (domain.Turn, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerationRequest) (domain.Turn, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest) (domain.Turn, error) {
	return f(ctx, req)
}
