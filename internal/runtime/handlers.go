package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/schema"
)

// Handler runs one mode against the current thread and returns the single
// assistant turn it produced.
type Handler interface {
	Mode() domain.Mode
	Run(ctx context.Context, thread domain.Thread) (domain.Turn, error)
}

// GatheringHandler asks the generator to collect requirements from the human.
// The payload schema is always offered; the generator decides whether to fill it.
type GatheringHandler struct {
	generator   ports.Generator
	instruction string
}

// NewGatheringHandler creates a gathering handler with a fixed instruction.
func NewGatheringHandler(generator ports.Generator, instruction string) *GatheringHandler {
	return &GatheringHandler{generator: generator, instruction: instruction}
}

func (h *GatheringHandler) Mode() domain.Mode { return domain.ModeGathering }

func (h *GatheringHandler) Run(ctx context.Context, thread domain.Thread) (domain.Turn, error) {
	out, err := schema.PayloadOutputSchema()
	if err != nil {
		return domain.Turn{}, domain.NewGenerationFailed(h.Mode(), err)
	}

	reply, err := h.generator.Generate(ctx, ports.GenerationRequest{
		Instruction: h.instruction,
		History:     thread.All(),
		Schema:      out,
	})
	if err != nil {
		return domain.Turn{}, domain.NewGenerationFailed(h.Mode(), err)
	}
	if err := validateReply(h.Mode(), reply); err != nil {
		return domain.Turn{}, domain.NewGenerationFailed(h.Mode(), err)
	}
	return reply, nil
}

// GeneratingHandler produces the artifact from the first payload of the thread.
type GeneratingHandler struct {
	generator ports.Generator
	tmpl      *template.Template
}

var instructionFuncs = template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, ", ") },
	"bullets": func(items []string) string {
		if len(items) == 0 {
			return "- (none)"
		}
		return "- " + strings.Join(items, "\n- ")
	},
}

// NewGeneratingHandler parses instruction as a text/template rendered with the
// mode-switch payload (.Objective, .Variables, .Constraints, .Requirements).
func NewGeneratingHandler(generator ports.Generator, instruction string) (*GeneratingHandler, error) {
	tmpl, err := template.New("generating").
		Funcs(instructionFuncs).
		Option("missingkey=error").
		Parse(instruction)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generating instruction: %w", err)
	}
	return &GeneratingHandler{generator: generator, tmpl: tmpl}, nil
}

func (h *GeneratingHandler) Mode() domain.Mode { return domain.ModeGenerating }

func (h *GeneratingHandler) Run(ctx context.Context, thread domain.Thread) (domain.Turn, error) {
	idx, ok := domain.FirstModeSwitch(thread.Turns)
	if !ok {
		return domain.Turn{}, fmt.Errorf("%w: generating without a mode switch", domain.ErrInvariantViolation)
	}
	payload, err := domain.ExtractPayload(thread.Turns[idx])
	if err != nil {
		return domain.Turn{}, fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
	}

	instruction, err := h.Render(payload)
	if err != nil {
		return domain.Turn{}, domain.NewGenerationFailed(h.Mode(), err)
	}

	reply, err := h.generator.Generate(ctx, ports.GenerationRequest{
		Instruction: instruction,
		History:     thread.Since(idx + 1),
	})
	if err != nil {
		return domain.Turn{}, domain.NewGenerationFailed(h.Mode(), err)
	}
	if err := validateReply(h.Mode(), reply); err != nil {
		return domain.Turn{}, domain.NewGenerationFailed(h.Mode(), err)
	}
	return reply, nil
}

// Render fills the instruction template with the payload.
func (h *GeneratingHandler) Render(payload domain.Payload) (string, error) {
	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("failed to render generating instruction: %w", err)
	}
	return buf.String(), nil
}

var (
	errNotAssistant      = errors.New("reply is not an assistant turn")
	errUnexpectedPayload = errors.New("generating reply must not carry a payload")
)

func validateReply(mode domain.Mode, reply domain.Turn) error {
	if err := reply.Validate(); err != nil {
		return err
	}
	if reply.Role != domain.RoleAssistant {
		return fmt.Errorf("%w: got role %q", errNotAssistant, reply.Role)
	}
	if reply.Payload == nil {
		return nil
	}
	if mode == domain.ModeGenerating {
		return errUnexpectedPayload
	}
	return schema.ValidatePayload(*reply.Payload)
}
