// Package openai implements ports.Generator on the OpenAI Responses API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/schema"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-5"

// ErrEmptyResponse is returned when the API replies with neither text nor a function call.
var ErrEmptyResponse = errors.New("empty response from OpenAI Responses API")

type responseCreator interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

// Generator wraps the official OpenAI client.
type Generator struct {
	responses responseCreator
	model     string
}

// Option configures the Generator.
type Option func(*Generator)

// WithModel selects the model.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

// New creates a generator authenticated with apiKey.
func New(apiKey string, opts ...Option) *Generator {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return newGenerator(&client.Responses, opts...)
}

func newGenerator(r responseCreator, opts ...Option) *Generator {
	g := &Generator{responses: r, model: DefaultModel}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, req ports.GenerationRequest) (domain.Turn, error) {
	params := responses.ResponseNewParams{
		Model: g.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(transcript(req.Instruction, req.History))},
	}
	if req.Schema != nil {
		params.Tools = []responses.ToolUnionParam{{
			OfFunction: &responses.FunctionToolParam{
				Name:        req.Schema.Name,
				Description: openai.String(req.Schema.Description),
				Parameters:  openai.FunctionParameters(req.Schema.Parameters),
			},
		}}
	}

	resp, err := g.responses.New(ctx, params)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("OpenAI Responses API failed: %w", err)
	}
	return parseResponse(resp, req.Schema)
}

// transcript flattens instruction and history into a single labelled input.
func transcript(instruction string, history []domain.Turn) string {
	var b strings.Builder
	if instruction != "" {
		fmt.Fprintf(&b, "System: %s\n\n", instruction)
	}
	for _, turn := range history {
		switch turn.Role {
		case domain.RoleSystem:
			fmt.Fprintf(&b, "System: %s\n\n", turn.Content)
		case domain.RoleAssistant:
			content := turn.Content
			if turn.Payload != nil {
				if data, err := json.Marshal(turn.Payload); err == nil {
					content = strings.TrimSpace(content + "\n" + string(data))
				}
			}
			fmt.Fprintf(&b, "Assistant: %s\n\n", content)
		default:
			fmt.Fprintf(&b, "User: %s\n\n", turn.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func parseResponse(resp *responses.Response, out *ports.OutputSchema) (domain.Turn, error) {
	if resp == nil {
		return domain.Turn{}, ErrEmptyResponse
	}

	var payload *domain.Payload
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		call := item.AsFunctionCall()
		if out == nil || call.Name != out.Name {
			return domain.Turn{}, fmt.Errorf("unexpected function call %q", call.Name)
		}
		p, err := schema.DecodePayloadJSON([]byte(call.Arguments))
		if err != nil {
			return domain.Turn{}, err
		}
		payload = &p
	}

	text := resp.OutputText()
	if payload != nil {
		return domain.NewModeSwitchTurn(text, *payload), nil
	}
	if text == "" {
		return domain.Turn{}, ErrEmptyResponse
	}
	return domain.NewAssistantTurn(text), nil
}
