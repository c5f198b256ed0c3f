// Package anthropic implements ports.Generator on the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/schema"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// DefaultMaxTokens caps a single reply.
const DefaultMaxTokens = 4096

// continuePrompt is sent when the filtered history is empty: the API needs at
// least one user message.
const continuePrompt = "Continue."

// ErrEmptyResponse is returned when the API replies with neither text nor a tool call.
var ErrEmptyResponse = errors.New("empty response from Anthropic API")

// messageCreator is the slice of the SDK used by the generator.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Generator wraps the Anthropic client.
type Generator struct {
	messages  messageCreator
	model     anthropic.Model
	maxTokens int64
}

// Option configures the Generator.
type Option func(*Generator)

// WithModel selects the model.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = anthropic.Model(model)
		}
	}
}

// WithMaxTokens caps reply length.
func WithMaxTokens(n int64) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// New creates a generator authenticated with apiKey.
func New(apiKey string, opts ...Option) *Generator {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newGenerator(&client.Messages, opts...)
}

func newGenerator(messages messageCreator, opts ...Option) *Generator {
	g := &Generator{
		messages:  messages,
		model:     anthropic.Model(DefaultModel),
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, req ports.GenerationRequest) (domain.Turn, error) {
	system, messages := ensureAlternation(req.Instruction, req.History)

	params := anthropic.MessageNewParams{
		Model:     g.model,
		Messages:  messages,
		MaxTokens: g.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}
	if req.Schema != nil {
		params.Tools = []anthropic.ToolUnionParam{toolParam(req.Schema)}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := g.messages.New(ctx, params)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("anthropic messages call failed: %w", err)
	}
	return parseResponse(resp, req.Schema)
}

// ensureAlternation prepares the history for the Messages API:
// system turns join the instruction, consecutive same-role turns are merged,
// and the sequence starts and ends with a user message.
func ensureAlternation(instruction string, history []domain.Turn) (string, []anthropic.MessageParam) {
	systemParts := []string{}
	if instruction != "" {
		systemParts = append(systemParts, instruction)
	}

	type block struct {
		role  anthropic.MessageParamRole
		parts []string
	}
	var merged []block

	for _, turn := range history {
		if turn.Role == domain.RoleSystem {
			systemParts = append(systemParts, turn.Content)
			continue
		}

		role := anthropic.MessageParamRoleUser
		content := turn.Content
		if turn.Role == domain.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
			content = assistantText(turn)
		}
		if content == "" {
			continue
		}

		if n := len(merged); n > 0 && merged[n-1].role == role {
			merged[n-1].parts = append(merged[n-1].parts, content)
			continue
		}
		merged = append(merged, block{role: role, parts: []string{content}})
	}

	if len(merged) == 0 || merged[0].role != anthropic.MessageParamRoleUser {
		merged = append([]block{{role: anthropic.MessageParamRoleUser, parts: []string{continuePrompt}}}, merged...)
	}
	if merged[len(merged)-1].role != anthropic.MessageParamRoleUser {
		merged = append(merged, block{role: anthropic.MessageParamRoleUser, parts: []string{continuePrompt}})
	}

	messages := make([]anthropic.MessageParam, 0, len(merged))
	for _, b := range merged {
		messages = append(messages, anthropic.MessageParam{
			Role:    b.role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(strings.Join(b.parts, "\n\n"))},
		})
	}
	return strings.Join(systemParts, "\n\n"), messages
}

// assistantText renders a mode-switch turn as text so earlier payloads stay
// visible to the model without replaying tool-use blocks.
func assistantText(turn domain.Turn) string {
	if turn.Payload == nil {
		return turn.Content
	}
	data, err := json.Marshal(turn.Payload)
	if err != nil {
		return turn.Content
	}
	if turn.Content == "" {
		return string(data)
	}
	return turn.Content + "\n\n" + string(data)
}

func toolParam(out *ports.OutputSchema) anthropic.ToolUnionParam {
	input := anthropic.ToolInputSchemaParam{
		Properties: out.Parameters["properties"],
	}
	if required, ok := out.Parameters["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				input.Required = append(input.Required, s)
			}
		}
	}

	tool := anthropic.ToolUnionParamOfTool(input, out.Name)
	if out.Description != "" {
		tool.OfTool.Description = anthropic.String(out.Description)
	}
	return tool
}

func parseResponse(resp *anthropic.Message, out *ports.OutputSchema) (domain.Turn, error) {
	if resp == nil || len(resp.Content) == 0 {
		return domain.Turn{}, ErrEmptyResponse
	}

	var (
		text    strings.Builder
		payload *domain.Payload
	)
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			use := block.AsToolUse()
			if out == nil || use.Name != out.Name {
				return domain.Turn{}, fmt.Errorf("unexpected tool call %q", use.Name)
			}
			p, err := schema.DecodePayloadJSON(use.Input)
			if err != nil {
				return domain.Turn{}, err
			}
			payload = &p
		}
	}

	if payload != nil {
		return domain.NewModeSwitchTurn(text.String(), *payload), nil
	}
	if text.Len() == 0 {
		return domain.Turn{}, ErrEmptyResponse
	}
	return domain.NewAssistantTurn(text.String()), nil
}
