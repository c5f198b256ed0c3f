// Package gemini implements ports.Generator on the Gemini API (google.golang.org/genai).
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/schema"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const (
	roleUser  = "user"
	roleModel = "model"
)

// ErrEmptyResponse is returned when the API replies with neither text nor a function call.
var ErrEmptyResponse = errors.New("empty response from Gemini API")

// contentGenerator is the slice of the SDK used by the generator.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the genai client. The client is created lazily on first use.
type Generator struct {
	apiKey string
	model  string

	once   sync.Once
	models contentGenerator
	err    error
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
	g := &Generator{apiKey: apiKey, model: DefaultModel}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) client(ctx context.Context) (contentGenerator, error) {
	g.once.Do(func() {
		if g.models != nil {
			return
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			g.err = fmt.Errorf("failed to create Gemini client: %w", err)
			return
		}
		g.models = client.Models
	})
	return g.models, g.err
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, req ports.GenerationRequest) (domain.Turn, error) {
	models, err := g.client(ctx)
	if err != nil {
		return domain.Turn{}, err
	}

	contents, system := convertHistory(req.Instruction, req.History)
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if req.Schema != nil {
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Parameters:  convertSchema(req.Schema.Parameters),
			}},
		}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}

	result, err := models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("Gemini API call failed: %w", err)
	}
	return parseResponse(result, req.Schema)
}

// convertHistory maps turns to Gemini contents. System turns join the
// instruction; an empty history becomes a single "Continue." user message.
func convertHistory(instruction string, history []domain.Turn) ([]*genai.Content, string) {
	system := instruction
	var contents []*genai.Content

	for _, turn := range history {
		switch turn.Role {
		case domain.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += turn.Content
		case domain.RoleAssistant:
			var parts []*genai.Part
			if turn.Content != "" {
				parts = append(parts, &genai.Part{Text: turn.Content})
			}
			if turn.Payload != nil {
				if data, err := json.Marshal(turn.Payload); err == nil {
					parts = append(parts, &genai.Part{Text: string(data)})
				}
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: roleModel, Parts: parts})
			}
		default:
			contents = append(contents, textContent(roleUser, turn.Content))
		}
	}

	if len(contents) == 0 {
		contents = append(contents, textContent(roleUser, "Continue."))
	}
	return contents, system
}

func textContent(role, text string) *genai.Content {
	return &genai.Content{Role: role, Parts: []*genai.Part{{Text: text}}}
}

// convertSchema converts a JSON Schema object into the subset genai understands.
func convertSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}
	s := &genai.Schema{}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}

	switch js["type"] {
	case "object":
		s.Type = genai.TypeObject
		if props, ok := js["properties"].(map[string]any); ok {
			s.Properties = make(map[string]*genai.Schema, len(props))
			for name, raw := range props {
				if child, ok := raw.(map[string]any); ok {
					s.Properties[name] = convertSchema(child)
				}
			}
		}
		if req, ok := js["required"].([]any); ok {
			for _, r := range req {
				if name, ok := r.(string); ok {
					s.Required = append(s.Required, name)
				}
			}
		}
	case "array":
		s.Type = genai.TypeArray
		if items, ok := js["items"].(map[string]any); ok {
			s.Items = convertSchema(items)
		}
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		s.Type = genai.TypeString
		if n, ok := js["minLength"].(float64); ok {
			minLength := int64(n)
			s.MinLength = &minLength
		}
	}
	return s
}

func parseResponse(result *genai.GenerateContentResponse, out *ports.OutputSchema) (domain.Turn, error) {
	if result == nil {
		return domain.Turn{}, ErrEmptyResponse
	}

	var payload *domain.Payload
	for _, call := range result.FunctionCalls() {
		if out == nil || call.Name != out.Name {
			return domain.Turn{}, fmt.Errorf("unexpected function call %q", call.Name)
		}
		p, err := schema.DecodePayload(call.Args)
		if err != nil {
			return domain.Turn{}, err
		}
		payload = &p
	}

	text := result.Text()
	if payload != nil {
		return domain.NewModeSwitchTurn(text, *payload), nil
	}
	if text == "" {
		return domain.Turn{}, ErrEmptyResponse
	}
	return domain.NewAssistantTurn(text), nil
}
