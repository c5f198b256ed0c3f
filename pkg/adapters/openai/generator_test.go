package openai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/schema"
)

type fakeResponses struct {
	params responses.ResponseNewParams
	raw    string
	err    error
}

func (f *fakeResponses) New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error) {
	f.params = body
	if f.err != nil {
		return nil, f.err
	}
	var resp responses.Response
	if err := json.Unmarshal([]byte(f.raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func TestTranscript(t *testing.T) {
	got := transcript("gather", []domain.Turn{
		domain.NewHumanTurn("hi"),
		domain.NewAssistantTurn("hello"),
		domain.NewModeSwitchTurn("", domain.Payload{Objective: "x"}),
		domain.NewSystemTurn("note"),
	})

	assert.Equal(t, "System: gather\n\nUser: hi\n\nAssistant: hello\n\n"+
		`Assistant: {"objective":"x","variables":null,"constraints":null,"requirements":null}`+
		"\n\nSystem: note", got)
	assert.Equal(t, "System: generate", transcript("generate", nil))
}

func TestGenerate_Text(t *testing.T) {
	fake := &fakeResponses{raw: `{
		"id": "resp_1", "object": "response", "model": "gpt-test",
		"output": [{
			"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
			"content": [{"type": "output_text", "text": "Which variables?", "annotations": []}]
		}]
	}`}
	g := newGenerator(fake, WithModel("gpt-test"))

	out, err := schema.PayloadOutputSchema()
	require.NoError(t, err)
	turn, err := g.Generate(context.Background(), ports.GenerationRequest{
		Instruction: "gather",
		History:     []domain.Turn{domain.NewHumanTurn("hi")},
		Schema:      out,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.NewAssistantTurn("Which variables?"), turn)

	assert.Equal(t, "gpt-test", fake.params.Model)
	require.Len(t, fake.params.Tools, 1)
	require.NotNil(t, fake.params.Tools[0].OfFunction)
	assert.Equal(t, schema.PayloadToolName, fake.params.Tools[0].OfFunction.Name)
}

func TestGenerate_FunctionCall(t *testing.T) {
	fake := &fakeResponses{raw: `{
		"id": "resp_2", "object": "response",
		"output": [{
			"type": "function_call", "id": "fc_1", "call_id": "call_1", "name": "PromptInstructions",
			"arguments": "{\"objective\":\"extraction\",\"variables\":[\"schema\"],\"constraints\":[],\"requirements\":[\"JSON output\"]}"
		}]
	}`}
	g := newGenerator(fake)

	out, err := schema.PayloadOutputSchema()
	require.NoError(t, err)
	turn, err := g.Generate(context.Background(), ports.GenerationRequest{Instruction: "gather", Schema: out})
	require.NoError(t, err)
	require.True(t, domain.IsModeSwitch(turn))
	assert.Equal(t, []string{"JSON output"}, turn.Payload.Requirements)
}

func TestGenerate_NoToolsWithoutSchema(t *testing.T) {
	fake := &fakeResponses{raw: `{"id":"r","output":[{"type":"message","id":"m","role":"assistant",
		"content":[{"type":"output_text","text":"template","annotations":[]}]}]}`}
	g := newGenerator(fake)

	turn, err := g.Generate(context.Background(), ports.GenerationRequest{Instruction: "generate"})
	require.NoError(t, err)
	assert.Equal(t, "template", turn.Content)
	assert.Empty(t, fake.params.Tools)
}

func TestGenerate_Errors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := newGenerator(&fakeResponses{err: boom}).Generate(context.Background(), ports.GenerationRequest{})
	assert.ErrorIs(t, err, boom)

	_, err = newGenerator(&fakeResponses{raw: `{"id":"r","output":[]}`}).Generate(context.Background(), ports.GenerationRequest{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
