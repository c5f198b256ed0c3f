package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/testutils"
	"github.com/aretw0/turnstile/pkg/adapters/memory"
	"github.com/aretw0/turnstile/pkg/domain"
)

func newServer(t *testing.T, steps ...testutils.Step) (*Server, *turnstile.Engine) {
	t.Helper()
	eng, err := turnstile.New(memory.NewStore(), testutils.NewScriptedGenerator(steps...))
	require.NoError(t, err)
	return NewServer(eng, nil), eng
}

func TestSubmitTurn(t *testing.T) {
	s, _ := newServer(t,
		testutils.Switch(testutils.ExtractionPayload()),
		testutils.Reply("You are an extraction assistant."),
	)
	ctx := context.Background()

	res, err := s.handleSubmit(ctx, mcp.CallToolRequest{}, SubmitArgs{ThreadID: "t1", Content: "extract JSON"})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.ThreadID)
	require.Len(t, res.Turns, 2)
	assert.True(t, domain.IsModeSwitch(res.Turns[0]))

	thread, err := s.handleGetThread(ctx, mcp.CallToolRequest{}, ThreadArgs{ThreadID: "t1"})
	require.NoError(t, err)
	assert.Len(t, thread.Turns, 3)
}

func TestSubmitTurn_Errors(t *testing.T) {
	s, eng := newServer(t, testutils.Fail(errors.New("quota")))
	ctx := context.Background()

	_, err := s.handleSubmit(ctx, mcp.CallToolRequest{}, SubmitArgs{Content: "hi"})
	assert.Error(t, err)

	_, err = s.handleSubmit(ctx, mcp.CallToolRequest{}, SubmitArgs{ThreadID: "t1", Content: "hi"})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)

	thread, err := eng.Thread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, thread.Len())
}

func TestGetThread_Unseen(t *testing.T) {
	s, _ := newServer(t)

	res, err := s.handleGetThread(context.Background(), mcp.CallToolRequest{}, ThreadArgs{ThreadID: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, "nobody", res.ID)
	assert.NotNil(t, res.Turns)
	assert.Empty(t, res.Turns)

	_, err = s.handleGetThread(context.Background(), mcp.CallToolRequest{}, ThreadArgs{})
	assert.Error(t, err)
}

func TestNewServer(t *testing.T) {
	s, _ := newServer(t)
	assert.NotNil(t, s.MCPServer())
}
