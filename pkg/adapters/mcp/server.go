package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/domain"
)

// Engine defines the interface required by the MCP server to interact with Turnstile.
type Engine interface {
	Submit(ctx context.Context, threadID, text string) ([]domain.Turn, error)
	Thread(ctx context.Context, threadID string) (domain.Thread, error)
	Threads(ctx context.Context) ([]string, error)
}

// SubmitArgs are the arguments of the submit_turn tool.
type SubmitArgs struct {
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
}

// ThreadArgs are the arguments of the get_thread tool.
type ThreadArgs struct {
	ThreadID string `json:"thread_id"`
}

// SubmitResult aligns with the HTTP SubmitResponse.
type SubmitResult struct {
	ThreadID string        `json:"thread_id" jsonschema_description:"The thread the turns were appended to"`
	Turns    []domain.Turn `json:"turns" jsonschema_description:"Assistant turns produced by this cycle, in order"`
}

// ThreadResult is the persisted history of a thread.
type ThreadResult struct {
	ID    string        `json:"id" jsonschema_description:"Thread identifier"`
	Turns []domain.Turn `json:"turns" jsonschema_description:"Every committed turn, oldest first"`
}

// Server wraps the Turnstile Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("turnstile-mcp", strings.TrimSpace(turnstile.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: submit_turn
	submitTool := mcp.NewTool("submit_turn",
		mcp.WithDescription("Submit one human turn to a thread and return the assistant turns it produced. A failed submit leaves the thread unchanged."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread identifier (created on first use)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Human message")),
		mcp.WithOutputSchema[SubmitResult](),
	)
	s.mcpServer.AddTool(submitTool, mcp.NewStructuredToolHandler(s.handleSubmit))

	// TOOL: get_thread
	threadTool := mcp.NewTool("get_thread",
		mcp.WithDescription("Get the persisted history of a thread. Unknown threads are empty."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread identifier")),
		mcp.WithOutputSchema[ThreadResult](),
	)
	s.mcpServer.AddTool(threadTool, mcp.NewStructuredToolHandler(s.handleGetThread))
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest, args SubmitArgs) (SubmitResult, error) {
	if args.ThreadID == "" {
		return SubmitResult{}, fmt.Errorf("thread_id is required")
	}

	turns, err := s.engine.Submit(ctx, args.ThreadID, args.Content)
	if err != nil {
		s.logger.Warn("MCP submit_turn failed", "thread_id", args.ThreadID, "err", err)
		return SubmitResult{}, fmt.Errorf("submit failed: %w", err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return SubmitResult{ThreadID: args.ThreadID, Turns: turns}, nil
}

func (s *Server) handleGetThread(ctx context.Context, request mcp.CallToolRequest, args ThreadArgs) (ThreadResult, error) {
	if args.ThreadID == "" {
		return ThreadResult{}, fmt.Errorf("thread_id is required")
	}

	thread, err := s.engine.Thread(ctx, args.ThreadID)
	if err != nil {
		return ThreadResult{}, fmt.Errorf("load failed: %w", err)
	}
	turns := thread.All()
	if turns == nil {
		turns = []domain.Turn{}
	}
	return ThreadResult{ID: args.ThreadID, Turns: turns}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: turnstile://threads
	s.mcpServer.AddResource(mcp.NewResource("turnstile://threads", "Stored Threads",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.engine.Threads(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list threads: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "turnstile://threads",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
