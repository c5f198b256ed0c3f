package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/internal/runtime"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// maxBodyBytes bounds request bodies; content itself is bounded by the sanitizer.
const maxBodyBytes = 1 << 20

// Engine defines the interface for the Turnstile orchestrator.
type Engine interface {
	Submit(ctx context.Context, threadID, text string) ([]domain.Turn, error)
	Thread(ctx context.Context, threadID string) (domain.Thread, error)
	Threads(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, threadID string) error
}

var _ Engine = (*turnstile.Engine)(nil)

// Server serves the JSON API.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*options)

type options struct {
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// WithMetrics exposes the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// SubmitRequest is the body of POST /threads/{id}/turns.
type SubmitRequest struct {
	Content string `json:"content"`
}

// SubmitResponse lists the assistant turns produced by one cycle.
type SubmitResponse struct {
	ThreadID string        `json:"thread_id"`
	Turns    []domain.Turn `json:"turns"`
}

// ThreadResponse is a persisted thread.
type ThreadResponse struct {
	ID    string        `json:"id"`
	Turns []domain.Turn `json:"turns"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	server := &Server{
		Engine:  engine,
		Streams: NewStreamManager(o.logger),
		logger:  o.logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if o.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/threads", func(r chi.Router) {
		r.Get("/", server.ListThreads)
		r.Get("/{id}", server.GetThread)
		r.Delete("/{id}", server.DeleteThread)
		r.Post("/{id}/turns", server.SubmitTurn)
		r.Get("/{id}/events", server.SubscribeEvents)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SubmitTurn handles POST /threads/{id}/turns.
func (s *Server) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")

	var body SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		s.logger.Warn("SubmitTurn: Invalid request body", "thread_id", threadID, "err", err)
		return
	}

	turns, err := s.Engine.Submit(r.Context(), threadID, body.Content)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("SubmitTurn failed", "thread_id", threadID, "err", err)
		}
		s.writeError(w, status, err)
		return
	}
	if turns == nil {
		turns = []domain.Turn{}
	}

	if data, err := json.Marshal(turns); err == nil {
		s.Streams.Broadcast(threadID, string(data))
	}
	s.writeJSON(w, http.StatusOK, SubmitResponse{ThreadID: threadID, Turns: turns})
}

// GetThread handles GET /threads/{id}. Unseen ids yield an empty thread.
func (s *Server) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	thread, err := s.Engine.Thread(r.Context(), threadID)
	if err != nil {
		s.logger.Error("GetThread failed", "thread_id", threadID, "err", err)
		s.writeError(w, statusFor(err), err)
		return
	}

	turns := thread.All()
	if turns == nil {
		turns = []domain.Turn{}
	}
	s.writeJSON(w, http.StatusOK, ThreadResponse{ID: threadID, Turns: turns})
}

// ListThreads handles GET /threads.
func (s *Server) ListThreads(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Threads(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// DeleteThread handles DELETE /threads/{id}.
func (s *Server) DeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := s.Engine.Delete(r.Context(), threadID); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "turnstile-http",
		"version": strings.TrimSpace(turnstile.Version),
	})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, runtime.ErrInputTooLarge),
		errors.Is(err, runtime.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrThreadBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, ports.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // ThreadID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(threadID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[threadID]; !ok {
		sm.subscribers[threadID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[threadID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[threadID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, threadID)
			}
		}
	}
}

// Subscribers returns the number of open streams for a thread.
func (sm *StreamManager) Subscribers(threadID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[threadID])
}

func (sm *StreamManager) Broadcast(threadID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[threadID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "thread_id", threadID)
		}
	}
}

// SubscribeEvents handles GET /threads/{id}/events (SSE). Each event carries
// the turns committed by one submit.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}
	threadID := chi.URLParam(r, "id")

	ch, cancel := s.Streams.Subscribe(threadID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "thread_id", threadID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: turns\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
