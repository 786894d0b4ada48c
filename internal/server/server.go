// Package server exposes the chat operation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/logging"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultReadHeaderTimeout is the default read header timeout.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout is the default idle timeout.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultMaxBodyBytes bounds the request body.
	DefaultMaxBodyBytes = 64 << 10
)

// Chatter runs one conversation.
type Chatter interface {
	Chat(ctx context.Context, input, timezone string) []core.AgentEvent
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	InputMessage string `json:"inputmessage"`
	TimeZone     string `json:"timezone,omitempty"`
}

// Options configures a Server.
type Options struct {
	Addr         string
	MaxBodyBytes int64
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
	Logger  logging.Logger
}

// Server is the HTTP transport of the chat operation.
type Server struct {
	chat       Chatter
	opts       Options
	httpServer *http.Server
}

// New creates a server dispatching chat requests to chat.
func New(chat Chatter, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:         DefaultAddr,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Server{chat: chat, opts: opts}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	return mux
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.opts.Logger.Info("server.start", "addr", s.opts.Addr, "metrics", s.opts.Metrics != nil)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.opts.Logger.Info("server.shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.opts.Addr }

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		s.opts.Logger.Debug("server.chat.bad_request", logging.KeyError, err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := s.chat.Chat(r.Context(), req.InputMessage, req.TimeZone)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(events); err != nil {
		s.opts.Logger.Warn("server.chat.write_failed", logging.KeyError, err.Error())
	}
}

func decodeChatRequest(body io.Reader) (ChatRequest, error) {
	var req ChatRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return req, errors.New("invalid request body: trailing data")
	}
	if strings.TrimSpace(req.InputMessage) == "" {
		return req, errors.New("inputmessage is required")
	}
	return req, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
