// Package api provides HTTP handlers and the main API server logic for the
// DM qualification agent.
//
// It exposes the ManyChat and GoHighLevel webhooks that drive conversations,
// plus admin endpoints for inspecting and taking over live conversations.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bmblueprint/dmagent/internal/models"
	"github.com/bmblueprint/dmagent/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// DefaultTurnTimeout bounds one conversation turn, oracle calls included.
const DefaultTurnTimeout = 60 * time.Second

// Engine is the slice of the conversation engine the server drives.
type Engine interface {
	ProcessTurn(ctx context.Context, st *models.ConversationState, incoming *string) (*models.ConversationState, string, error)
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr        string
	TurnTimeout time.Duration
	BookingLink string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTurnTimeout bounds the processing of a single webhook turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(o *Opts) { o.TurnTimeout = d }
}

// WithBookingLink sets the calendar link surfaced to GoHighLevel as a custom
// field once a lead qualifies.
func WithBookingLink(link string) Option {
	return func(o *Opts) { o.BookingLink = link }
}

// Server wires the webhook and admin endpoints to the engine and the store.
type Server struct {
	engine      Engine
	store       store.Store
	addr        string
	turnTimeout time.Duration
	bookingLink string
}

// NewServer creates the API server.
func NewServer(engine Engine, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, TurnTimeout: DefaultTurnTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		engine:      engine,
		store:       st,
		addr:        cfg.Addr,
		turnTimeout: cfg.TurnTimeout,
		bookingLink: cfg.BookingLink,
	}
}

// Handler returns the route table, exported so tests can drive it without a
// listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/manychat", s.manyChatHandler)
	mux.HandleFunc("/webhook/gohighlevel", s.goHighLevelHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/conversations", s.listConversationsHandler)
	mux.HandleFunc("/conversations/", s.conversationHandler)
	return mux
}

// Run starts the HTTP server and blocks until it fails.
func (s *Server) Run() error {
	slog.Info("Server.Run: API listening", "addr", s.addr)
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "up"}))
}
