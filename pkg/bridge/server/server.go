package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/vango-go/vai-bridge/pkg/bridge/billing"
	"github.com/vango-go/vai-bridge/pkg/bridge/config"
	"github.com/vango-go/vai-bridge/pkg/bridge/handlers"
	"github.com/vango-go/vai-bridge/pkg/bridge/lifecycle"
	"github.com/vango-go/vai-bridge/pkg/bridge/mw"
	"github.com/vango-go/vai-bridge/pkg/bridge/sessions"
	"github.com/vango-go/vai-bridge/pkg/bridge/store"
	"github.com/vango-go/vai-bridge/pkg/bridge/summary"
	"github.com/vango-go/vai-bridge/pkg/bridge/twiliorest"
)

// Collaborators are the external services the server wires into its routes.
// Optional ones may be nil; the matching features degrade.
type Collaborators struct {
	Store      store.Store
	Twilio     *twiliorest.Client
	Summarizer *summary.Summarizer
	Billing    *billing.Reporter
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	lifecycle *lifecycle.Lifecycle
	tracker   *sessions.Tracker
}

func New(cfg config.Config, logger *slog.Logger, collab Collaborators) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		lifecycle: &lifecycle.Lifecycle{},
		tracker:   sessions.NewTracker(),
	}

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:    cfg,
		Lifecycle: s.lifecycle,
		Sessions:  s.tracker,
	})
	s.mux.Handle("/twilio/stream", handlers.StreamHandler{
		Config:     cfg,
		Store:      collab.Store,
		Logger:     logger,
		Lifecycle:  s.lifecycle,
		Sessions:   s.tracker,
		Twilio:     collab.Twilio,
		Summarizer: collab.Summarizer,
		Billing:    collab.Billing,
	})

	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining makes readiness fail and new streams refuse while in-flight
// calls continue.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WaitSessions blocks until every live call has torn down, or the context
// ends. Returns false on timeout.
func (s *Server) WaitSessions(ctx context.Context) bool {
	return s.tracker.Wait(ctx)
}

// CancelSessions force-closes every live call.
func (s *Server) CancelSessions() int {
	return s.tracker.CancelAll()
}

func (s *Server) ActiveSessions() int {
	return s.tracker.Count()
}
