// Package api is the HTTP control surface of the goalkeeper: operator
// commands, a status endpoint and a websocket stream of live updates.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/presentation"
)

const shutdownTimeout = 5 * time.Second

// Controller accepts operator commands and reports the system state.
type Controller interface {
	Submit(c message.Control)
	StateName() string
	SessionID() string
}

// LatestProvider returns the most recent update of each type.
type LatestProvider interface {
	Latest() map[string]presentation.Envelope
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	State   string                           `json:"state"`
	Session string                           `json:"session,omitempty"`
	Latest  map[string]presentation.Envelope `json:"latest"`
}

// Server serves the control surface.
type Server struct {
	cfg    config.APIConfig
	ctl    Controller
	latest LatestProvider
	hub    *Hub
	logger *slog.Logger
}

// NewServer creates a server. hub may be nil to disable the websocket stream.
func NewServer(cfg config.APIConfig, ctl Controller, latest LatestProvider, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		ctl:    ctl,
		latest: latest,
		hub:    hub,
		logger: logger.With("component", "api"),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /control/{command}", func(w http.ResponseWriter, r *http.Request) {
		s.control(w, r.PathValue("command"))
	})
	// legacy operator panel routes
	for _, name := range []string{"power_on", "start", "reset"} {
		mux.HandleFunc("POST /"+name, func(w http.ResponseWriter, _ *http.Request) {
			s.control(w, name)
		})
	}
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
	return mux
}

func (s *Server) control(w http.ResponseWriter, name string) {
	c, err := message.ParseControl(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.ctl.Submit(c)
	s.logger.Debug("Control accepted", "command", c.String())
	writeJSON(w, http.StatusAccepted, map[string]string{"accepted": c.String()})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		State:   s.ctl.StateName(),
		Session: s.ctl.SessionID(),
		Latest:  map[string]presentation.Envelope{},
	}
	if s.latest != nil {
		resp.Latest = s.latest.Latest()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("API listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.hub != nil {
		s.hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
