package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-media-converter/internal/domain/ports/repository"
	"telegram-media-converter/internal/infra/metrics"
)

// GateStats is the read side of the conversion gate.
type GateStats interface {
	Capacity() int
	InUse() int
	Waiting() int
}

// Server is the admin endpoint: liveness, readiness and Prometheus metrics.
type Server struct {
	port   int
	store  repository.Pinger
	gate   GateStats
	log    *zerolog.Logger
	server *http.Server
}

// NewServer builds the admin server. store may be nil when the mode store
// has nothing to ping.
func NewServer(port int, store repository.Pinger, gate GateStats, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminHTTP").Logger()
	return &Server{port: port, store: store, gate: gate, log: &l}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", metrics.Handler())

	return Chain(r, TraceID(), Recover(s.log), RequestLog(s.log), Timeout(5*time.Second))
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", s.port).Msg("admin HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			http.Error(w, "mode store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

type statusResponse struct {
	GateCapacity int `json:"gate_capacity"`
	GateInUse    int `json:"gate_in_use"`
	GateWaiting  int `json:"gate_waiting"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{}
	if s.gate != nil {
		resp = statusResponse{GateCapacity: s.gate.Capacity(), GateInUse: s.gate.InUse(), GateWaiting: s.gate.Waiting()}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
