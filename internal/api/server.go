// Package api serves a small JSON API for watching and stopping a running
// harvest.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/engine"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Harvest is the part of the harvester the API exposes.
type Harvest interface {
	GetState() engine.State
	Stop()
	Stats() *engine.Stats
	Tracker() *engine.Tracker
}

// Status is the body of GET /api/status.
type Status struct {
	State     string           `json:"state"`
	StartedAt time.Time        `json:"started_at,omitzero"`
	Elapsed   string           `json:"elapsed,omitempty"`
	Processed int              `json:"processed"`
	Stats     map[string]int64 `json:"stats"`
}

// Server provides a REST API over a running harvest.
type Server struct {
	mux     *http.ServeMux
	port    int
	harvest Harvest
	logger  *slog.Logger
}

// NewServer creates a new API server for h.
func NewServer(port int, h Harvest, logger *slog.Logger) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		port:    port,
		harvest: h,
		logger:  logger.With("component", "api_server"),
	}

	s.registerRoutes()
	return s
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start starts the API server in the background. The caller shuts it down
// with Shutdown.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("API server starting", "addr", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return srv
}

// Shutdown stops srv, waiting up to timeout for open requests.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/processed", s.handleProcessed)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.harvest.Stats()
	status := Status{
		State:     s.harvest.GetState().String(),
		StartedAt: stats.StartTime,
		Processed: s.harvest.Tracker().Count(),
		Stats:     stats.Snapshot(),
	}
	if !stats.StartTime.IsZero() {
		status.Elapsed = time.Since(stats.StartTime).Round(time.Second).String()
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// handleProcessed lists processed voyage keys, optionally for one ship.
func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	ship := strings.TrimSpace(r.URL.Query().Get("ship"))

	keys := s.harvest.Tracker().Keys()
	if ship != "" {
		filtered := keys[:0]
		for _, k := range keys {
			if k.ShipName == ship {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}
	if keys == nil {
		keys = []types.VoyageKey{}
	}
	s.jsonResponse(w, http.StatusOK, keys)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.harvest.GetState() != engine.StateRunning {
		s.jsonResponse(w, http.StatusConflict, map[string]string{
			"error": "harvest is " + s.harvest.GetState().String(),
		})
		return
	}
	s.logger.Info("stop requested over API", "remote", r.RemoteAddr)
	s.harvest.Stop()
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
