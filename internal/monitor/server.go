// Package monitor exposes read-only HTTP endpoints for pipeline health,
// aggregate statistics, dead letter inspection, and Prometheus metrics.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// defaultFailuresLimit caps a /failures page when the caller sends no limit.
const defaultFailuresLimit = 50

// defaultBacklogLimit caps a /backlog page when the caller sends no limit.
const defaultBacklogLimit = 100

// Server serves the monitoring endpoints backed by the pipeline store.
type Server struct {
	store  service.Store
	server *http.Server
}

// NewServer creates a monitoring server listening on addr.
func NewServer(store service.Store, addr string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		store: store,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/failures", s.handleFailures)
	mux.HandleFunc("/backlog", s.handleBacklog)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Stats roundtrips the store, so it doubles as the reachability probe.
	if _, err := s.store.Stats(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type failuresResponse struct {
	Count  int                     `json:"count"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Items  []model.DeadLetterEntry `json:"items"`
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	status := model.ReplayStatus(strings.ToUpper(r.URL.Query().Get("status")))
	switch status {
	case "", model.ReplayPending, model.ReplayReplayed, model.ReplayAbandoned:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unknown replay status %q", status),
		})
		return
	}

	limit := queryInt(r, "limit", defaultFailuresLimit)
	offset := queryInt(r, "offset", 0)

	items, err := s.store.ListDeadLetters(r.Context(), status, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []model.DeadLetterEntry{}
	}

	writeJSON(w, http.StatusOK, failuresResponse{
		Count:  len(items),
		Limit:  limit,
		Offset: offset,
		Items:  items,
	})
}

type backlogResponse struct {
	Count int               `json:"count"`
	Items []model.Discovery `json:"items"`
}

func (s *Server) handleBacklog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultBacklogLimit)

	items, err := s.store.Backlog(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []model.Discovery{}
	}

	writeJSON(w, http.StatusOK, backlogResponse{Count: len(items), Items: items})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
