// Package admin serves the runtime's control and observability
// endpoints: health snapshots, Prometheus metrics and per-pipeline
// stop control.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventforge/internal/metrics"
	"eventforge/internal/supervisor"
)

// Server exposes the supervisor over HTTP.
type Server struct {
	sup *supervisor.Supervisor
	mux *http.ServeMux
}

// NewServer wires the routes for the given supervisor.
func NewServer(sup *supervisor.Supervisor, m *metrics.Metrics) *Server {
	s := &Server{sup: sup, mux: http.NewServeMux()}
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/pipelines", s.handlePipelines)
	s.mux.HandleFunc("/pipelines/stop", s.handleStop)
	s.mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}

// Handler returns the route multiplexer, for tests.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.sup.Health())
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	type summary struct {
		Name    string   `json:"name"`
		Input   string   `json:"input"`
		Render  string   `json:"render"`
		Outputs []string `json:"outputs"`
		Restart string   `json:"restart"`
	}
	cfgs := s.sup.Pipelines()
	out := make([]summary, len(cfgs))
	for i, c := range cfgs {
		out[i] = summary{
			Name:    c.Name,
			Input:   c.Input.Kind,
			Render:  c.Render.Kind,
			Outputs: s.sup.SinkIDs(c.Name),
			Restart: c.Restart.Policy,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	drain := true
	if v := r.URL.Query().Get("drain"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid drain value", http.StatusBadRequest)
			return
		}
		drain = b
	}
	if err := s.sup.Stop(name, drain); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
