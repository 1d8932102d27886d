// Package supervisor owns the set of active pipelines: it starts them
// as isolated goroutines, applies restart policy on failure, and
// coordinates graceful shutdown. It is the single writer of the
// authoritative per-pipeline state.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"eventforge/internal/config"
	"eventforge/internal/metrics"
	"eventforge/internal/pipeline"
)

// ErrRestartStorm marks a restart attempt rejected by the storm
// guard; the supervisor delays the restart instead of dropping it.
var ErrRestartStorm = errors.New("restart attempted before minimum inter-restart interval")

type entry struct {
	cfg         config.PipelineConfig
	exec        *pipeline.Executor
	state       pipeline.State
	restarts    int
	lastRestart time.Time
	stopReq     bool
	stopCh      chan struct{}
}

// Supervisor holds the pipeline registry. All mutation of an entry's
// authoritative state goes through the supervisor's lock.
type Supervisor struct {
	env     config.Env
	metrics *metrics.Metrics
	log     *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	order   []string

	wg sync.WaitGroup
}

// New creates an empty supervisor.
func New(env config.Env, m *metrics.Metrics, log *slog.Logger) *Supervisor {
	return &Supervisor{
		env:     env,
		metrics: m,
		log:     log,
		entries: make(map[string]*entry),
	}
}

// Load constructs every configured pipeline. Construction errors are
// surfaced synchronously and no pipeline starts.
func (s *Supervisor) Load(cfg *config.RuntimeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range cfg.Pipelines {
		pc := cfg.Pipelines[i]
		if _, ok := s.entries[pc.Name]; ok {
			return &config.ConfigError{Pipeline: pc.Name, Field: "name", Msg: "already loaded"}
		}
		exec, err := pipeline.New(pc, s.env, s.metrics, s.log)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", pc.Name, err)
		}
		e := &entry{cfg: pc, exec: exec, state: pipeline.StateCreated, stopCh: make(chan struct{})}
		exec.OnStateChange(func(st pipeline.State) { s.setState(pc.Name, st) })
		s.entries[pc.Name] = e
		s.order = append(s.order, pc.Name)
	}
	return nil
}

// StartAll launches every loaded pipeline as an isolated unit of
// execution. A failure in one never blocks or fails the others.
func (s *Supervisor) StartAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		e := s.entries[name]
		if e.state != pipeline.StateCreated {
			continue
		}
		s.wg.Add(1)
		go s.supervise(ctx, e)
	}
}

// supervise runs one pipeline to completion, applying restart policy
// across failures.
func (s *Supervisor) supervise(ctx context.Context, e *entry) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		stopped := e.stopReq
		s.mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}

		err := s.runOnce(ctx, e)
		if err == nil {
			return // ended in Stopped
		}

		s.mu.Lock()
		stopReq := e.stopReq
		restarts := e.restarts
		last := e.lastRestart
		s.mu.Unlock()
		if stopReq || ctx.Err() != nil {
			return
		}

		switch e.cfg.Restart.Policy {
		case "none":
			return
		case "limited":
			if restarts >= e.cfg.Restart.Max {
				s.log.Error("pipeline permanently failed, restart budget exhausted",
					"pipeline", e.cfg.Name, "restarts", restarts, "err", err)
				return
			}
		}

		delay := e.cfg.Restart.Backoff.Std()
		if !last.IsZero() {
			if since := time.Since(last); since+delay < e.cfg.Restart.MinInterval.Std() {
				s.log.Warn("restart throttled",
					"pipeline", e.cfg.Name, "err", ErrRestartStorm,
					"min_interval", e.cfg.Restart.MinInterval.Std())
				delay = e.cfg.Restart.MinInterval.Std() - since
			}
		}
		s.log.Info("restarting pipeline", "pipeline", e.cfg.Name,
			"attempt", restarts+1, "backoff", delay)
		if !s.waitRestart(ctx, e, delay) {
			return
		}

		s.mu.Lock()
		e.restarts++
		e.lastRestart = time.Now()
		s.mu.Unlock()
		s.metrics.Restarts.WithLabelValues(e.cfg.Name).Inc()
	}
}

// runOnce executes a single run, converting a plugin panic into a
// pipeline failure so it cannot take down the process.
func (s *Supervisor) runOnce(ctx context.Context, e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline %q panicked: %v", e.cfg.Name, r)
			s.log.Error("pipeline panic", "pipeline", e.cfg.Name, "panic", r)
		}
	}()
	return e.exec.Run(ctx)
}

// waitRestart sleeps the backoff, abandoning the restart if the
// supervisor or the pipeline is stopped meanwhile.
func (s *Supervisor) waitRestart(ctx context.Context, e *entry, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-e.stopCh:
		return false
	}
}

// Wait blocks until every started pipeline has finished.
func (s *Supervisor) Wait() { s.wg.Wait() }

// StopAll propagates stop to every pipeline and waits for all of them
// to finish, up to timeout; after that it forces drain=false.
func (s *Supervisor) StopAll(drain bool, timeout time.Duration) {
	s.mu.Lock()
	execs := make([]*pipeline.Executor, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		if !e.stopReq {
			e.stopReq = true
			close(e.stopCh)
		}
		execs = append(execs, e.exec)
	}
	s.mu.Unlock()

	for _, exec := range execs {
		exec.Stop(drain)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		s.log.Warn("graceful stop timed out, forcing shutdown", "timeout", timeout)
		for _, exec := range execs {
			exec.Stop(false)
		}
		<-done
	}

	for _, exec := range execs {
		if err := exec.Close(); err != nil {
			s.log.Warn("sink close failed", "pipeline", exec.Name(), "err", err)
		}
	}
}

// Stop stops a single pipeline by name.
func (s *Supervisor) Stop(name string, drain bool) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	if ok && !e.stopReq {
		e.stopReq = true
		close(e.stopCh)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown pipeline %q", name)
	}
	e.exec.Stop(drain)
	return nil
}

// Health returns snapshots for every pipeline, with the supervisor's
// authoritative state and restart count folded in.
func (s *Supervisor) Health() []pipeline.HealthReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	reports := make([]pipeline.HealthReport, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		rep := e.exec.Status()
		rep.State = e.state.String()
		rep.Restarts = e.restarts
		reports = append(reports, rep)
	}
	return reports
}

// SinkIDs returns the sink ids of one loaded pipeline, nil for an
// unknown name.
func (s *Supervisor) SinkIDs(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return nil
	}
	return e.exec.Dispatcher().SinkIDs()
}

// Pipelines returns the loaded configurations, sorted by name.
func (s *Supervisor) Pipelines() []config.PipelineConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfgs := make([]config.PipelineConfig, 0, len(s.entries))
	for _, e := range s.entries {
		cfgs = append(cfgs, e.cfg)
	}
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].Name < cfgs[j].Name })
	return cfgs
}

// Executor returns the executor for name, for the replay path.
func (s *Supervisor) Executor(name string) (*pipeline.Executor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, false
	}
	return e.exec, true
}

func (s *Supervisor) setState(name string, st pipeline.State) {
	s.mu.Lock()
	if e, ok := s.entries[name]; ok {
		e.state = st
	}
	s.mu.Unlock()
}
