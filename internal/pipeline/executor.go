// Package pipeline drives one generate→render→deliver loop: it paces
// scheduled ticks against a clock, renders them in sequence order and
// hands rendered events to the dispatcher under a bounded in-flight
// window.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"eventforge/internal/config"
	"eventforge/internal/dispatch"
	"eventforge/internal/logging"
	"eventforge/internal/metrics"
	"eventforge/internal/render"
	"eventforge/internal/schedule"
	"eventforge/internal/sink"
)

// ErrAlreadyRunning is returned by Run when a run is in progress.
var ErrAlreadyRunning = errors.New("pipeline is already running")

// Executor runs one configured pipeline. It is reusable across runs:
// every Run resets the time source and restarts sequence numbering at
// 0, while the sink connections persist. A stop request is sticky: if
// Stop lands before Run, the run never starts.
type Executor struct {
	cfg        config.PipelineConfig
	source     *schedule.Source
	renderer   render.Renderer
	dispatcher *dispatch.Dispatcher
	clockFn    func() Clock
	metrics    *metrics.Metrics
	log        *slog.Logger

	state   atomic.Int32
	onState func(State)

	seq     atomic.Uint64
	emitted atomic.Uint64
	failed  atomic.Uint64
	skipped atomic.Uint64
	lagNS   atomic.Int64

	slots    chan struct{}
	inflight sync.WaitGroup

	mu             sync.Mutex
	runID          string
	running        bool
	stopped        bool
	drain          bool
	loopCancel     context.CancelFunc
	dispatchCancel context.CancelFunc
	lastErr        error
}

// New builds the executor and its scoped time source, renderer and
// dispatcher from configuration. Construction fails synchronously
// with a config error before the pipeline ever reaches Starting.
func New(cfg config.PipelineConfig, env config.Env, m *metrics.Metrics, log *slog.Logger) (*Executor, error) {
	pattern, err := schedule.New(cfg.Input)
	if err != nil {
		return nil, err
	}
	renderer, err := render.New(cfg.Render)
	if err != nil {
		return nil, err
	}
	entries, err := sink.Build(cfg.Outputs, env)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		cfg:        cfg,
		source:     schedule.NewSource(pattern),
		renderer:   renderer,
		dispatcher: dispatch.New(entries),
		clockFn:    func() Clock { return NewClock(cfg.Pacing) },
		metrics:    m,
		log:        log.With("pipeline", cfg.Name),
		slots:      make(chan struct{}, cfg.Window),
	}
	e.state.Store(int32(StateCreated))
	return e, nil
}

// OnStateChange registers the supervisor's transition hook. The hook
// is invoked synchronously from the run loop.
func (e *Executor) OnStateChange(fn func(State)) { e.onState = fn }

// Name returns the pipeline name.
func (e *Executor) Name() string { return e.cfg.Name }

// Dispatcher exposes the pipeline's dispatcher for the replay path.
func (e *Executor) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// State returns the current lifecycle state.
func (e *Executor) State() State { return State(e.state.Load()) }

// Run executes one pipeline run until the tick stream ends, Stop is
// called or the pipeline fails. A non-nil error means the run ended
// in Failed; nil means it ended in Stopped.
func (e *Executor) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	if e.stopped {
		// Stop landed before the run started.
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.drain = true
	e.runID = uuid.NewString()
	e.mu.Unlock()

	e.transition(StateStarting)
	e.source.Reset()
	e.seq.Store(0)
	e.emitted.Store(0)
	e.failed.Store(0)
	e.skipped.Store(0)
	e.lagNS.Store(0)
	clock := e.clockFn()
	brk := newBreaker(e.cfg.Breaker)
	rctx := render.Context{
		PipelineID: e.cfg.Name,
		RunID:      e.currentRunID(),
		Fields:     e.cfg.Render.Fields,
	}

	loopCtx, loopCancel := context.WithCancel(ctx)
	// Deliveries outlive the loop so a drain stop can let them finish.
	dispatchCtx, dispatchCancel := context.WithCancel(logging.NewContext(context.Background(), e.log))
	e.mu.Lock()
	e.loopCancel = loopCancel
	e.dispatchCancel = dispatchCancel
	e.mu.Unlock()
	defer loopCancel()
	defer dispatchCancel()

	e.transition(StateRunning)
	e.log.Info("pipeline started", "run_id", rctx.RunID, "window", e.cfg.Window,
		"time_mode", e.cfg.Pacing.TimeMode, "speed", e.cfg.Pacing.Speed)

	runErr := e.loop(loopCtx, dispatchCtx, clock, brk, rctx)

	e.mu.Lock()
	drain := e.drain
	e.running = false
	e.mu.Unlock()

	if runErr != nil {
		dispatchCancel()
		e.inflight.Wait()
		e.setLastErr(runErr)
		e.transition(StateFailed)
		e.log.Error("pipeline failed", "run_id", rctx.RunID, "err", runErr)
		return runErr
	}

	e.transition(StateStopping)
	if drain {
		if !waitTimeout(&e.inflight, e.cfg.DrainTimeout.Std()) {
			e.log.Warn("drain timed out, discarding outstanding deliveries",
				"timeout", e.cfg.DrainTimeout)
			dispatchCancel()
			e.inflight.Wait()
		}
	} else {
		dispatchCancel()
		e.inflight.Wait()
	}
	e.transition(StateStopped)
	e.log.Info("pipeline stopped", "run_id", rctx.RunID,
		"emitted", e.emitted.Load(), "failed", e.failed.Load(), "skipped", e.skipped.Load())
	return nil
}

// loop paces ticks until end-of-stream, cancellation or failure.
func (e *Executor) loop(loopCtx, dispatchCtx context.Context, clock Clock, brk *breaker, rctx render.Context) error {
	dropMode := e.cfg.Pacing.LagPolicy == "drop"
	for {
		if loopCtx.Err() != nil {
			return nil
		}
		tick, err := e.source.Next()
		if errors.Is(err, schedule.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("time source: %w", err)
		}
		e.seq.Store(tick.Sequence)

		if overdue := clock.Now().Sub(tick.Timestamp); overdue > 0 {
			e.observeLag(overdue)
			if dropMode && overdue > e.cfg.Pacing.LagThreshold.Std() {
				e.skipped.Add(1)
				e.metrics.EventsSkipped.WithLabelValues(e.cfg.Name).Inc()
				continue
			}
			// catch-up: emit immediately
		} else {
			if err := clock.WaitUntil(loopCtx, tick.Timestamp); err != nil {
				return nil
			}
			e.observeLag(0)
		}

		ev, err := e.renderer.Render(tick, rctx)
		if err != nil {
			e.failed.Add(1)
			e.metrics.EventsFailed.WithLabelValues(e.cfg.Name).Inc()
			e.setLastErr(err)
			e.log.Warn("render failed", "sequence", tick.Sequence, "err", err)
			if brk.fail(time.Now()) {
				return fmt.Errorf("breaker tripped after %d consecutive render failures: %w", brk.streak(), err)
			}
			if brk.streak() >= e.cfg.Breaker.Warn {
				e.transition(StateDegraded)
			}
			continue
		}
		brk.ok()
		if e.State() == StateDegraded {
			e.transition(StateRunning)
		}

		if !e.acquireSlot(loopCtx) {
			return nil
		}
		e.inflight.Add(1)
		e.metrics.InFlight.WithLabelValues(e.cfg.Name).Inc()
		e.emitted.Add(1)
		e.metrics.EventsEmitted.WithLabelValues(e.cfg.Name).Inc()
		done := e.dispatcher.Submit(dispatchCtx, ev)
		go e.collectOutcomes(done)
	}
}

// acquireSlot blocks until an in-flight slot frees up. A saturated
// window marks the pipeline Degraded while it waits.
func (e *Executor) acquireSlot(ctx context.Context) bool {
	select {
	case e.slots <- struct{}{}:
		return true
	default:
	}
	e.transition(StateDegraded)
	select {
	case e.slots <- struct{}{}:
		e.transition(StateRunning)
		return true
	case <-ctx.Done():
		return false
	}
}

// collectOutcomes waits for the aggregated terminal outcome of one
// event and releases its in-flight slot.
func (e *Executor) collectOutcomes(done <-chan []dispatch.Outcome) {
	outs := <-done
	for _, o := range outs {
		result := "success"
		if !o.Success {
			result = "failure"
			e.failed.Add(1)
			e.metrics.EventsFailed.WithLabelValues(e.cfg.Name).Inc()
			e.setLastErr(o.Err)
		}
		e.metrics.Deliveries.WithLabelValues(e.cfg.Name, o.SinkID, result).Inc()
	}
	<-e.slots
	e.metrics.InFlight.WithLabelValues(e.cfg.Name).Dec()
	e.inflight.Done()
}

// Stop requests the end of the current run. With drain=true the run
// waits for in-flight deliveries (bounded by the drain timeout);
// drain=false cancels them immediately. A second drain stop is a
// no-op; a later drain=false escalates a pending drain to a forced
// cancellation.
func (e *Executor) Stop(drain bool) {
	e.mu.Lock()
	if e.stopped {
		dispatchCancel := e.dispatchCancel
		e.mu.Unlock()
		if !drain && dispatchCancel != nil {
			dispatchCancel()
		}
		return
	}
	e.stopped = true
	e.drain = drain
	loopCancel := e.loopCancel
	dispatchCancel := e.dispatchCancel
	e.mu.Unlock()

	if loopCancel != nil {
		loopCancel()
	}
	if !drain && dispatchCancel != nil {
		dispatchCancel()
	}
}

// Close releases the pipeline's sink connections.
func (e *Executor) Close() error { return e.dispatcher.Close() }

// Status returns an eventually consistent health snapshot.
func (e *Executor) Status() HealthReport {
	e.mu.Lock()
	runID := e.runID
	lastErr := ""
	if e.lastErr != nil {
		lastErr = e.lastErr.Error()
	}
	e.mu.Unlock()
	return HealthReport{
		PipelineID:    e.cfg.Name,
		RunID:         runID,
		State:         e.State().String(),
		Sequence:      e.seq.Load(),
		EventsEmitted: e.emitted.Load(),
		EventsFailed:  e.failed.Load(),
		EventsSkipped: e.skipped.Load(),
		Lag:           time.Duration(e.lagNS.Load()),
		LastError:     lastErr,
	}
}

func (e *Executor) transition(to State) {
	from := State(e.state.Load())
	if from == to || !canTransition(from, to) {
		return
	}
	e.state.Store(int32(to))
	e.log.Debug("state transition", "from", from.String(), "to", to.String())
	if e.onState != nil {
		e.onState(to)
	}
}

func (e *Executor) observeLag(d time.Duration) {
	e.lagNS.Store(int64(d))
	e.metrics.Lag.WithLabelValues(e.cfg.Name).Set(d.Seconds())
}

func (e *Executor) setLastErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

func (e *Executor) currentRunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// waitTimeout waits for wg up to d; it reports whether the wait
// completed in time.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
