package supervisor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"eventforge/internal/config"
	"eventforge/internal/metrics"
	"eventforge/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// healthyPipeline finishes its finite stream and stops on its own.
func healthyPipeline(name, outPath string, count int) config.PipelineConfig {
	return config.PipelineConfig{
		Name:    name,
		Input:   config.InputConfig{Kind: "interval", Interval: config.Duration(time.Millisecond), Count: count},
		Render:  config.RenderConfig{Kind: "json"},
		Outputs: []config.OutputConfig{{Kind: "file", Path: outPath}},
		Pacing:  config.PacingConfig{TimeMode: "sample"},
	}
}

// brokenPipeline fails every render and trips its breaker quickly.
func brokenPipeline(name, outPath string) config.PipelineConfig {
	return config.PipelineConfig{
		Name:    name,
		Input:   config.InputConfig{Kind: "interval", Interval: config.Duration(time.Millisecond)},
		Render:  config.RenderConfig{Kind: "template", Template: "{{ .Nope }}"},
		Outputs: []config.OutputConfig{{Kind: "file", Path: outPath}},
		Pacing:  config.PacingConfig{TimeMode: "sample"},
		Breaker: config.BreakerConfig{Threshold: 2},
	}
}

func loadSupervisor(t *testing.T, pipelines ...config.PipelineConfig) *Supervisor {
	t.Helper()
	cfg := &config.RuntimeConfig{Pipelines: pipelines}
	cfg.ApplyDefaults()
	sup := New(config.Env{}, metrics.New(), testLogger())
	if err := sup.Load(cfg); err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	return sup
}

func healthByName(sup *Supervisor) map[string]pipeline.HealthReport {
	out := map[string]pipeline.HealthReport{}
	for _, rep := range sup.Health() {
		out[rep.PipelineID] = rep
	}
	return out
}

func TestSupervisor_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	sup := loadSupervisor(t,
		healthyPipeline("healthy", filepath.Join(dir, "h.jsonl"), 5),
		brokenPipeline("broken", filepath.Join(dir, "b.jsonl")),
	)
	defer sup.StopAll(true, 2*time.Second)

	sup.StartAll(context.Background())
	sup.Wait()

	health := healthByName(sup)
	if health["healthy"].State != "stopped" || health["healthy"].EventsEmitted != 5 {
		t.Errorf("Healthy pipeline disturbed by failing sibling: %+v", health["healthy"])
	}
	if health["broken"].State != "failed" {
		t.Errorf("Expected broken pipeline to fail, got %+v", health["broken"])
	}
	if health["broken"].LastError == "" {
		t.Error("Expected last error to be reported for failed pipeline")
	}
}

func TestSupervisor_LimitedRestartExhaustsBudget(t *testing.T) {
	dir := t.TempDir()
	pc := brokenPipeline("flappy", filepath.Join(dir, "f.jsonl"))
	pc.Restart = config.RestartConfig{
		Policy:      "limited",
		Max:         2,
		Backoff:     config.Duration(5 * time.Millisecond),
		MinInterval: config.Duration(time.Millisecond),
	}
	sup := loadSupervisor(t, pc)
	defer sup.StopAll(true, 2*time.Second)

	sup.StartAll(context.Background())
	sup.Wait()

	health := healthByName(sup)["flappy"]
	if health.Restarts != 2 {
		t.Errorf("Expected exactly 2 restarts before giving up, got %d", health.Restarts)
	}
	if health.State != "failed" {
		t.Errorf("Expected permanent failed state, got %q", health.State)
	}
}

func TestSupervisor_AlwaysRestartUntilStopped(t *testing.T) {
	dir := t.TempDir()
	pc := brokenPipeline("phoenix", filepath.Join(dir, "p.jsonl"))
	pc.Restart = config.RestartConfig{
		Policy:      "always",
		Backoff:     config.Duration(2 * time.Millisecond),
		MinInterval: config.Duration(time.Millisecond),
	}
	sup := loadSupervisor(t, pc)

	sup.StartAll(context.Background())
	time.Sleep(100 * time.Millisecond)
	sup.StopAll(true, 2*time.Second)

	if health := healthByName(sup)["phoenix"]; health.Restarts == 0 {
		t.Errorf("Expected restarts under always policy, got %+v", health)
	}
}

func TestSupervisor_StopAllDrains(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "s.jsonl")
	pc := healthyPipeline("streamer", out, 0)
	pc.Pacing = config.PacingConfig{TimeMode: "live"}
	pc.Input.Interval = config.Duration(2 * time.Millisecond)
	sup := loadSupervisor(t, pc)

	sup.StartAll(context.Background())
	time.Sleep(50 * time.Millisecond)
	sup.StopAll(true, 2*time.Second)

	if health := healthByName(sup)["streamer"]; health.State != "stopped" {
		t.Errorf("Expected stopped after StopAll, got %q", health.State)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read sink output: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected drained events in sink output")
	}
}

func TestSupervisor_StopByName(t *testing.T) {
	dir := t.TempDir()
	pc := healthyPipeline("solo", filepath.Join(dir, "solo.jsonl"), 0)
	sup := loadSupervisor(t, pc)
	defer sup.StopAll(true, 2*time.Second)

	if err := sup.Stop("ghost", true); err == nil {
		t.Error("Expected error for unknown pipeline name")
	}

	sup.StartAll(context.Background())
	if err := sup.Stop("solo", true); err != nil {
		t.Fatalf("Stop() returned error: %v", err)
	}
	sup.Wait()
	if health := healthByName(sup)["solo"]; health.State != "stopped" {
		t.Errorf("Expected stopped, got %q", health.State)
	}
}

func TestSupervisor_StopBeforeStartIsHonored(t *testing.T) {
	dir := t.TempDir()
	pc := healthyPipeline("eager", filepath.Join(dir, "e.jsonl"), 0)
	sup := loadSupervisor(t, pc)
	defer sup.StopAll(true, time.Second)

	if err := sup.Stop("eager", true); err != nil {
		t.Fatalf("Stop() returned error: %v", err)
	}
	sup.StartAll(context.Background())

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait blocked on a pipeline that was stopped before start")
	}
	if health := healthByName(sup)["eager"]; health.EventsEmitted != 0 {
		t.Errorf("Expected no events from a never-started pipeline, got %d", health.EventsEmitted)
	}
}

func TestSupervisor_LoadRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.RuntimeConfig{Pipelines: []config.PipelineConfig{
		healthyPipeline("twin", filepath.Join(dir, "t1.jsonl"), 1),
		healthyPipeline("twin", filepath.Join(dir, "t2.jsonl"), 1),
	}}
	cfg.ApplyDefaults()
	sup := New(config.Env{}, metrics.New(), testLogger())
	err := sup.Load(cfg)
	if err == nil {
		t.Fatal("Expected error for duplicate pipeline name")
	}
	sup.StopAll(true, time.Second)
}

func TestSupervisor_HealthBeforeStart(t *testing.T) {
	dir := t.TempDir()
	sup := loadSupervisor(t, healthyPipeline("idle", filepath.Join(dir, "i.jsonl"), 1))
	defer sup.StopAll(true, time.Second)

	health := healthByName(sup)["idle"]
	if health.State != "created" {
		t.Errorf("Expected created before start, got %q", health.State)
	}
	if len(sup.Pipelines()) != 1 {
		t.Errorf("Expected 1 loaded pipeline")
	}
}
