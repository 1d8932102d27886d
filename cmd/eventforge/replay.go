package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eventforge/internal/config"
	"eventforge/internal/logging"
	"eventforge/internal/metrics"
	"eventforge/internal/pipeline"
)

var (
	replayConfigPath string
	replaySchemaPath string
	replayPipeline   string
	replaySpeed      float64
	replayBatch      int
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Replay a captured event log to a pipeline's sinks",
	Long:  "replay re-emits events recorded by the file sink, preserving inter-event timing scaled by --speed (0 replays without delay).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()

		env, err := config.LoadEnv()
		if err != nil {
			return err
		}
		cfg, err := config.Load(replayConfigPath, replaySchemaPath)
		if err != nil {
			return err
		}

		pc := cfg.Pipelines[0]
		if replayPipeline != "" {
			found := false
			for _, p := range cfg.Pipelines {
				if p.Name == replayPipeline {
					pc = p
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("unknown pipeline %q", replayPipeline)
			}
		}

		exec, err := pipeline.New(pc, env, metrics.New(), log)
		if err != nil {
			return err
		}
		defer exec.Close()

		ctx, cancel := signal.NotifyContext(
			logging.NewContext(context.Background(), log),
			syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		log.Info("replaying events", "file", args[0], "pipeline", pc.Name, "speed", replaySpeed)
		return pipeline.ReplayLogFile(ctx, args[0], exec.Dispatcher(), replaySpeed, replayBatch)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayConfigPath, "config", "config/pipelines.yaml", "Path to pipelines configuration YAML")
	replayCmd.Flags().StringVar(&replaySchemaPath, "schema", "schemas/pipelines.cue", "Path to CUE schema file (empty to skip)")
	replayCmd.Flags().StringVar(&replayPipeline, "pipeline", "", "Pipeline whose sinks receive the replay (default: first)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1, "Playback speed multiplier (0 = as fast as possible)")
	replayCmd.Flags().IntVar(&replayBatch, "batch", 1, "Events per sink write")
}
