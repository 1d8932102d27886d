package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"eventforge/internal/admin"
	"eventforge/internal/config"
	"eventforge/internal/logging"
	"eventforge/internal/metrics"
	"eventforge/internal/supervisor"
	"eventforge/internal/tui"
)

var (
	runConfigPath string
	runSchemaPath string
	runTUI        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured generation pipelines",
	Long:  "run starts every pipeline from the configuration file and supervises it until the tick streams end or a termination signal arrives.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()

		env, err := config.LoadEnv()
		if err != nil {
			return err
		}
		cfg, err := config.Load(runConfigPath, runSchemaPath)
		if err != nil {
			return err
		}

		m := metrics.New()
		sup := supervisor.New(env, m, log)
		if err := sup.Load(cfg); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), log))
		defer cancel()

		srv := admin.NewServer(sup, m)
		go func() {
			log.Info("admin server listening", "addr", env.AdminAddr)
			if err := srv.Start(ctx, env.AdminAddr); err != nil && err != http.ErrServerClosed {
				log.Error("admin server failed", "err", err)
			}
		}()

		sup.StartAll(ctx)
		allDone := make(chan struct{})
		go func() {
			sup.Wait()
			close(allDone)
		}()

		sigs := make(chan os.Signal, 2)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		if runTUI {
			go func() {
				select {
				case <-sigs:
				case <-allDone:
				}
				cancel()
			}()
			if err := tui.Run(ctx, sup, cancel); err != nil {
				log.Error("dashboard failed", "err", err)
			}
		} else {
			select {
			case <-sigs:
				log.Info("termination signal received, draining pipelines")
				go func() {
					<-sigs
					log.Warn("second signal received, forcing immediate stop")
					sup.StopAll(false, 2*time.Second)
				}()
			case <-allDone:
				log.Info("all pipelines finished")
			}
		}

		sup.StopAll(true, env.ShutdownTimeout)
		cancel()
		log.Info("event generation stopped")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "config/pipelines.yaml", "Path to pipelines configuration YAML")
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "schemas/pipelines.cue", "Path to CUE schema file (empty to skip)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show a live terminal dashboard instead of log output")
}
