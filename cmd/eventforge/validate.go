package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eventforge/internal/config"
)

var (
	validateConfigPath string
	validateSchemaPath string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipelines configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(validateConfigPath, validateSchemaPath)
		if err != nil {
			return err
		}
		fmt.Printf("configuration ok: %d pipeline(s)\n", len(cfg.Pipelines))
		for _, p := range cfg.Pipelines {
			fmt.Printf("  %s: input=%s render=%s outputs=%d restart=%s\n",
				p.Name, p.Input.Kind, p.Render.Kind, len(p.Outputs), p.Restart.Policy)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "config/pipelines.yaml", "Path to pipelines configuration YAML")
	validateCmd.Flags().StringVar(&validateSchemaPath, "schema", "schemas/pipelines.cue", "Path to CUE schema file (empty to skip)")
}
