package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "adpulse",
	Short: "Ads performance dashboard backend",
	Long:  "Pulls advertising performance data from the Meta Marketing API, enriches it with derived metrics and performance scores, caches responses, and serves a dashboard API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
