package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache entry counts and remaining TTLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cache.New(cfg.Cache.Path, cache.WithTTLs(cache.TTLsFromConfig(cfg.Cache)))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(store.Stats())
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cache entries and remove the snapshot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cache.New(cfg.Cache.Path)
		if err := store.Clear(); err != nil {
			return err
		}
		zap.L().Info("cache cleared", zap.String("path", cfg.Cache.Path))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
