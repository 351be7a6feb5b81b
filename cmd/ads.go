package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adpulse/adpulse/internal/app"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/resilience"
)

var (
	adsDate    string
	adsRefresh bool
)

var adsCmd = &cobra.Command{
	Use:   "ads",
	Short: "Dump enriched ads for a date as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Shutdown(cmd.Context())

		date := adsDate
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		window := model.SingleDay(date)

		ads, err := resilience.DoVal(cmd.Context(), resilience.RetryConfig{MaxAttempts: 2}, "enriched ads",
			func(ctx context.Context) ([]model.EnrichedAd, error) {
				return a.EnrichedAds(ctx, window, adsRefresh)
			})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ads)
	},
}

func init() {
	adsCmd.Flags().StringVar(&adsDate, "date", "", "date (YYYY-MM-DD, default today)")
	adsCmd.Flags().BoolVar(&adsRefresh, "refresh", false, "bypass the response cache")
	rootCmd.AddCommand(adsCmd)
}
