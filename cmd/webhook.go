package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/app"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/store"
	"github.com/adpulse/adpulse/internal/webhook"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Start the order-event webhook receiver",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Webhook.Secret == "" {
			return eris.New("config: webhook.secret is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		spend := func(ctx context.Context, window model.DateRange) float64 {
			return a.AccountSpend(ctx, window, false)
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Webhook.Port),
			Handler: webhook.New(cfg.Webhook.Secret, st, spend).Router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down webhook receiver")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			a.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting webhook receiver", zap.Int("port", cfg.Webhook.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "webhook listen")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd)
}
