// Package app wires the pipeline together: cache, throttled upstream
// client, insight resolver, enrichment, and scoring behind one service
// object constructed at process startup and shut down explicitly.
package app

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/cache"
	"github.com/adpulse/adpulse/internal/config"
	"github.com/adpulse/adpulse/internal/enrich"
	"github.com/adpulse/adpulse/internal/insights"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/scorer"
	"github.com/adpulse/adpulse/internal/upstream"
	"github.com/adpulse/adpulse/pkg/meta"
)

// App holds the process-wide pipeline state.
type App struct {
	Cfg      *config.Config
	Cache    *cache.Store
	Fetcher  *upstream.Fetcher
	Resolver *insights.Resolver
	Weights  scorer.Weights
}

// New validates configuration and constructs the pipeline. Missing
// credentials fail here, before anything serves.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := cache.New(cfg.Cache.Path,
		cache.WithTTLs(cache.TTLsFromConfig(cfg.Cache)),
		cache.WithSnapshotEvery(cfg.Cache.SnapshotEvery),
	)

	client := meta.NewClient(cfg.Meta.AccessToken,
		meta.WithBaseURL(cfg.Meta.BaseURL),
		meta.WithVersion(cfg.Meta.APIVersion),
		meta.WithTimeout(time.Duration(cfg.Meta.TimeoutSecs)*time.Second),
	)

	fetcher := upstream.NewFetcher(client, store,
		time.Duration(cfg.Throttle.RequestDelayMS)*time.Millisecond,
		time.Duration(cfg.Throttle.RateLimitBackoffSecs)*time.Second,
	)

	resolver := insights.NewResolver(fetcher, cfg.Meta.AccountID,
		insights.WithBatchSize(cfg.Insights.BatchSize),
		insights.WithStagger(time.Duration(cfg.Insights.StaggerMS)*time.Millisecond),
		insights.WithDefaultPurchaseValue(cfg.Insights.DefaultPurchaseValue),
	)

	weights, err := scorer.LoadWeights(cfg.Scorer.WeightsPath)
	if err != nil {
		return nil, eris.Wrap(err, "app: load score weights")
	}

	return &App{
		Cfg:      cfg,
		Cache:    store,
		Fetcher:  fetcher,
		Resolver: resolver,
		Weights:  weights,
	}, nil
}

// Shutdown flushes the cache snapshot. Call on process exit.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.Cache.Flush(); err != nil {
		zap.L().Warn("app: cache flush on shutdown failed", zap.Error(err))
		return
	}
	zap.L().Info("app: cache flushed")
}

func (a *App) enrichOne(ai insights.AdInsight) model.EnrichedAd {
	out := model.EnrichedAd{Ad: ai.Ad}
	if ai.Raw == nil && ai.Purchases == 0 {
		// Total resolution failure: insights absent, distinct from zeros.
		return out
	}
	m := enrich.Metrics(ai.Raw, ai.Purchases, ai.PurchaseValue, ai.Source)
	out.Insights = &m
	out.PerformanceScore = scorer.Score(m, a.Weights)
	return out
}

// EnrichedAds returns every ad with metrics and performance score for the
// window. Ads whose resolution failed entirely carry nil insights.
func (a *App) EnrichedAds(ctx context.Context, window model.DateRange, bypass bool) ([]model.EnrichedAd, error) {
	ais, err := a.Resolver.AdsWithInsights(ctx, window, bypass)
	if err != nil {
		return nil, err
	}
	out := make([]model.EnrichedAd, len(ais))
	for i, ai := range ais {
		out[i] = a.enrichOne(ai)
	}
	return out, nil
}

// AdInsights returns the enriched metrics for one ad.
func (a *App) AdInsights(ctx context.Context, adID string, window model.DateRange, bypass bool) model.EnrichedAd {
	return a.enrichOne(a.Resolver.AdInsights(ctx, adID, window, bypass))
}

// Campaigns lists campaigns with budgets normalized to major units.
func (a *App) Campaigns(ctx context.Context, bypass bool) ([]model.Campaign, error) {
	cs, err := a.Resolver.Campaigns(ctx, bypass)
	if err != nil {
		return nil, err
	}
	for i := range cs {
		cs[i].DailyBudgetUSD = enrich.MonetaryValue(enrich.KindCampaigns, "daily_budget", cs[i].DailyBudget)
		cs[i].LifetimeBudgetUSD = enrich.MonetaryValue(enrich.KindCampaigns, "lifetime_budget", cs[i].LifetimeBudget)
	}
	return cs, nil
}

// Adsets lists ad sets with budgets normalized to major units.
func (a *App) Adsets(ctx context.Context, bypass bool) ([]model.Adset, error) {
	as, err := a.Resolver.Adsets(ctx, bypass)
	if err != nil {
		return nil, err
	}
	for i := range as {
		as[i].DailyBudgetUSD = enrich.MonetaryValue(enrich.KindAdsets, "daily_budget", as[i].DailyBudget)
		as[i].LifetimeBudgetUSD = enrich.MonetaryValue(enrich.KindAdsets, "lifetime_budget", as[i].LifetimeBudget)
	}
	return as, nil
}

// Account returns the account summary with lifetime spend normalized.
func (a *App) Account(ctx context.Context, bypass bool) (*model.Account, error) {
	acct, err := a.Resolver.Account(ctx, bypass)
	if err != nil {
		return nil, err
	}
	acct.AmountSpentUSD = enrich.MonetaryValue(enrich.KindAccount, "amount_spent", acct.AmountSpent)
	return acct, nil
}

// AccountSpend returns the account's spend over the window.
func (a *App) AccountSpend(ctx context.Context, window model.DateRange, bypass bool) float64 {
	return a.Resolver.AccountSpend(ctx, window, bypass)
}
