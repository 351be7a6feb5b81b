package insights

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adpulse/adpulse/internal/cache"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/upstream"
	"github.com/adpulse/adpulse/pkg/meta"
)

const (
	adFields       = "id,name,status,effective_status,adset_id,campaign_id,creative{id,title,body,thumbnail_url}"
	campaignFields = "id,name,status,effective_status,objective,daily_budget,lifetime_budget"
	adsetFields    = "id,name,status,effective_status,campaign_id,daily_budget,lifetime_budget"
	accountFields  = "id,name,currency,account_status,amount_spent"

	listLimit = "500"
)

// Resolver walks the approach list against the upstream client to obtain
// date-scoped insights per entity, falling back to proportional allocation
// of account-level conversions when no approach matches.
type Resolver struct {
	fetch      *upstream.Fetcher
	accountID  string
	approaches []Approach

	batchSize            int
	stagger              time.Duration
	defaultPurchaseValue float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithApproaches overrides the approach list.
func WithApproaches(aps []Approach) Option {
	return func(r *Resolver) { r.approaches = aps }
}

// WithBatchSize bounds per-entity fetch parallelism.
func WithBatchSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithStagger sets the delay between batch-member starts.
func WithStagger(d time.Duration) Option {
	return func(r *Resolver) { r.stagger = d }
}

// WithDefaultPurchaseValue sets the per-unit value assigned when the account
// reports conversions with zero value.
func WithDefaultPurchaseValue(v float64) Option {
	return func(r *Resolver) {
		if v > 0 {
			r.defaultPurchaseValue = v
		}
	}
}

// NewResolver creates a Resolver for the given ad account.
func NewResolver(fetch *upstream.Fetcher, accountID string, opts ...Option) *Resolver {
	r := &Resolver{
		fetch:                fetch,
		accountID:            accountID,
		approaches:           DefaultApproaches(),
		batchSize:            3,
		stagger:              150 * time.Millisecond,
		defaultPurchaseValue: 50,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) accountPath() string {
	return "act_" + r.accountID
}

// windowCategory picks the cache TTL class: "today" aggregates churn and get
// the short TTL.
func windowCategory(window model.DateRange) cache.Category {
	if window.IsSingleDay() && window.Since == time.Now().Format("2006-01-02") {
		return cache.CategoryToday
	}
	return cache.CategoryAdInsights
}

// resolved is the outcome of walking the approach list for one entity.
// Matched carries date-scoped data; Loose is the first record any approach
// returned regardless of its reported range, kept as a spend signal for the
// fallback allocator.
type resolved struct {
	Matched  *model.RawInsight
	Approach string
	Loose    *model.RawInsight
}

func (r *Resolver) insightsFor(ctx context.Context, path string, window model.DateRange, bypass bool) resolved {
	var out resolved
	cat := windowCategory(window)

	for _, ap := range r.approaches {
		params, ok := ap.Params(window)
		if !ok {
			continue
		}

		raw, err := r.fetch.Fetch(ctx, path+"/insights", params, cat, bypass)
		if err != nil {
			// Hard failure for this variant only; the next one may succeed.
			zap.L().Warn("insights: approach failed",
				zap.String("entity", path),
				zap.String("approach", ap.Name),
				zap.Error(err),
			)
			continue
		}

		var env meta.ListEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			zap.L().Warn("insights: malformed response",
				zap.String("entity", path),
				zap.String("approach", ap.Name),
				zap.Error(err),
			)
			continue
		}

		var recs []model.RawInsight
		if len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &recs)
		}
		if len(recs) == 0 {
			continue
		}

		// Zero-valued metrics are a legitimate state; structure is enough.
		rec := recs[0]
		if out.Loose == nil {
			c := rec
			out.Loose = &c
		}
		if !matchesWindow(rec.DateStart, rec.DateStop, window) {
			continue
		}

		c := rec
		out.Matched = &c
		out.Approach = ap.Name
		zap.L().Debug("insights: approach matched",
			zap.String("entity", path),
			zap.String("approach", ap.Name),
		)
		return out
	}

	return out
}

// AdInsight joins an ad with its resolved insight and deduplicated purchase
// totals. Raw is nil when resolution failed entirely for the ad.
type AdInsight struct {
	Ad            model.Ad
	Raw           *model.RawInsight
	Approach      string
	Purchases     float64
	PurchaseValue float64
	Source        string
}

// ListAds fetches the account's ads, dropping rows that look like ad sets or
// campaigns rather than true ads.
func (r *Resolver) ListAds(ctx context.Context, bypass bool) ([]model.Ad, error) {
	params := url.Values{}
	params.Set("fields", adFields)
	params.Set("limit", listLimit)

	raw, err := r.fetch.Fetch(ctx, r.accountPath()+"/ads", params, cache.CategoryAdList, bypass)
	if err != nil {
		return nil, eris.Wrap(err, "insights: list ads")
	}

	var env meta.ListEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, eris.Wrap(err, "insights: decode ads")
	}
	var ads []model.Ad
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &ads); err != nil {
			return nil, eris.Wrap(err, "insights: decode ads")
		}
	}

	filtered := ads[:0]
	for _, ad := range ads {
		if IsLikelyGroupRow(ad.Name) {
			zap.L().Debug("insights: dropping group-like row", zap.String("name", ad.Name))
			continue
		}
		filtered = append(filtered, ad)
	}
	return filtered, nil
}

// AdsWithInsights resolves insights for every ad in the account over the
// window. Per-ad fetches run with bounded parallelism and a short stagger.
// When no ad yields date-matched data, account-level conversions are
// distributed proportionally by spend and the results flagged estimated.
func (r *Resolver) AdsWithInsights(ctx context.Context, window model.DateRange, bypass bool) ([]AdInsight, error) {
	ads, err := r.ListAds(ctx, bypass)
	if err != nil {
		return nil, err
	}

	results := make([]resolved, len(ads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchSize)
	for i := range ads {
		g.Go(func() error {
			if r.stagger > 0 && r.batchSize > 0 {
				time.Sleep(time.Duration(i%r.batchSize) * r.stagger)
			}
			results[i] = r.insightsFor(gctx, ads[i].ID, window, bypass)
			return nil
		})
	}
	_ = g.Wait()

	anyMatched := false
	for i := range results {
		if results[i].Matched != nil {
			anyMatched = true
			break
		}
	}

	out := make([]AdInsight, len(ads))
	if anyMatched {
		for i, ad := range ads {
			ai := AdInsight{Ad: ad}
			if res := results[i]; res.Matched != nil {
				ai.Raw = res.Matched
				ai.Approach = res.Approach
				ai.Purchases = PurchaseCount(res.Matched)
				ai.PurchaseValue = PurchaseValue(res.Matched)
				ai.Source = model.SourceReported
			}
			out[i] = ai
		}
		return out, nil
	}

	// Fallback: no approach produced date-matched data for any ad. Use each
	// ad's loose record as a spend signal and split the account totals.
	acct := r.insightsFor(ctx, r.accountPath(), window, bypass)
	acctRec := acct.Matched
	if acctRec == nil {
		acctRec = acct.Loose
	}

	spends := make(map[string]float64, len(ads))
	for i, ad := range ads {
		if rec := results[i].Loose; rec != nil {
			spends[ad.ID] = parseFloat(rec.Spend)
		} else {
			spends[ad.ID] = 0
		}
	}

	var allocs map[string]Allocation
	if acctRec != nil {
		allocs = Allocate(spends, PurchaseCount(acctRec), PurchaseValue(acctRec), r.defaultPurchaseValue)
		zap.L().Info("insights: proportional fallback applied",
			zap.String("window", window.Since+".."+window.Until),
			zap.Int("ads", len(ads)),
		)
	}

	for i, ad := range ads {
		ai := AdInsight{Ad: ad, Raw: results[i].Loose}
		if ai.Raw != nil {
			ai.Source = model.SourceEstimated
		}
		if alloc, ok := allocs[ad.ID]; ok {
			ai.Purchases = alloc.Count
			ai.PurchaseValue = alloc.Value
		}
		out[i] = ai
	}
	return out, nil
}

// AdInsights resolves insights for a single ad. A non-date-matched record is
// returned flagged estimated rather than dropped; total failure yields a nil
// Raw, never an error.
func (r *Resolver) AdInsights(ctx context.Context, adID string, window model.DateRange, bypass bool) AdInsight {
	res := r.insightsFor(ctx, adID, window, bypass)
	ai := AdInsight{Ad: model.Ad{ID: adID}}
	switch {
	case res.Matched != nil:
		ai.Raw = res.Matched
		ai.Approach = res.Approach
		ai.Source = model.SourceReported
	case res.Loose != nil:
		ai.Raw = res.Loose
		ai.Source = model.SourceEstimated
	default:
		return ai
	}
	ai.Purchases = PurchaseCount(ai.Raw)
	ai.PurchaseValue = PurchaseValue(ai.Raw)
	return ai
}

// AccountInsights resolves account-level aggregate insights for the window.
func (r *Resolver) AccountInsights(ctx context.Context, window model.DateRange, bypass bool) AdInsight {
	res := r.insightsFor(ctx, r.accountPath(), window, bypass)
	ai := AdInsight{}
	switch {
	case res.Matched != nil:
		ai.Raw = res.Matched
		ai.Approach = res.Approach
		ai.Source = model.SourceReported
	case res.Loose != nil:
		ai.Raw = res.Loose
		ai.Source = model.SourceEstimated
	default:
		return ai
	}
	ai.Purchases = PurchaseCount(ai.Raw)
	ai.PurchaseValue = PurchaseValue(ai.Raw)
	return ai
}

// AccountSpend returns total account spend over the window, or 0 when no
// data could be resolved.
func (r *Resolver) AccountSpend(ctx context.Context, window model.DateRange, bypass bool) float64 {
	ai := r.AccountInsights(ctx, window, bypass)
	if ai.Raw == nil {
		return 0
	}
	return parseFloat(ai.Raw.Spend)
}

// Campaigns fetches the account's campaigns.
func (r *Resolver) Campaigns(ctx context.Context, bypass bool) ([]model.Campaign, error) {
	var out []model.Campaign
	if err := r.list(ctx, "/campaigns", campaignFields, cache.CategoryCampaigns, bypass, &out); err != nil {
		return nil, eris.Wrap(err, "insights: list campaigns")
	}
	return out, nil
}

// Adsets fetches the account's ad sets.
func (r *Resolver) Adsets(ctx context.Context, bypass bool) ([]model.Adset, error) {
	var out []model.Adset
	if err := r.list(ctx, "/adsets", adsetFields, cache.CategoryAdsets, bypass, &out); err != nil {
		return nil, eris.Wrap(err, "insights: list adsets")
	}
	return out, nil
}

// Account fetches the ad account summary.
func (r *Resolver) Account(ctx context.Context, bypass bool) (*model.Account, error) {
	params := url.Values{}
	params.Set("fields", accountFields)

	raw, err := r.fetch.Fetch(ctx, r.accountPath(), params, cache.CategoryAccount, bypass)
	if err != nil {
		return nil, eris.Wrap(err, "insights: fetch account")
	}

	var acct model.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, eris.Wrap(err, "insights: decode account")
	}
	return &acct, nil
}

func (r *Resolver) list(ctx context.Context, suffix, fields string, cat cache.Category, bypass bool, out any) error {
	params := url.Values{}
	params.Set("fields", fields)
	params.Set("limit", listLimit)

	raw, err := r.fetch.Fetch(ctx, r.accountPath()+suffix, params, cat, bypass)
	if err != nil {
		return err
	}

	var env meta.ListEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
