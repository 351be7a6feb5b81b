package insights

import (
	"context"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/cache"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/upstream"
)

// fakeAPI implements meta.Client against canned per-path responses. The
// handler receives the attribution window of insight requests so tests can
// answer each approach differently.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []string
	handle func(path string, params url.Values) (int, string)
}

func (f *fakeAPI) Get(_ context.Context, path string, params url.Values) ([]byte, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	status, body := f.handle(path, params)
	return []byte(body), status, nil
}

func newTestResolver(t *testing.T, api *fakeAPI, opts ...Option) *Resolver {
	t.Helper()
	store := cache.New(filepath.Join(t.TempDir(), "cache.json"))
	fetch := upstream.NewFetcher(api, store, time.Millisecond, time.Millisecond)
	opts = append([]Option{WithStagger(0)}, opts...)
	return NewResolver(fetch, "123", opts...)
}

const emptyList = `{"data":[]}`

func insightRec(dateStart, dateStop, spend, extra string) string {
	rec := `{"date_start":"` + dateStart + `","date_stop":"` + dateStop + `",` +
		`"impressions":"1000","clicks":"40","inline_link_clicks":"30","spend":"` + spend + `"`
	if extra != "" {
		rec += "," + extra
	}
	return `{"data":[` + rec + `}]}`
}

func TestAdInsightsWalksApproachesUntilMatch(t *testing.T) {
	t.Parallel()

	window := model.SingleDay("2026-08-20")
	api := &fakeAPI{handle: func(path string, params url.Values) (int, string) {
		if path != "101/insights" {
			return 404, `{"error":{"message":"unknown path"}}`
		}
		switch params.Get("action_attribution_windows") {
		case "7d_click":
			// Data, but for the wrong day: a loose record, not a match.
			return 200, insightRec("2026-08-19", "2026-08-19", "12.00", "")
		case "1d_view":
			return 200, insightRec("2026-08-20", "2026-08-20", "25.00",
				`"actions":[{"action_type":"purchase","value":"2"},{"action_type":"omni_purchase","value":"3"}],`+
					`"action_values":[{"action_type":"omni_purchase","value":"150.00"}]`)
		default:
			return 404, `{"error":{"message":"approach should not be reached"}}`
		}
	}}

	r := newTestResolver(t, api)
	ai := r.AdInsights(context.Background(), "101", window, false)

	require.NotNil(t, ai.Raw)
	assert.Equal(t, "time_range_1d_view", ai.Approach)
	assert.Equal(t, model.SourceReported, ai.Source)
	assert.Equal(t, "2026-08-20", ai.Raw.DateStart)
	assert.Equal(t, 3.0, ai.Purchases, "purchase count deduplicated by max")
	assert.Equal(t, 150.0, ai.PurchaseValue)
}

func TestAdInsightsApproachErrorContinues(t *testing.T) {
	t.Parallel()

	window := model.SingleDay("2026-08-20")
	api := &fakeAPI{handle: func(_ string, params url.Values) (int, string) {
		if params.Get("action_attribution_windows") == "7d_click" {
			return 500, `{"error":{"message":"transient upstream failure"}}`
		}
		return 200, insightRec("2026-08-20", "2026-08-20", "10.00", "")
	}}

	r := newTestResolver(t, api)
	ai := r.AdInsights(context.Background(), "101", window, false)

	require.NotNil(t, ai.Raw)
	assert.Equal(t, "time_range_1d_view", ai.Approach)
}

func TestAdInsightsZeroMetricsStillMatch(t *testing.T) {
	t.Parallel()

	window := model.SingleDay("2026-08-20")
	api := &fakeAPI{handle: func(string, url.Values) (int, string) {
		return 200, insightRec("2026-08-20", "2026-08-20", "0", "")
	}}

	r := newTestResolver(t, api)
	ai := r.AdInsights(context.Background(), "101", window, false)

	require.NotNil(t, ai.Raw, "zero spend is a valid state, not a miss")
	assert.Equal(t, "time_range_7d_click", ai.Approach)
	assert.Equal(t, model.SourceReported, ai.Source)
}

func TestAdInsightsLooseRecordIsEstimated(t *testing.T) {
	t.Parallel()

	window := model.SingleDay("2026-08-20")
	api := &fakeAPI{handle: func(string, url.Values) (int, string) {
		return 200, insightRec("2026-08-01", "2026-08-25", "40.00", "")
	}}

	r := newTestResolver(t, api)
	ai := r.AdInsights(context.Background(), "101", window, false)

	require.NotNil(t, ai.Raw)
	assert.Equal(t, model.SourceEstimated, ai.Source)
	assert.Empty(t, ai.Approach)
}

func TestAdInsightsTotalFailureYieldsAbsent(t *testing.T) {
	t.Parallel()

	window := model.SingleDay("2026-08-20")
	api := &fakeAPI{handle: func(string, url.Values) (int, string) {
		return 200, emptyList
	}}

	r := newTestResolver(t, api)
	ai := r.AdInsights(context.Background(), "101", window, false)

	assert.Nil(t, ai.Raw)
	assert.Empty(t, ai.Source)
	assert.Zero(t, ai.Purchases)
}

func TestListAdsFiltersGroupRows(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{handle: func(path string, _ url.Values) (int, string) {
		if path != "act_123/ads" {
			return 404, `{"error":{"message":"unknown path"}}`
		}
		return 200, `{"data":[
			{"id":"1","name":"Summer Sale Video","status":"ACTIVE"},
			{"id":"2","name":"US | Prospecting | Broad","status":"ACTIVE"},
			{"id":"3","name":"Retarget AdSet copy","status":"PAUSED"},
			{"id":"4","name":"Lookbook Carousel","status":"ACTIVE"}
		]}`
	}}

	r := newTestResolver(t, api)
	ads, err := r.ListAds(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, ads, 2)
	assert.Equal(t, "1", ads[0].ID)
	assert.Equal(t, "4", ads[1].ID)
}

func TestAdsWithInsightsReported(t *testing.T) {
	t.Parallel()

	window := model.SingleDay("2026-08-20")
	api := &fakeAPI{handle: func(path string, params url.Values) (int, string) {
		switch path {
		case "act_123/ads":
			return 200, `{"data":[{"id":"a1","name":"First Ad"},{"id":"a2","name":"Second Ad"}]}`
		case "a1/insights", "a2/insights":
			if params.Get("action_attribution_windows") != "7d_click" {
				return 200, emptyList
			}
			return 200, insightRec("2026-08-20", "2026-08-20", "20.00",
				`"actions":[{"action_type":"purchase","value":"1"}],"action_values":[{"action_type":"purchase","value":"80.00"}]`)
		default:
			return 404, `{"error":{"message":"unknown path"}}`
		}
	}}

	r := newTestResolver(t, api)
	out, err := r.AdsWithInsights(context.Background(), window, false)
	require.NoError(t, err)

	require.Len(t, out, 2)
	for _, ai := range out {
		require.NotNil(t, ai.Raw)
		assert.Equal(t, model.SourceReported, ai.Source)
		assert.Equal(t, "time_range_7d_click", ai.Approach)
		assert.Equal(t, 1.0, ai.Purchases)
		assert.Equal(t, 80.0, ai.PurchaseValue)
	}
}

func TestAdsWithInsightsProportionalFallback(t *testing.T) {
	t.Parallel()

	window := model.SingleDay("2026-08-20")
	api := &fakeAPI{handle: func(path string, params url.Values) (int, string) {
		first := params.Get("action_attribution_windows") == "7d_click"
		switch path {
		case "act_123/ads":
			return 200, `{"data":[{"id":"a1","name":"First Ad"},{"id":"a2","name":"Second Ad"}]}`
		case "a1/insights":
			if first {
				return 200, insightRec("2026-08-01", "2026-08-25", "30.00", "")
			}
			return 200, emptyList
		case "a2/insights":
			if first {
				return 200, insightRec("2026-08-01", "2026-08-25", "70.00", "")
			}
			return 200, emptyList
		case "act_123/insights":
			if first {
				// Account total: 10 conversions, no reported value.
				return 200, insightRec("2026-08-01", "2026-08-25", "100.00",
					`"actions":[{"action_type":"omni_purchase","value":"10"}]`)
			}
			return 200, emptyList
		default:
			return 404, `{"error":{"message":"unknown path"}}`
		}
	}}

	r := newTestResolver(t, api)
	out, err := r.AdsWithInsights(context.Background(), window, false)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byID := map[string]AdInsight{}
	for _, ai := range out {
		byID[ai.Ad.ID] = ai
	}

	a1, a2 := byID["a1"], byID["a2"]
	assert.Equal(t, model.SourceEstimated, a1.Source)
	assert.Equal(t, model.SourceEstimated, a2.Source)

	// 10 conversions split 30/70 by spend; value from the $50 default.
	assert.Equal(t, 3.0, a1.Purchases)
	assert.Equal(t, 7.0, a2.Purchases)
	assert.InDelta(t, 150, a1.PurchaseValue, 1e-9)
	assert.InDelta(t, 350, a2.PurchaseValue, 1e-9)
}

func TestAccountSpend(t *testing.T) {
	t.Parallel()

	window := model.SingleDay("2026-08-20")
	api := &fakeAPI{handle: func(path string, _ url.Values) (int, string) {
		if path != "act_123/insights" {
			return 404, `{"error":{"message":"unknown path"}}`
		}
		return 200, insightRec("2026-08-20", "2026-08-20", "123.45", "")
	}}

	r := newTestResolver(t, api)
	assert.Equal(t, 123.45, r.AccountSpend(context.Background(), window, false))
}

func TestCampaignsAndAccount(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{handle: func(path string, _ url.Values) (int, string) {
		switch path {
		case "act_123/campaigns":
			return 200, `{"data":[{"id":"c1","name":"Spring Launch","daily_budget":"5000"}]}`
		case "act_123":
			return 200, `{"id":"act_123","name":"Demo Account","currency":"USD","account_status":1,"amount_spent":"123456"}`
		default:
			return 404, `{"error":{"message":"unknown path"}}`
		}
	}}

	r := newTestResolver(t, api)

	cs, err := r.Campaigns(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "5000", cs[0].DailyBudget)

	acct, err := r.Account(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "Demo Account", acct.Name)
	assert.Equal(t, "123456", acct.AmountSpent)
}
