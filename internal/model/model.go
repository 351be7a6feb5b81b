// Package model defines the domain types shared across the ad-data pipeline.
package model

import (
	"strconv"
	"time"
)

// DateRange is an inclusive since/until window in YYYY-MM-DD form.
type DateRange struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// SingleDay returns a range covering exactly one day.
func SingleDay(date string) DateRange {
	return DateRange{Since: date, Until: date}
}

// IsSingleDay reports whether the range covers exactly one day.
func (r DateRange) IsSingleDay() bool {
	return r.Since != "" && r.Since == r.Until
}

// Ad is an ad entity as reported by the upstream API.
type Ad struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	EffectiveStatus string    `json:"effective_status"`
	AdsetID         string    `json:"adset_id,omitempty"`
	CampaignID      string    `json:"campaign_id,omitempty"`
	Creative        *Creative `json:"creative,omitempty"`
}

// Creative is the creative reference attached to an ad.
type Creative struct {
	ID           string `json:"id"`
	Title        string `json:"title,omitempty"`
	Body         string `json:"body,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Campaign is a campaign entity. Budget fields arrive as minor-unit strings.
type Campaign struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	Objective       string `json:"objective,omitempty"`
	DailyBudget     string `json:"daily_budget,omitempty"`
	LifetimeBudget  string `json:"lifetime_budget,omitempty"`

	// Normalized from the minor-unit strings above.
	DailyBudgetUSD    float64 `json:"daily_budget_usd,omitempty"`
	LifetimeBudgetUSD float64 `json:"lifetime_budget_usd,omitempty"`
}

// Adset is an ad set entity.
type Adset struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	CampaignID      string `json:"campaign_id,omitempty"`
	DailyBudget     string `json:"daily_budget,omitempty"`
	LifetimeBudget  string `json:"lifetime_budget,omitempty"`

	DailyBudgetUSD    float64 `json:"daily_budget_usd,omitempty"`
	LifetimeBudgetUSD float64 `json:"lifetime_budget_usd,omitempty"`
}

// Account is the ad account summary.
type Account struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	Status      int    `json:"account_status"`
	AmountSpent string `json:"amount_spent,omitempty"`

	AmountSpentUSD float64 `json:"amount_spent_usd,omitempty"`
}

// Action is one entry of the upstream actions / action_values lists.
// Values arrive as numeric strings.
type Action struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// Float parses the action value, returning 0 for absent or malformed input.
func (a Action) Float() float64 {
	f, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		return 0
	}
	return f
}

// RawInsight is one upstream insight record for a single entity and window.
// Numeric fields are reported as strings by the API and normalized later.
type RawInsight struct {
	DateStart        string   `json:"date_start"`
	DateStop         string   `json:"date_stop"`
	Impressions      string   `json:"impressions,omitempty"`
	Clicks           string   `json:"clicks,omitempty"`
	InlineLinkClicks string   `json:"inline_link_clicks,omitempty"`
	Spend            string   `json:"spend,omitempty"`
	CPM              string   `json:"cpm,omitempty"`
	CPC              string   `json:"cpc,omitempty"`
	CTR              string   `json:"ctr,omitempty"`
	Frequency        string   `json:"frequency,omitempty"`
	Reach            string   `json:"reach,omitempty"`
	Actions          []Action `json:"actions,omitempty"`
	ActionValues     []Action `json:"action_values,omitempty"`
}

// Metric source markers. Estimated metrics come from the proportional
// fallback allocator rather than a date-matched upstream response.
const (
	SourceReported  = "reported"
	SourceEstimated = "estimated"
)

// Metrics is the normalized, derived metric set for one entity and window.
type Metrics struct {
	Impressions   int64   `json:"impressions"`
	Clicks        int64   `json:"clicks"`
	LinkClicks    int64   `json:"link_clicks"`
	Spend         float64 `json:"spend"`
	SpendDisplay  string  `json:"spend_display"`
	CPM           float64 `json:"cpm"`
	CPC           float64 `json:"cpc"`
	CTR           float64 `json:"ctr"`
	LinkCTR       float64 `json:"link_ctr"`
	LinkCPC       float64 `json:"link_cpc"`
	Frequency     float64 `json:"frequency"`
	Reach         int64   `json:"reach"`
	Purchases     float64 `json:"purchases"`
	PurchaseValue float64 `json:"purchase_value"`
	ROAS          float64 `json:"roas"`
	CostPerResult float64 `json:"cost_per_result"`
	Source        string  `json:"source"`
}

// EnrichedAd joins an ad with its derived metrics and performance score.
// Insights is nil when no strategy and no fallback produced data.
type EnrichedAd struct {
	Ad
	Insights         *Metrics `json:"insights,omitempty"`
	PerformanceScore int      `json:"performance_score"`
}

// Conversion is one order event recorded by the webhook receiver.
type Conversion struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	Value      float64   `json:"value"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}
