// Package enrich normalizes raw upstream metric fields and derives the
// link-click-based rates the dashboard reports. All monetary-unit handling
// is centralized here: the table below is the single source of truth for
// which endpoint fields arrive in minor currency units.
package enrich

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/adpulse/adpulse/internal/model"
)

// EndpointKind identifies the logical upstream endpoint a field came from.
type EndpointKind string

const (
	KindInsights  EndpointKind = "insights"
	KindCampaigns EndpointKind = "campaigns"
	KindAdsets    EndpointKind = "adsets"
	KindAccount   EndpointKind = "account"
)

// minorUnitFields lists, per endpoint kind, the monetary fields the upstream
// API reports in cents. Insight spend arrives in major units already and
// must not be divided again.
var minorUnitFields = map[EndpointKind]map[string]bool{
	KindCampaigns: {"daily_budget": true, "lifetime_budget": true},
	KindAdsets:    {"daily_budget": true, "lifetime_budget": true},
	KindAccount:   {"amount_spent": true},
	KindInsights:  {},
}

// MonetaryValue parses a raw monetary string from the given endpoint field,
// converting minor units to major units when the table says so.
func MonetaryValue(kind EndpointKind, field, raw string) float64 {
	v := parseFloat(raw)
	if minorUnitFields[kind][field] {
		return v / 100
	}
	return v
}

var usd = message.NewPrinter(language.English)

// FormatUSD renders a dollar amount with thousands separators for display.
func FormatUSD(v float64) string {
	return usd.Sprintf("$%.2f", v)
}

// LinkClicks returns the link-click count for an insight, preferring the
// explicit link_click action over the inline_link_clicks field.
func LinkClicks(raw *model.RawInsight) float64 {
	if raw == nil {
		return 0
	}
	for _, a := range raw.Actions {
		if a.ActionType == "link_click" {
			if v := a.Float(); v > 0 {
				return v
			}
		}
	}
	return parseFloat(raw.InlineLinkClicks)
}

// Metrics builds the normalized metric record for one insight. CTR and CPC
// are recomputed from link clicks because the platform's raw click figure
// includes non-link interactions. Purchase totals are passed in already
// deduplicated (resolution layer concern), along with the source marker.
func Metrics(raw *model.RawInsight, purchases, purchaseValue float64, source string) model.Metrics {
	m := model.Metrics{
		Purchases:     purchases,
		PurchaseValue: purchaseValue,
		Source:        source,
	}
	if raw != nil {
		m.Impressions = int64(parseFloat(raw.Impressions))
		m.Clicks = int64(parseFloat(raw.Clicks))
		m.LinkClicks = int64(LinkClicks(raw))
		m.Spend = MonetaryValue(KindInsights, "spend", raw.Spend)
		m.CPM = parseFloat(raw.CPM)
		m.CPC = parseFloat(raw.CPC)
		m.CTR = parseFloat(raw.CTR)
		m.Frequency = parseFloat(raw.Frequency)
		m.Reach = int64(parseFloat(raw.Reach))
	}

	if m.Impressions > 0 {
		m.LinkCTR = round4(float64(m.LinkClicks) / float64(m.Impressions) * 100)
	}
	if m.LinkClicks > 0 {
		m.LinkCPC = round4(m.Spend / float64(m.LinkClicks))
	}
	if m.Spend > 0 {
		m.ROAS = round4(m.PurchaseValue / m.Spend)
	}
	if m.Purchases > 0 {
		m.CostPerResult = round4(m.Spend / m.Purchases)
	}
	m.SpendDisplay = FormatUSD(m.Spend)

	return m
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
