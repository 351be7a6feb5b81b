// Package insights resolves date-scoped performance data from the upstream
// ads API. The API is unreliable about honoring exact date windows across
// attribution-window and date-representation variants, so every fetch walks
// an ordered list of parameter approaches until one returns data whose
// reported range matches the request, with a proportional account-level
// fallback when none does.
package insights

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/adpulse/adpulse/internal/model"
)

// Approach is one immutable parameter variant tried against the insights
// endpoint. Approaches are defined at compile time and iterated in order.
type Approach struct {
	Name               string
	AttributionWindows []string
	UseDatePreset      bool
}

// DefaultApproaches returns the approaches in priority order: explicit date
// ranges across attribution windows first, then a relative preset.
func DefaultApproaches() []Approach {
	return []Approach{
		{Name: "time_range_7d_click", AttributionWindows: []string{"7d_click"}},
		{Name: "time_range_1d_view", AttributionWindows: []string{"1d_view"}},
		{Name: "time_range_7d_view", AttributionWindows: []string{"7d_view"}},
		{Name: "date_preset_1d_click", AttributionWindows: []string{"1d_click"}, UseDatePreset: true},
	}
}

const insightFields = "date_start,date_stop,impressions,clicks,inline_link_clicks," +
	"spend,cpm,cpc,ctr,frequency,reach,actions,action_values"

// Params builds the query parameters for this approach over the window.
// Returns false when the approach cannot represent the window (a date preset
// only exists for today and yesterday).
func (a Approach) Params(window model.DateRange) (url.Values, bool) {
	p := url.Values{}
	p.Set("fields", insightFields)
	for _, w := range a.AttributionWindows {
		p.Add("action_attribution_windows", w)
	}

	if a.UseDatePreset {
		preset, ok := presetFor(window)
		if !ok {
			return nil, false
		}
		p.Set("date_preset", preset)
		return p, true
	}

	tr, _ := json.Marshal(map[string]string{"since": window.Since, "until": window.Until})
	p.Set("time_range", string(tr))
	return p, true
}

func presetFor(window model.DateRange) (string, bool) {
	if !window.IsSingleDay() {
		return "", false
	}
	today := time.Now().Format("2006-01-02")
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	switch window.Since {
	case today:
		return "today", true
	case yesterday:
		return "yesterday", true
	default:
		return "", false
	}
}

// matchesWindow reports whether a record's reported range satisfies the
// request. Single-day requests demand an exact date match; multi-day
// requests accept the aggregate as returned.
func matchesWindow(dateStart, dateStop string, window model.DateRange) bool {
	if !window.IsSingleDay() {
		return true
	}
	return dateStart == window.Since && dateStop == window.Since
}
