package insights

import (
	"regexp"
	"strings"

	"github.com/adpulse/adpulse/internal/model"
)

// purchaseActionTypes are the upstream action-type labels that can all
// describe the same logical purchase. The upstream API frequently reports a
// single conversion under several of these at once, so totals are resolved
// by taking the maximum across them, never the sum.
var purchaseActionTypes = []string{
	"purchase",
	"omni_purchase",
	"offsite_conversion.fb_pixel_purchase",
	"onsite_web_purchase",
	"web_in_store_purchase",
}

func maxActionValue(actions []model.Action, types []string) float64 {
	var max float64
	for _, a := range actions {
		for _, t := range types {
			if a.ActionType == t {
				if v := a.Float(); v > max {
					max = v
				}
			}
		}
	}
	return max
}

// PurchaseCount resolves the deduplicated purchase count for an insight.
func PurchaseCount(ins *model.RawInsight) float64 {
	if ins == nil {
		return 0
	}
	return maxActionValue(ins.Actions, purchaseActionTypes)
}

// PurchaseValue resolves the deduplicated purchase value for an insight.
func PurchaseValue(ins *model.RawInsight) float64 {
	if ins == nil {
		return 0
	}
	return maxActionValue(ins.ActionValues, purchaseActionTypes)
}

// groupRowPattern matches names segmented with pipe delimiters, a naming
// convention used for ad set and campaign rows that leak into ad listings.
var groupRowPattern = regexp.MustCompile(`\|[^|]+\|`)

// IsLikelyGroupRow reports whether an ad-listing row is probably an ad set
// or campaign rather than a true ad.
func IsLikelyGroupRow(name string) bool {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 3 {
		return true
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "adset") || strings.Contains(lower, "campaign") {
		return true
	}
	return groupRowPattern.MatchString(trimmed)
}
