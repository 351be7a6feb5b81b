package insights

import "math"

// Allocation is one entity's share of account-level conversions distributed
// by the proportional fallback.
type Allocation struct {
	Count float64 `json:"count"`
	Value float64 `json:"value"`
}

// Allocate distributes account-level conversion totals across entities in
// proportion to each entity's share of total spend. Entities with zero spend
// receive zero. When the account reports conversions but no conversion
// value, each converted unit is assigned defaultValue so downstream ROAS is
// an estimate instead of zero.
func Allocate(spends map[string]float64, totalCount, totalValue, defaultValue float64) map[string]Allocation {
	out := make(map[string]Allocation, len(spends))

	var totalSpend float64
	for _, s := range spends {
		totalSpend += s
	}
	if totalSpend == 0 {
		for id := range spends {
			out[id] = Allocation{}
		}
		return out
	}

	if totalValue == 0 && totalCount > 0 {
		totalValue = totalCount * defaultValue
	}

	for id, s := range spends {
		share := s / totalSpend
		out[id] = Allocation{
			Count: math.Round(share * totalCount),
			Value: share * totalValue,
		}
	}
	return out
}
