// Package scorer computes the 0-100 performance score shown on the
// dashboard. The tier boundaries are user-facing: they drive sorting and
// filtering, so they must not drift.
package scorer

import (
	"math"

	"github.com/adpulse/adpulse/internal/model"
)

// Score computes the weighted performance score for a metric record.
// An entity with no spend or no impressions scores 0 outright: performance
// cannot be assessed without delivery.
func Score(m model.Metrics, w Weights) int {
	if m.Spend == 0 || m.Impressions == 0 {
		return 0
	}

	total := w.ROAS*float64(roasScore(m.ROAS)) +
		w.CTR*float64(ctrScore(m.LinkCTR)) +
		w.Clicks*float64(clickScore(m.LinkCTR, m.LinkClicks)) +
		w.CPM*float64(cpmScore(m.CPM)) +
		w.CPC*float64(cpcScore(m.LinkCPC, m.LinkClicks))

	return int(math.Round(math.Min(100, total)))
}

// roasScore tiers return on ad spend.
func roasScore(roas float64) int {
	switch {
	case roas >= 4.0:
		return 100
	case roas >= 3.0:
		return 90
	case roas >= 2.5:
		return 80
	case roas >= 2.0:
		return 70
	case roas >= 1.5:
		return 60
	case roas >= 1.0:
		return 50
	case roas >= 0.5:
		return 30
	case roas > 0:
		return 10
	default:
		return 0
	}
}

// ctrScore tiers the link-click CTR percentage.
func ctrScore(ctr float64) int {
	switch {
	case ctr >= 3.0:
		return 100
	case ctr >= 2.0:
		return 90
	case ctr >= 1.5:
		return 80
	case ctr >= 1.0:
		return 70
	case ctr >= 0.5:
		return 60
	case ctr >= 0.3:
		return 50
	case ctr >= 0.1:
		return 30
	case ctr > 0:
		return 10
	default:
		return 0
	}
}

// clickScore blends the rate-derived score with an absolute volume tier.
func clickScore(ctr float64, clicks int64) int {
	blend := 0.7*float64(ctrScore(ctr)) + 0.3*float64(clickVolumeTier(clicks))
	return int(math.Round(blend))
}

func clickVolumeTier(clicks int64) int {
	switch {
	case clicks >= 1000:
		return 100
	case clicks >= 500:
		return 90
	case clicks >= 250:
		return 80
	case clicks >= 100:
		return 70
	case clicks >= 50:
		return 60
	case clicks >= 25:
		return 50
	case clicks >= 10:
		return 40
	case clicks >= 5:
		return 30
	case clicks >= 1:
		return 20
	default:
		return 0
	}
}

// cpmScore tiers cost per mille; lower is better.
func cpmScore(cpm float64) int {
	switch {
	case cpm <= 0:
		return 0
	case cpm <= 5:
		return 100
	case cpm <= 8:
		return 90
	case cpm <= 12:
		return 80
	case cpm <= 18:
		return 70
	case cpm <= 25:
		return 60
	case cpm <= 35:
		return 50
	case cpm <= 50:
		return 40
	case cpm <= 70:
		return 30
	case cpm <= 85:
		return 20
	case cpm <= 100:
		return 10
	default:
		return 0
	}
}

// cpcScore tiers link-click cost; lower is better, and no clicks means no
// score rather than a perfect one.
func cpcScore(cpc float64, clicks int64) int {
	if clicks == 0 {
		return 0
	}
	switch {
	case cpc <= 0.5:
		return 100
	case cpc <= 1:
		return 90
	case cpc <= 1.5:
		return 80
	case cpc <= 2:
		return 70
	case cpc <= 3:
		return 60
	case cpc <= 4:
		return 50
	case cpc <= 6:
		return 40
	case cpc <= 8:
		return 30
	case cpc <= 10:
		return 20
	case cpc <= 12:
		return 10
	default:
		return 0
	}
}
