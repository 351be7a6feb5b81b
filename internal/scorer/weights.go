package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights are the sub-score weights of the composite performance score.
type Weights struct {
	ROAS   float64 `yaml:"roas"`
	CTR    float64 `yaml:"ctr"`
	Clicks float64 `yaml:"clicks"`
	CPM    float64 `yaml:"cpm"`
	CPC    float64 `yaml:"cpc"`
}

// DefaultWeights returns the canonical weighting.
func DefaultWeights() Weights {
	return Weights{
		ROAS:   0.40,
		CTR:    0.25,
		Clicks: 0.20,
		CPM:    0.08,
		CPC:    0.07,
	}
}

type weightsFile struct {
	Weights Weights `yaml:"weights"`
}

// LoadWeights reads a weight override file. An empty path or a missing file
// keeps the defaults; a present but unreadable file is an error so a typo
// does not silently change user-facing scores.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultWeights(), nil
		}
		return Weights{}, eris.Wrap(err, "scorer: read weights file")
	}

	var f weightsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Weights{}, eris.Wrap(err, "scorer: parse weights file")
	}

	w := f.Weights
	if w.ROAS == 0 && w.CTR == 0 && w.Clicks == 0 && w.CPM == 0 && w.CPC == 0 {
		return DefaultWeights(), nil
	}
	return w, nil
}
