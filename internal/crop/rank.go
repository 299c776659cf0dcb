package crop

import (
	"math"
	"sort"
)

// DefaultTopK is the number of recommendations returned per prediction.
const DefaultTopK = 3

// Recommendation is a ranked crop suggestion.
type Recommendation struct {
	Crop             string           `json:"crop"`
	Confidence       float64          `json:"confidence"`
	SoilRequirements SoilRequirements `json:"soil_requirements"`
	EstimatedPrice   float64          `json:"estimated_price"`
}

// Affliction is a pest or disease description.
type Affliction struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EnrichedRecommendation is a recommendation with generated pest and
// disease notes.
type EnrichedRecommendation struct {
	Recommendation
	Pests    []Affliction `json:"pests"`
	Diseases []Affliction `json:"diseases"`
}

// Rank turns a class probability vector into at most k recommendations,
// highest probability first. Ties keep index order. The top k classes are
// chosen before lookup: a class without a label or without stats is skipped,
// so fewer than k results may come back. k <= 0 means DefaultTopK.
func Rank(probs []float64, labels LabelIndex, stats *Stats, k int) []Recommendation {
	if k <= 0 {
		k = DefaultTopK
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sortKey(probs[order[a]]) > sortKey(probs[order[b]])
	})
	if len(order) > k {
		order = order[:k]
	}

	recs := make([]Recommendation, 0, len(order))
	for _, idx := range order {
		name, ok := labels.Name(idx)
		if !ok {
			continue
		}
		entry, ok := stats.Lookup(name)
		if !ok {
			continue
		}

		recs = append(recs, Recommendation{
			Crop:       name,
			Confidence: probs[idx] * 100,
			SoilRequirements: SoilRequirements{
				N:  Round2(entry.Soil.N),
				P:  Round2(entry.Soil.P),
				K:  Round2(entry.Soil.K),
				PH: Round2(entry.Soil.PH),
			},
			EstimatedPrice: Round2(entry.Price),
		})
	}

	return recs
}

// Round2 rounds to two decimals, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NaN sorts last.
func sortKey(p float64) float64 {
	if math.IsNaN(p) {
		return math.Inf(-1)
	}
	return p
}
