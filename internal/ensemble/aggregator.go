// Package ensemble implements the ensemble decision engine: it combines
// heterogeneous scoring-source outputs into a single probability/confidence
// pair and applies the ordered business-policy overrides that can force a
// different outcome than the raw combined score.
package ensemble

import (
	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
)

// Confidence adjustment applied to the weakest contributing confidence:
// rewarded when sources agree with a small spread, penalized otherwise.
const (
	consensusBoost     = 1.2
	disagreementFactor = 0.7
	smallSpread        = 0.2
)

// Aggregate combines one or more provider scores into a single
// AggregateResult using the configured weights. It is a pure function of
// its inputs; nothing about provider call order can affect the output.
//
// Returns domain.ErrNoProvidersAvailable when results is empty.
func Aggregate(results []domain.ScoreResult, cfg *domain.EnsembleConfig) (domain.AggregateResult, error) {
	switch len(results) {
	case 0:
		return domain.AggregateResult{}, domain.ErrNoProvidersAvailable
	case 1:
		// Single source passes through unchanged; the action ladder
		// fills the recommendation later.
		r := results[0]
		return domain.AggregateResult{
			CombinedProbability: r.Probability,
			CombinedConfidence:  r.Confidence,
			Agreement:           true,
			IsFraudulent:        r.IsFraudulent,
			RiskFactors:         unionRiskFactors(results),
			RecommendedAction:   domain.ActionUnset,
		}, nil
	}

	var weightedSum, totalWeight float64
	minProb, maxProb := results[0].Probability, results[0].Probability
	minConf := results[0].Confidence
	agreement := true

	for i, r := range results {
		w := cfg.WeightFor(r.SourceID, len(results))
		weightedSum += r.Probability * w
		totalWeight += w

		if r.Probability < minProb {
			minProb = r.Probability
		}
		if r.Probability > maxProb {
			maxProb = r.Probability
		}
		if r.Confidence < minConf {
			minConf = r.Confidence
		}
		if i > 0 && r.IsFraudulent != results[0].IsFraudulent {
			agreement = false
		}
	}

	// Normalizing by the contributing weight sum guards against
	// configured weights not summing to 1, and against excluded sources.
	combined := weightedSum
	if totalWeight > 0 {
		combined = weightedSum / totalWeight
	}

	spread := maxProb - minProb
	confidence := minConf * disagreementFactor
	if agreement && spread < smallSpread {
		confidence = minConf * consensusBoost
	}
	confidence = clamp01(confidence)

	// Disagreement raises the bar for a fraud classification.
	threshold := cfg.FraudThreshold
	if !agreement {
		threshold = cfg.DisagreementThreshold
	}

	return domain.AggregateResult{
		CombinedProbability: combined,
		CombinedConfidence:  confidence,
		Agreement:           agreement,
		IsFraudulent:        combined >= threshold,
		RiskFactors:         unionRiskFactors(results),
		RecommendedAction:   domain.ActionUnset,
	}, nil
}

// unionRiskFactors merges all risk factors, dropping duplicates while
// preserving first-seen order.
func unionRiskFactors(results []domain.ScoreResult) []string {
	seen := make(map[string]struct{})
	var union []string
	for _, r := range results {
		for _, f := range r.RiskFactors {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			union = append(union, f)
		}
	}
	return union
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
