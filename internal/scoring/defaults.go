package scoring

import "github.com/darthVad3r/SageNet-Sentinel/internal/domain"

// DefaultSignals returns the built-in heuristic signal set used when the
// repository holds no tenant configuration. Weights are relative; the
// provider normalizes by the evaluated sum.
func DefaultSignals() []*domain.HeuristicConfig {
	return []*domain.HeuristicConfig{
		{
			ID:          "high-amount",
			Name:        "High amount",
			Description: "Large transactions carry more fraud risk",
			Version:     "1.0.0",
			Expression:  `amount >= 1000.0 ? (amount >= 5000.0 ? 1.0 : 0.6) : 0.0`,
			Weight:      0.30,
			RiskFactor:  "high transaction amount",
			Enabled:     true,
		},
		{
			ID:          "international-high-risk",
			Name:        "International at high-risk merchant",
			Description: "Cross-border spend at a flagged merchant",
			Version:     "1.0.0",
			Expression:  `is_international && is_high_risk_merchant`,
			Weight:      0.25,
			RiskFactor:  "international high-risk merchant",
			Enabled:     true,
		},
		{
			ID:          "velocity-spike",
			Name:        "Velocity spike",
			Description: "Unusually many transactions in 24h",
			Version:     "1.0.0",
			Expression:  `tx_count_24h > 10 ? (tx_count_24h > 20 ? 1.0 : 0.7) : 0.0`,
			Weight:      0.25,
			RiskFactor:  "24h velocity spike",
			Enabled:     true,
		},
		{
			ID:          "off-hours",
			Name:        "Off-hours activity",
			Description: "Activity outside typical waking hours",
			Version:     "1.0.0",
			Expression:  `hour < 6 || hour > 22`,
			Weight:      0.20,
			RiskFactor:  "off-hours activity",
			Enabled:     true,
		},
	}
}
