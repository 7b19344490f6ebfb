package domain

import (
	"context"
)

// ScoringProvider produces a fraud score for a transaction. Implementations
// wrap a local heuristic model, a cloud-hosted model, or anything else that
// can rate a transaction; the pipeline never branches on which.
type ScoringProvider interface {
	// SourceID uniquely identifies this provider in weights and results.
	SourceID() string

	// Predict scores a transaction. It must honor ctx cancellation and
	// return an error rather than a partial ScoreResult.
	Predict(ctx context.Context, tx *Transaction) (*ScoreResult, error)
}

// HeuristicConfig defines one weighted scoring signal for the built-in
// heuristic provider. The expression is CEL over transaction variables and
// must evaluate to bool, int, or double.
type HeuristicConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate
	Expression string `json:"expression"`

	// Signal weight in the provider's probability
	Weight float64 `json:"weight"`

	// RiskFactor is the label attached when the signal fires.
	RiskFactor string `json:"riskFactor"`

	// Whether the signal is active
	Enabled bool `json:"enabled"`
}
