package domain

import (
	"time"
)

// Action is the recommended handling for a transaction.
type Action string

const (
	// ActionUnset means no rule or ladder has decided yet.
	ActionUnset Action = ""

	ActionApprove Action = "APPROVE"
	ActionReview  Action = "REVIEW"
	ActionDecline Action = "DECLINE"
)

// ScoreResult is the output of a single scoring provider for one transaction.
// Produced once per provider call; immutable.
type ScoreResult struct {
	SourceID     string   `json:"sourceId"`
	Probability  float64  `json:"probability"` // [0,1]
	Confidence   float64  `json:"confidence"`  // [0,1]
	IsFraudulent bool     `json:"isFraudulent"`
	RiskFactors  []string `json:"riskFactors,omitempty"`
	ProcessMs    int64    `json:"processMs,omitempty"`
}

// AggregateResult is the combined ensemble output for one transaction.
// It is built once per request, then threaded through the override policy
// pipeline; each stage returns a new value, never mutating its input.
//
// Field names are stable; downstream audit consumers depend on them.
type AggregateResult struct {
	CombinedProbability float64  `json:"combinedProbability"`
	CombinedConfidence  float64  `json:"combinedConfidence"`
	Agreement           bool     `json:"agreement"`
	IsFraudulent        bool     `json:"isFraudulent"`
	RiskFactors         []string `json:"riskFactors,omitempty"`
	RecommendedAction   Action   `json:"recommendedAction"`
	AuditTags           []string `json:"auditTags,omitempty"`
}

// HasTag reports whether an audit tag was already recorded.
func (r AggregateResult) HasTag(tag string) bool {
	for _, t := range r.AuditTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Decision is the persisted, audit-grade record of one Decide call.
type Decision struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`

	Result AggregateResult `json:"result"`

	// Per-provider outputs that contributed to the result.
	Scores []ScoreResult `json:"scores"`

	Metadata DecisionMetadata `json:"metadata"`
}

// DecisionMetadata contains processing information.
type DecisionMetadata struct {
	TraceID            string `json:"traceId"`
	ProvidersQueried   int    `json:"providersQueried"`
	ProvidersResponded int    `json:"providersResponded"`
	ProvidersMs        int64  `json:"providersMs"`
	DecisionMs         int64  `json:"decisionMs"`
	TotalMs            int64  `json:"totalMs"`
	EngineVersion      string `json:"engineVersion"`
}

// DecisionResponse is the API response for a decision.
type DecisionResponse struct {
	DecisionID string           `json:"decisionId"`
	TxID       string           `json:"txId"`
	Result     AggregateResult  `json:"result"`
	Metadata   DecisionMetadata `json:"metadata"`
}

// ToResponse converts a Decision to an API response.
func (d *Decision) ToResponse() *DecisionResponse {
	return &DecisionResponse{
		DecisionID: d.ID,
		TxID:       d.TxID,
		Result:     d.Result,
		Metadata:   d.Metadata,
	}
}
