package ensemble

import (
	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
)

// Audit tags stamped by the override rules. A rule that already stamped its
// tag is skipped on later passes, which makes the pipeline idempotent.
const (
	TagSmallSafePattern = "Override: small amount at low-risk merchant"
	TagBusinessHours    = "Override: normal business-hours pattern"
	TagLowConfidence    = "Override: low confidence, manual review"
	TagHighValue        = "Override: high-value transaction requires review"
	TagConfidenceFloor  = "Override: confidence below auto-decision floor"
	TagHighConfFraud    = "Override: high-confidence fraud"
)

// overrideRule is one stage of the policy pipeline. when decides whether the
// rule fires; then returns the rewritten result. Rules never remove tags set
// by earlier stages.
type overrideRule struct {
	name string
	tag  string
	when func(res domain.AggregateResult, tx *domain.Transaction, cfg *domain.EnsembleConfig) bool
	then func(res domain.AggregateResult) domain.AggregateResult
}

// policyPipeline is the fixed, ordered rule sequence. Order is part of the
// contract: later rules overwrite fields set by earlier ones, so the
// high-confidence fraud escalation runs last and wins over any Review.
var policyPipeline = []overrideRule{
	{
		name: "small-transaction-safe-pattern",
		tag:  TagSmallSafePattern,
		when: func(res domain.AggregateResult, tx *domain.Transaction, cfg *domain.EnsembleConfig) bool {
			return tx.Amount < cfg.SmallTransactionThreshold &&
				!tx.IsInternational &&
				!tx.IsHighRiskMerchant &&
				tx.TransactionCount24h <= 5 &&
				res.CombinedProbability < 0.7
		},
		then: func(res domain.AggregateResult) domain.AggregateResult {
			res.IsFraudulent = false
			res.RecommendedAction = domain.ActionApprove
			return res
		},
	},
	{
		name: "business-hours-damping",
		tag:  TagBusinessHours,
		when: func(res domain.AggregateResult, tx *domain.Transaction, cfg *domain.EnsembleConfig) bool {
			hour := tx.HourOfDay()
			return hour >= cfg.BusinessHourStart && hour <= cfg.BusinessHourEnd &&
				tx.Amount < 500 &&
				tx.TransactionCount24h <= 10 &&
				!tx.IsHighRiskMerchant &&
				res.CombinedProbability < 0.6
		},
		then: func(res domain.AggregateResult) domain.AggregateResult {
			// Dampens the probability only; leaves the action alone.
			res.CombinedProbability *= 0.8
			return res
		},
	},
	{
		name: "low-confidence-review",
		tag:  TagLowConfidence,
		when: func(res domain.AggregateResult, tx *domain.Transaction, cfg *domain.EnsembleConfig) bool {
			return res.CombinedConfidence < cfg.LowConfidenceThreshold &&
				res.CombinedProbability >= 0.4 &&
				res.CombinedProbability <= 0.7
		},
		then: func(res domain.AggregateResult) domain.AggregateResult {
			res.RecommendedAction = domain.ActionReview
			return res
		},
	},
	{
		name: "high-value-review",
		tag:  TagHighValue,
		when: func(res domain.AggregateResult, tx *domain.Transaction, cfg *domain.EnsembleConfig) bool {
			return tx.Amount >= cfg.HighValueTransactionThreshold &&
				res.CombinedProbability >= 0.3
		},
		then: func(res domain.AggregateResult) domain.AggregateResult {
			res.RecommendedAction = domain.ActionReview
			return res
		},
	},
	{
		name: "final-confidence-gate",
		tag:  TagConfidenceFloor,
		when: func(res domain.AggregateResult, tx *domain.Transaction, cfg *domain.EnsembleConfig) bool {
			return res.CombinedConfidence < cfg.MinimumConfidenceForAutoDecision
		},
		then: func(res domain.AggregateResult) domain.AggregateResult {
			res.RecommendedAction = domain.ActionReview
			return res
		},
	},
	{
		name: "high-confidence-fraud-escalation",
		tag:  TagHighConfFraud,
		when: func(res domain.AggregateResult, tx *domain.Transaction, cfg *domain.EnsembleConfig) bool {
			return res.IsFraudulent &&
				res.CombinedProbability >= 0.9 &&
				res.CombinedConfidence >= 0.8
		},
		then: func(res domain.AggregateResult) domain.AggregateResult {
			res.RecommendedAction = domain.ActionDecline
			return res
		},
	},
}

// ApplyPolicies runs the override rule pipeline in its fixed order and
// returns the rewritten result. The input is never mutated; every triggered
// rule stamps its audit tag into both auditTags and riskFactors.
func ApplyPolicies(res domain.AggregateResult, tx *domain.Transaction, cfg *domain.EnsembleConfig) domain.AggregateResult {
	for _, rule := range policyPipeline {
		if res.HasTag(rule.tag) {
			continue
		}
		if !rule.when(res, tx, cfg) {
			continue
		}
		res = rule.then(res)
		res = stamp(res, rule.tag)
	}
	return res
}

// PolicyNames returns the rule names in evaluation order.
func PolicyNames() []string {
	names := make([]string, len(policyPipeline))
	for i, r := range policyPipeline {
		names[i] = r.name
	}
	return names
}

// stamp appends the tag to auditTags and riskFactors on fresh slices so
// earlier pipeline values are never aliased.
func stamp(res domain.AggregateResult, tag string) domain.AggregateResult {
	tags := make([]string, 0, len(res.AuditTags)+1)
	tags = append(tags, res.AuditTags...)
	res.AuditTags = append(tags, tag)

	for _, f := range res.RiskFactors {
		if f == tag {
			return res
		}
	}
	factors := make([]string, 0, len(res.RiskFactors)+1)
	factors = append(factors, res.RiskFactors...)
	res.RiskFactors = append(factors, tag)
	return res
}
