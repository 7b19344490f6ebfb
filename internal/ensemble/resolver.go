package ensemble

import (
	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
)

// Resolve is the fallback decision ladder, used when no override rule has
// set an action. First match wins.
func Resolve(res domain.AggregateResult) domain.Action {
	switch {
	case res.CombinedProbability >= 0.8 && res.CombinedConfidence >= 0.7 && res.Agreement:
		return domain.ActionDecline
	case res.CombinedProbability >= 0.5 && res.CombinedProbability < 0.8:
		return domain.ActionReview
	case res.CombinedConfidence < 0.5 && res.CombinedProbability >= 0.4:
		return domain.ActionReview
	default:
		return domain.ActionApprove
	}
}
