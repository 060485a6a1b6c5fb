package evaluate

import (
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// EstimateEffort maps a numeric gap to an effort level using a fixed
// per-metric heuristic table. The table is a business judgment carried
// over unchanged for behavioral compatibility, not derived from data.
func EstimateEffort(metric types.MetricKey, delta, required float64) model.EffortLevel {
	switch metric {
	case types.MetricCommission, types.MetricMevCommission:
		// Fee settings are a config change.
		return model.EffortTrivial
	case types.MetricSkipRate, types.MetricVoteCredits, types.MetricUptimePercent:
		if delta <= 1.0 {
			return model.EffortModerate
		}
		return model.EffortHard
	case types.MetricActivatedStake:
		if required <= 0 {
			return model.EffortImpossible
		}
		ratio := delta / required
		switch {
		case ratio <= 0.10:
			return model.EffortModerate
		case ratio <= 0.35:
			return model.EffortHard
		default:
			return model.EffortImpossible
		}
	case types.MetricDatacenterConcentration,
		types.MetricInfrastructureDiversity,
		types.MetricStakeConcentration:
		// Moving infrastructure is never cheap.
		return model.EffortHard
	case types.MetricSolanaVersion:
		return model.EffortTrivial
	case types.MetricSuperminorityStatus:
		// Structural, not remediable in the short term.
		return model.EffortImpossible
	default:
		// Custom metrics: unknown cost, conservative default.
		return model.EffortModerate
	}
}
