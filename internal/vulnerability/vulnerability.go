// Package vulnerability scans peer cohorts for validators whose
// eligibility standing is fragile.
package vulnerability

import (
	"math"

	"github.com/yourorg/delegation-oracle/internal/evaluate"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// Trend describes how a metric is moving relative to its boundary
type Trend string

const (
	TrendImproving     Trend = "improving"
	TrendStable        Trend = "stable"
	TrendDeteriorating Trend = "deteriorating"
)

// trendNoise is the minimum per-epoch movement treated as a real trend
// rather than measurement jitter.
const trendNoise = 0.01

// AtRiskMetric is one passing-but-close metric for a peer
type AtRiskMetric struct {
	Metric       types.MetricKey `json:"metric"`
	CurrentValue float64         `json:"current_value"`
	Threshold    float64         `json:"threshold"`
	Margin       float64         `json:"margin"`
	Trend        Trend           `json:"trend"`
}

// VulnerableValidator is a peer with at least one at-risk metric
type VulnerableValidator struct {
	VotePubkey            string          `json:"vote_pubkey"`
	Program               types.ProgramID `json:"program"`
	MetricsAtRisk         []AtRiskMetric  `json:"metrics_at_risk"`
	EpochsUntilLikelyLoss *uint32         `json:"epochs_until_likely_loss,omitempty"`
	CurrentDelegation     float64         `json:"current_delegation_sol"`
}

// Analyze scans a peer cohort against one program's criteria set and
// flags validators whose passing numeric criteria sit within marginPct
// percent of their boundary. Peers fully outside the risk margin are
// omitted from the result.
func Analyze(
	program types.ProgramID,
	criteriaSet *model.CriteriaSet,
	peers []model.PeerSnapshot,
	marginPct float64,
) []VulnerableValidator {
	var out []VulnerableValidator

	for i := range peers {
		peer := &peers[i]
		result := evaluate.Validator(program, &peer.Metrics, criteriaSet, nil)

		var atRisk []AtRiskMetric
		var worstEpochs *uint32

		for _, cr := range result.CriterionResults {
			if !cr.Passed {
				continue
			}
			boundary, ok := passingBoundary(&peer.Metrics, cr)
			if !ok {
				continue
			}
			margin := marginPercent(boundary)
			if margin > marginPct {
				continue
			}

			trend, epochs := classifyTrend(peer, cr.MetricKey, boundary)
			atRisk = append(atRisk, AtRiskMetric{
				Metric:       cr.MetricKey,
				CurrentValue: boundary.value,
				Threshold:    boundary.threshold,
				Margin:       margin,
				Trend:        trend,
			})
			if epochs != nil && (worstEpochs == nil || *epochs < *worstEpochs) {
				worstEpochs = epochs
			}
		}

		if len(atRisk) == 0 {
			continue
		}
		out = append(out, VulnerableValidator{
			VotePubkey:            peer.Metrics.VotePubkey,
			Program:               program,
			MetricsAtRisk:         atRisk,
			EpochsUntilLikelyLoss: worstEpochs,
			CurrentDelegation:     peer.CurrentDelegation,
		})
	}

	return out
}

// boundaryInfo captures where a passing numeric reading sits relative
// to the constraint edge it could cross.
type boundaryInfo struct {
	value     float64
	threshold float64
	distance  float64
	// direction is +1 when larger values move away from the boundary
	// (Min constraints) and -1 when smaller values do (Max constraints).
	direction float64
}

// passingBoundary computes the boundary a passing numeric criterion
// could fail across. Non-numeric and custom constraints carry no
// meaningful margin.
func passingBoundary(metrics *model.ValidatorMetrics, cr model.CriterionResult) (boundaryInfo, bool) {
	value, ok := metrics.NumericValue(cr.MetricKey)
	if !ok {
		return boundaryInfo{}, false
	}

	switch cr.Required.Kind {
	case model.ConstraintMin:
		return boundaryInfo{
			value:     value,
			threshold: cr.Required.Min,
			distance:  value - cr.Required.Min,
			direction: 1,
		}, true
	case model.ConstraintMax:
		return boundaryInfo{
			value:     value,
			threshold: cr.Required.Max,
			distance:  cr.Required.Max - value,
			direction: -1,
		}, true
	case model.ConstraintRange:
		lower := value - cr.Required.Min
		upper := cr.Required.Max - value
		if lower <= upper {
			return boundaryInfo{value: value, threshold: cr.Required.Min, distance: lower, direction: 1}, true
		}
		return boundaryInfo{value: value, threshold: cr.Required.Max, distance: upper, direction: -1}, true
	default:
		return boundaryInfo{}, false
	}
}

// marginPercent expresses the boundary distance as a percentage of the
// threshold magnitude. A zero threshold uses the raw distance so that
// tight-to-zero constraints still register.
func marginPercent(b boundaryInfo) float64 {
	if b.threshold == 0 {
		return math.Abs(b.distance) * 100
	}
	return math.Abs(b.distance) / math.Abs(b.threshold) * 100
}

// classifyTrend compares the current reading with the previous one.
// Movement away from the boundary beyond the noise threshold is
// improving; movement toward it is deteriorating. When deteriorating,
// the epochs-until-loss extrapolates the observed per-epoch rate.
func classifyTrend(peer *model.PeerSnapshot, key types.MetricKey, b boundaryInfo) (Trend, *uint32) {
	if peer.PreviousMetrics == nil {
		return TrendStable, nil
	}
	previous, ok := peer.PreviousMetrics.NumericValue(key)
	if !ok {
		return TrendStable, nil
	}

	// Positive movement is movement away from the boundary.
	movement := (b.value - previous) * b.direction
	switch {
	case movement > trendNoise:
		return TrendImproving, nil
	case movement < -trendNoise:
		rate := -movement
		epochs := uint32(math.Ceil(b.distance / rate))
		return TrendDeteriorating, &epochs
	default:
		return TrendStable, nil
	}
}
