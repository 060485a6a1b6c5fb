// Package evaluate matches validator metrics against program criteria sets.
package evaluate

import (
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// Validator evaluates one validator against one program's criteria set.
// The eligibility gate is an unweighted AND over all criterion results;
// the weighted score is computed independently and never overrides the
// gate. estimatedDelegation is attached only when the validator is
// eligible. Evaluation never fails: unknown metrics degrade to a
// guaranteed-fail sentinel instead of returning an error.
func Validator(
	program types.ProgramID,
	metrics *model.ValidatorMetrics,
	criteriaSet *model.CriteriaSet,
	estimatedDelegation *float64,
) model.EligibilityResult {
	criterionResults := make([]model.CriterionResult, 0, len(criteriaSet.Criteria))
	var weightedPass, weightedTotal float64

	for _, criterion := range criteriaSet.Criteria {
		result := Criterion(metrics, criterion)
		weight := criterion.EffectiveWeight()
		weightedTotal += weight
		if result.Passed {
			weightedPass += weight
		}
		criterionResults = append(criterionResults, result)
	}

	eligible := true
	for _, r := range criterionResults {
		if !r.Passed {
			eligible = false
			break
		}
	}

	var score *float64
	if weightedTotal > 0 {
		s := weightedPass / weightedTotal
		score = &s
	}

	out := model.EligibilityResult{
		Program:          program,
		Eligible:         eligible,
		Score:            score,
		CriterionResults: criterionResults,
	}
	if eligible {
		out.EstimatedDelegation = estimatedDelegation
	}
	return out
}

// Criterion matches a single criterion against the validator's reading.
// A metric the validator has no reading for resolves to Text("unknown"),
// which fails every non-custom constraint by type mismatch.
func Criterion(metrics *model.ValidatorMetrics, criterion model.Criterion) model.CriterionResult {
	yourValue := metrics.Value(criterion.Metric)
	passed, gap := match(criterion, yourValue)

	return model.CriterionResult{
		CriterionName: criterion.Name,
		MetricKey:     criterion.Metric,
		YourValue:     yourValue,
		Required:      criterion.Constraint,
		Passed:        passed,
		Gap:           gap,
	}
}

// match applies the constraint to the reading. Gaps are only produced
// for numeric failures; every other failure carries no gap.
func match(criterion model.Criterion, value model.MetricValue) (bool, *model.GapDetail) {
	constraint := criterion.Constraint

	// Custom constraints are an escape hatch and always pass,
	// regardless of value type.
	if constraint.Kind == model.ConstraintCustom {
		return true, nil
	}

	switch value.Kind {
	case model.ValueNumeric:
		switch constraint.Kind {
		case model.ConstraintMin:
			if value.Num >= constraint.Min {
				return true, nil
			}
			return false, numericGap(criterion.Metric, value.Num, constraint.Min, constraint.Min-value.Num)
		case model.ConstraintMax:
			if value.Num <= constraint.Max {
				return true, nil
			}
			return false, numericGap(criterion.Metric, value.Num, constraint.Max, value.Num-constraint.Max)
		case model.ConstraintRange:
			if value.Num >= constraint.Min && value.Num <= constraint.Max {
				return true, nil
			}
			if value.Num < constraint.Min {
				return false, numericGap(criterion.Metric, value.Num, constraint.Min, constraint.Min-value.Num)
			}
			return false, numericGap(criterion.Metric, value.Num, constraint.Max, value.Num-constraint.Max)
		}
	case model.ValueText:
		switch constraint.Kind {
		case model.ConstraintEquals:
			return value.Text == constraint.Value, nil
		case model.ConstraintOneOf:
			for _, v := range constraint.Values {
				if value.Text == v {
					return true, nil
				}
			}
			return false, nil
		}
	case model.ValueBool:
		if constraint.Kind == model.ConstraintBoolean {
			return value.Flag == constraint.Flag, nil
		}
	}

	// Type mismatch: fail with no actionable gap.
	return false, nil
}

func numericGap(metric types.MetricKey, current, required, delta float64) *model.GapDetail {
	return &model.GapDetail{
		MetricKey:      metric,
		CurrentValue:   current,
		RequiredValue:  required,
		Delta:          delta,
		EffortEstimate: EstimateEffort(metric, delta, required),
	}
}
