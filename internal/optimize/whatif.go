package optimize

import (
	"context"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/programs"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// MetricTarget is one hypothetical change: set metric to value
type MetricTarget struct {
	Metric types.MetricKey `json:"metric"`
	To     float64         `json:"to"`
}

// MetricChange records an applied hypothetical change
type MetricChange struct {
	Metric types.MetricKey `json:"metric"`
	From   float64         `json:"from"`
	To     float64         `json:"to"`
}

// WhatIfResult reports how hypothetical metric changes move
// eligibility across all evaluated programs.
type WhatIfResult struct {
	ChangesApplied      []MetricChange            `json:"changes_applied"`
	Before              []model.EligibilityResult `json:"before"`
	After               []model.EligibilityResult `json:"after"`
	ProgramsGained      []types.ProgramID         `json:"programs_gained"`
	ProgramsLost        []types.ProgramID         `json:"programs_lost"`
	NetDelegationChange float64                   `json:"net_delegation_change_sol"`
}

// SimulateWhatIf evaluates all (filtered) programs against the current
// metrics, applies the requested changes to a clone, and re-evaluates.
// Targets for text or bool metrics are silently skipped and do not
// appear in ChangesApplied. Criteria fetch failures propagate verbatim:
// the simulator does not synthesize defaults.
func SimulateWhatIf(
	ctx context.Context,
	registry *programs.Registry,
	currentMetrics *model.ValidatorMetrics,
	targets []MetricTarget,
	filter []types.ProgramID,
) (*WhatIfResult, error) {
	before, err := programs.EvaluateAll(ctx, registry, currentMetrics, filter)
	if err != nil {
		return nil, err
	}

	changed := currentMetrics.Clone()
	var applied []MetricChange
	for _, target := range targets {
		from, ok := changed.NumericValue(target.Metric)
		if !ok {
			continue
		}
		if changed.ApplyNumericChange(target.Metric, target.To) {
			applied = append(applied, MetricChange{
				Metric: target.Metric,
				From:   from,
				To:     target.To,
			})
		}
	}

	after, err := programs.EvaluateAll(ctx, registry, &changed, filter)
	if err != nil {
		return nil, err
	}

	return &WhatIfResult{
		ChangesApplied:      applied,
		Before:              before,
		After:               after,
		ProgramsGained:      flipped(before, after, false),
		ProgramsLost:        flipped(before, after, true),
		NetDelegationChange: delegationSum(after) - delegationSum(before),
	}, nil
}

// flipped lists programs whose eligibility moved from wasEligible to
// !wasEligible between the two runs, matched by program identity.
func flipped(before, after []model.EligibilityResult, wasEligible bool) []types.ProgramID {
	var out []types.ProgramID
	for i := range before {
		old := &before[i]
		for j := range after {
			updated := &after[j]
			if updated.Program != old.Program {
				continue
			}
			if old.Eligible == wasEligible && updated.Eligible == !wasEligible {
				out = append(out, updated.Program)
			}
			break
		}
	}
	return out
}

// delegationSum totals estimated delegation; ineligible results carry
// no estimate and contribute nothing.
func delegationSum(results []model.EligibilityResult) float64 {
	var sum float64
	for i := range results {
		if results[i].EstimatedDelegation != nil {
			sum += *results[i].EstimatedDelegation
		}
	}
	return sum
}
