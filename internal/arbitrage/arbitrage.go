// Package arbitrage ranks ineligible programs by gain-per-unit-effort.
package arbitrage

import (
	"sort"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// Opportunity is an ineligible program where closing the gaps is
// estimated to be worth pursuing. TotalEffort is the weakest link: the
// hardest gap must be fixed for eligibility.
type Opportunity struct {
	Program         types.ProgramID   `json:"program"`
	CurrentEligible bool              `json:"current_eligible"`
	Gaps            []model.GapDetail `json:"gaps"`
	TotalEffort     model.EffortLevel `json:"total_effort"`
	EstimatedGain   float64           `json:"estimated_delegation_gain_sol"`
	ROIScore        float64           `json:"roi_score"`
}

// BuildOpportunities turns failed evaluations into a ranked list of
// cheapest paths to eligibility, descending by ROI. Already-eligible
// results are skipped, as are failures with no numeric gap (nothing
// actionable to quantify).
func BuildOpportunities(
	results []model.EligibilityResult,
	gainByProgram map[types.ProgramID]float64,
) []Opportunity {
	var opportunities []Opportunity

	for i := range results {
		result := &results[i]
		if result.Eligible {
			continue
		}

		var gaps []model.GapDetail
		for _, cr := range result.CriterionResults {
			if cr.Gap != nil {
				gaps = append(gaps, *cr.Gap)
			}
		}
		if len(gaps) == 0 {
			continue
		}

		totalEffort := gaps[0].EffortEstimate
		for _, g := range gaps[1:] {
			if g.EffortEstimate > totalEffort {
				totalEffort = g.EffortEstimate
			}
		}

		gain, ok := gainByProgram[result.Program]
		if !ok {
			if result.EstimatedDelegation != nil {
				gain = *result.EstimatedDelegation
			} else {
				gain = 0
			}
		}

		roi := 0.0
		if cost := totalEffort.Cost(); cost > 0 {
			roi = gain / cost
		}

		opportunities = append(opportunities, Opportunity{
			Program:         result.Program,
			CurrentEligible: result.Eligible,
			Gaps:            gaps,
			TotalEffort:     totalEffort,
			EstimatedGain:   gain,
			ROIScore:        roi,
		})
	}

	// Total order so NaN scores sort last and ranking stays deterministic.
	sort.SliceStable(opportunities, func(i, j int) bool {
		return totalGreater(opportunities[i].ROIScore, opportunities[j].ROIScore)
	})
	return opportunities
}

// totalGreater is a NaN-safe descending comparator: NaN compares below
// every real value.
func totalGreater(a, b float64) bool {
	if a != a {
		return false
	}
	if b != b {
		return true
	}
	return a > b
}
