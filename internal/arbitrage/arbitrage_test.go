package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

func ineligibleResult(program types.ProgramID, gaps ...model.GapDetail) model.EligibilityResult {
	result := model.EligibilityResult{Program: program, Eligible: false}
	for i := range gaps {
		result.CriterionResults = append(result.CriterionResults, model.CriterionResult{
			CriterionName: string(gaps[i].MetricKey),
			MetricKey:     gaps[i].MetricKey,
			Passed:        false,
			Gap:           &gaps[i],
		})
	}
	return result
}

func TestBuildOpportunitiesSkipsEligible(t *testing.T) {
	results := []model.EligibilityResult{
		{Program: types.ProgramMarinade, Eligible: true},
	}

	assert.Empty(t, BuildOpportunities(results, nil))
}

func TestBuildOpportunitiesSkipsNonNumericFailures(t *testing.T) {
	// A failure with no gap (text mismatch) has nothing actionable.
	results := []model.EligibilityResult{
		{
			Program:  types.ProgramJito,
			Eligible: false,
			CriterionResults: []model.CriterionResult{
				{CriterionName: "version", Passed: false},
			},
		},
	}

	assert.Empty(t, BuildOpportunities(results, nil))
}

func TestBuildOpportunitiesRankedByROI(t *testing.T) {
	results := []model.EligibilityResult{
		ineligibleResult(types.ProgramJito, model.GapDetail{
			MetricKey: types.MetricMevCommission, Delta: 2.0, EffortEstimate: model.EffortTrivial,
		}),
		ineligibleResult(types.ProgramSFDP, model.GapDetail{
			MetricKey: types.MetricActivatedStake, Delta: 30_000, EffortEstimate: model.EffortHard,
		}),
	}
	gains := map[types.ProgramID]float64{
		types.ProgramJito: 8_000,
		types.ProgramSFDP: 20_000,
	}

	opportunities := BuildOpportunities(results, gains)
	require.Len(t, opportunities, 2)

	// Jito: 8000 / 1 = 8000. SFDP: 20000 / 4 = 5000.
	assert.Equal(t, types.ProgramJito, opportunities[0].Program)
	assert.InDelta(t, 8_000.0, opportunities[0].ROIScore, 1e-9)
	assert.Equal(t, types.ProgramSFDP, opportunities[1].Program)
	assert.InDelta(t, 5_000.0, opportunities[1].ROIScore, 1e-9)

	for i := 1; i < len(opportunities); i++ {
		assert.GreaterOrEqual(t, opportunities[i-1].ROIScore, opportunities[i].ROIScore)
	}
}

func TestBuildOpportunitiesTotalEffortIsWeakestLink(t *testing.T) {
	results := []model.EligibilityResult{
		ineligibleResult(types.ProgramSFDP,
			model.GapDetail{MetricKey: types.MetricCommission, Delta: 1.0, EffortEstimate: model.EffortTrivial},
			model.GapDetail{MetricKey: types.MetricActivatedStake, Delta: 50_000, EffortEstimate: model.EffortImpossible},
		),
	}

	opportunities := BuildOpportunities(results, map[types.ProgramID]float64{types.ProgramSFDP: 10_000})
	require.Len(t, opportunities, 1)
	assert.Equal(t, model.EffortImpossible, opportunities[0].TotalEffort)
	assert.Len(t, opportunities[0].Gaps, 2)
}

func TestBuildOpportunitiesMissingGainDefaultsToZero(t *testing.T) {
	results := []model.EligibilityResult{
		ineligibleResult(types.ProgramSanctum, model.GapDetail{
			MetricKey: types.MetricSkipRate, Delta: 0.5, EffortEstimate: model.EffortModerate,
		}),
	}

	opportunities := BuildOpportunities(results, map[types.ProgramID]float64{})
	require.Len(t, opportunities, 1)
	assert.Zero(t, opportunities[0].EstimatedGain)
	assert.Zero(t, opportunities[0].ROIScore)
}

func TestTotalGreaterNaNSortsLast(t *testing.T) {
	nan := 0.0
	nan /= nan

	assert.False(t, totalGreater(nan, 1.0))
	assert.True(t, totalGreater(1.0, nan))
	assert.False(t, totalGreater(nan, nan))
	assert.True(t, totalGreater(2.0, 1.0))
	assert.False(t, totalGreater(1.0, 2.0))
}
