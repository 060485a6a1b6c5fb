package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

func testCriteriaSet(criteria ...model.Criterion) *model.CriteriaSet {
	set := model.NewCriteriaSet(types.ProgramMarinade, "https://example.com/criteria", criteria)
	return &set
}

func TestValidatorAllPass(t *testing.T) {
	metrics := model.SampleMetrics("validator-1")
	set := testCriteriaSet(
		model.Criterion{Name: "Max commission", Metric: types.MetricCommission, Constraint: model.Max(10.0)},
		model.Criterion{Name: "Max skip rate", Metric: types.MetricSkipRate, Constraint: model.Max(5.0)},
	)
	delegation := 40_000.0

	result := Validator(types.ProgramMarinade, &metrics, set, &delegation)

	assert.True(t, result.Eligible)
	require.NotNil(t, result.Score)
	assert.Equal(t, 1.0, *result.Score)
	require.NotNil(t, result.EstimatedDelegation)
	assert.Equal(t, delegation, *result.EstimatedDelegation)
	assert.Len(t, result.CriterionResults, 2)
}

func TestValidatorSingleFailureGatesEligibility(t *testing.T) {
	metrics := model.SampleMetrics("validator-1")
	metrics.Commission = 9.0
	set := testCriteriaSet(
		model.Criterion{Name: "Max commission", Metric: types.MetricCommission, Constraint: model.Max(7.0)},
		model.Criterion{Name: "Max skip rate", Metric: types.MetricSkipRate, Constraint: model.Max(5.0)},
		model.Criterion{Name: "Min uptime", Metric: types.MetricUptimePercent, Constraint: model.Min(95.0)},
	)
	delegation := 40_000.0

	result := Validator(types.ProgramMarinade, &metrics, set, &delegation)

	assert.False(t, result.Eligible, "one failed criterion must gate eligibility regardless of score")
	assert.Nil(t, result.EstimatedDelegation, "ineligible results carry no delegation estimate")
	require.NotNil(t, result.Score)
	assert.InDelta(t, 2.0/3.0, *result.Score, 1e-9)
}

func TestValidatorWeightedScore(t *testing.T) {
	metrics := model.SampleMetrics("validator-1")
	metrics.Commission = 20.0
	set := testCriteriaSet(
		model.Criterion{Name: "Max commission", Metric: types.MetricCommission, Constraint: model.Max(10.0), Weight: model.Weight(3.0)},
		model.Criterion{Name: "Max skip rate", Metric: types.MetricSkipRate, Constraint: model.Max(5.0), Weight: model.Weight(1.0)},
	)

	result := Validator(types.ProgramMarinade, &metrics, set, nil)

	require.NotNil(t, result.Score)
	assert.InDelta(t, 0.25, *result.Score, 1e-9)
}

func TestValidatorWeightDefaults(t *testing.T) {
	metrics := model.SampleMetrics("validator-1")
	metrics.SkipRate = 50.0

	// A nil weight counts as 1.0 and a negative weight as 0, so the
	// failed negative-weight criterion must not drag the score down.
	set := testCriteriaSet(
		model.Criterion{Name: "Max commission", Metric: types.MetricCommission, Constraint: model.Max(10.0)},
		model.Criterion{Name: "Max skip rate", Metric: types.MetricSkipRate, Constraint: model.Max(5.0), Weight: model.Weight(-2.0)},
	)

	result := Validator(types.ProgramMarinade, &metrics, set, nil)

	assert.False(t, result.Eligible)
	require.NotNil(t, result.Score)
	assert.Equal(t, 1.0, *result.Score)
}

func TestValidatorEmptyCriteria(t *testing.T) {
	metrics := model.SampleMetrics("validator-1")
	set := testCriteriaSet()

	result := Validator(types.ProgramMarinade, &metrics, set, nil)

	assert.True(t, result.Eligible, "vacuous AND over zero criteria is eligible")
	assert.Nil(t, result.Score, "zero total weight produces no score")
}

func TestCriterionConstraints(t *testing.T) {
	metrics := model.SampleMetrics("validator-1")

	tests := []struct {
		name       string
		criterion  model.Criterion
		wantPassed bool
		wantGap    bool
	}{
		{
			name:       "min satisfied",
			criterion:  model.Criterion{Name: "stake", Metric: types.MetricActivatedStake, Constraint: model.Min(100_000)},
			wantPassed: true,
		},
		{
			name:       "min violated produces gap",
			criterion:  model.Criterion{Name: "stake", Metric: types.MetricActivatedStake, Constraint: model.Min(200_000)},
			wantPassed: false,
			wantGap:    true,
		},
		{
			name:       "max satisfied at boundary",
			criterion:  model.Criterion{Name: "commission", Metric: types.MetricCommission, Constraint: model.Max(5.0)},
			wantPassed: true,
		},
		{
			name:       "max violated produces gap",
			criterion:  model.Criterion{Name: "skip", Metric: types.MetricSkipRate, Constraint: model.Max(2.0)},
			wantPassed: false,
			wantGap:    true,
		},
		{
			name:       "range inside",
			criterion:  model.Criterion{Name: "uptime", Metric: types.MetricUptimePercent, Constraint: model.Range(95.0, 100.0)},
			wantPassed: true,
		},
		{
			name:       "range below lower bound",
			criterion:  model.Criterion{Name: "uptime", Metric: types.MetricUptimePercent, Constraint: model.Range(99.5, 100.0)},
			wantPassed: false,
			wantGap:    true,
		},
		{
			name:       "equals match",
			criterion:  model.Criterion{Name: "version", Metric: types.MetricSolanaVersion, Constraint: model.Equals("1.18.26")},
			wantPassed: true,
		},
		{
			name:       "equals mismatch has no gap",
			criterion:  model.Criterion{Name: "version", Metric: types.MetricSolanaVersion, Constraint: model.Equals("1.19.0")},
			wantPassed: false,
		},
		{
			name:       "one_of match",
			criterion:  model.Criterion{Name: "version", Metric: types.MetricSolanaVersion, Constraint: model.OneOf("1.18.25", "1.18.26")},
			wantPassed: true,
		},
		{
			name:       "one_of mismatch",
			criterion:  model.Criterion{Name: "version", Metric: types.MetricSolanaVersion, Constraint: model.OneOf("2.0.0")},
			wantPassed: false,
		},
		{
			name:       "boolean match",
			criterion:  model.Criterion{Name: "superminority", Metric: types.MetricSuperminorityStatus, Constraint: model.Boolean(false)},
			wantPassed: true,
		},
		{
			name:       "boolean mismatch",
			criterion:  model.Criterion{Name: "superminority", Metric: types.MetricSuperminorityStatus, Constraint: model.Boolean(true)},
			wantPassed: false,
		},
		{
			name:       "custom always passes",
			criterion:  model.Criterion{Name: "manual review", Metric: types.MetricSolanaVersion, Constraint: model.Custom("manual review required")},
			wantPassed: true,
		},
		{
			name:       "type mismatch fails without gap",
			criterion:  model.Criterion{Name: "version as number", Metric: types.MetricSolanaVersion, Constraint: model.Min(1.0)},
			wantPassed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Criterion(&metrics, tt.criterion)
			assert.Equal(t, tt.wantPassed, result.Passed)
			if tt.wantGap {
				assert.NotNil(t, result.Gap)
			} else {
				assert.Nil(t, result.Gap)
			}
		})
	}
}

func TestCriterionGapDelta(t *testing.T) {
	metrics := model.SampleMetrics("validator-1")
	metrics.Commission = 9.0

	result := Criterion(&metrics, model.Criterion{
		Name:       "Max commission",
		Metric:     types.MetricCommission,
		Constraint: model.Max(7.0),
	})

	require.NotNil(t, result.Gap)
	assert.Equal(t, 9.0, result.Gap.CurrentValue)
	assert.Equal(t, 7.0, result.Gap.RequiredValue)
	assert.InDelta(t, 2.0, result.Gap.Delta, 1e-9)
	assert.Equal(t, model.EffortTrivial, result.Gap.EffortEstimate)
}

func TestEstimateEffort(t *testing.T) {
	tests := []struct {
		name     string
		metric   types.MetricKey
		delta    float64
		required float64
		want     model.EffortLevel
	}{
		{"commission is a config change", types.MetricCommission, 5.0, 7.0, model.EffortTrivial},
		{"mev commission is a config change", types.MetricMevCommission, 2.0, 8.0, model.EffortTrivial},
		{"small skip rate gap", types.MetricSkipRate, 0.5, 5.0, model.EffortModerate},
		{"large skip rate gap", types.MetricSkipRate, 3.0, 5.0, model.EffortHard},
		{"stake gap under ten percent", types.MetricActivatedStake, 5_000, 100_000, model.EffortModerate},
		{"stake gap under thirty-five percent", types.MetricActivatedStake, 30_000, 100_000, model.EffortHard},
		{"stake gap beyond reach", types.MetricActivatedStake, 80_000, 100_000, model.EffortImpossible},
		{"stake against zero requirement", types.MetricActivatedStake, 1_000, 0, model.EffortImpossible},
		{"datacenter move", types.MetricDatacenterConcentration, 10.0, 40.0, model.EffortHard},
		{"version upgrade", types.MetricSolanaVersion, 0, 0, model.EffortTrivial},
		{"superminority is structural", types.MetricSuperminorityStatus, 0, 0, model.EffortImpossible},
		{"custom metric defaults moderate", types.MetricKey("validator_score"), 1.0, 10.0, model.EffortModerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateEffort(tt.metric, tt.delta, tt.required))
		})
	}
}

func TestEstimateDelegationNotLeakedOnMissingValue(t *testing.T) {
	metrics := model.SampleMetrics("validator-1")
	metrics.SolanaVersion = ""
	set := testCriteriaSet(
		model.Criterion{Name: "version", Metric: types.MetricSolanaVersion, Constraint: model.Equals("1.18.26")},
	)
	delegation := 10_000.0

	result := Validator(types.ProgramMarinade, &metrics, set, &delegation)

	assert.False(t, result.Eligible)
	assert.Nil(t, result.EstimatedDelegation)
}
