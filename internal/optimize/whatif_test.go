package optimize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/programs"
	"github.com/yourorg/delegation-oracle/internal/types"
)

func TestSimulateWhatIfGainsProgram(t *testing.T) {
	registry := programs.NewRegistry()
	metrics := model.SampleMetrics("validator-1")
	// The sample profile fails Marinade's skip-rate ceiling of 3.0.
	require.Greater(t, metrics.SkipRate, 3.0)

	result, err := SimulateWhatIf(context.Background(), registry, &metrics,
		[]MetricTarget{{Metric: types.MetricSkipRate, To: 1.5}},
		[]types.ProgramID{types.ProgramMarinade},
	)
	require.NoError(t, err)

	require.Len(t, result.ChangesApplied, 1)
	assert.Equal(t, types.MetricSkipRate, result.ChangesApplied[0].Metric)
	assert.Equal(t, metrics.SkipRate, result.ChangesApplied[0].From)
	assert.Equal(t, 1.5, result.ChangesApplied[0].To)

	require.Len(t, result.Before, 1)
	require.Len(t, result.After, 1)
	assert.False(t, result.Before[0].Eligible)
	assert.True(t, result.After[0].Eligible)
	assert.Equal(t, []types.ProgramID{types.ProgramMarinade}, result.ProgramsGained)
	assert.Empty(t, result.ProgramsLost)
	assert.Greater(t, result.NetDelegationChange, 0.0)
}

func TestSimulateWhatIfNoTargetsIsIdentity(t *testing.T) {
	registry := programs.NewRegistry()
	metrics := model.SampleMetrics("validator-1")

	result, err := SimulateWhatIf(context.Background(), registry, &metrics, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, result.ChangesApplied)
	assert.Empty(t, result.ProgramsGained)
	assert.Empty(t, result.ProgramsLost)
	assert.Zero(t, result.NetDelegationChange)
	require.Equal(t, len(result.Before), len(result.After))
	for i := range result.Before {
		assert.Equal(t, result.Before[i].Eligible, result.After[i].Eligible)
	}
}

func TestSimulateWhatIfSkipsNonNumericTargets(t *testing.T) {
	registry := programs.NewRegistry()
	metrics := model.SampleMetrics("validator-1")

	result, err := SimulateWhatIf(context.Background(), registry, &metrics,
		[]MetricTarget{{Metric: types.MetricSolanaVersion, To: 2.0}},
		[]types.ProgramID{types.ProgramMarinade},
	)
	require.NoError(t, err)
	assert.Empty(t, result.ChangesApplied)
}

func TestSimulateWhatIfDoesNotMutateInput(t *testing.T) {
	registry := programs.NewRegistry()
	metrics := model.SampleMetrics("validator-1")
	originalSkipRate := metrics.SkipRate

	_, err := SimulateWhatIf(context.Background(), registry, &metrics,
		[]MetricTarget{{Metric: types.MetricSkipRate, To: 0.5}},
		[]types.ProgramID{types.ProgramMarinade},
	)
	require.NoError(t, err)
	assert.Equal(t, originalSkipRate, metrics.SkipRate)
}
