package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

func setFor(program types.ProgramID, metric types.MetricKey, constraint model.Constraint) model.CriteriaSet {
	return model.NewCriteriaSet(program, "https://example.com/criteria", []model.Criterion{
		{Name: string(metric), Metric: metric, Constraint: constraint},
	})
}

func TestDetectConflictsDirectContradiction(t *testing.T) {
	sets := []model.CriteriaSet{
		setFor(types.ProgramSFDP, types.MetricActivatedStake, model.Min(200_000)),
		setFor(types.ProgramJPool, types.MetricActivatedStake, model.Max(100_000)),
	}

	conflicts := DetectConflicts(sets)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictDirectContradiction, conflicts[0].ConflictType)
	assert.Equal(t, types.MetricActivatedStake, conflicts[0].Metric)
	assert.Contains(t, conflicts[0].Recommendation, "SFDP")
	assert.Contains(t, conflicts[0].Recommendation, "JPool")
}

func TestDetectConflictsOrderIndependent(t *testing.T) {
	forward := []model.CriteriaSet{
		setFor(types.ProgramSFDP, types.MetricActivatedStake, model.Min(200_000)),
		setFor(types.ProgramJPool, types.MetricActivatedStake, model.Max(100_000)),
	}
	reversed := []model.CriteriaSet{forward[1], forward[0]}

	a := DetectConflicts(forward)
	b := DetectConflicts(reversed)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ConflictType, b[0].ConflictType)
	assert.Equal(t, a[0].Metric, b[0].Metric)
}

func TestDetectConflictsTensionZone(t *testing.T) {
	sets := []model.CriteriaSet{
		setFor(types.ProgramSFDP, types.MetricUptimePercent, model.Min(95.0)),
		setFor(types.ProgramJPool, types.MetricUptimePercent, model.Max(100.0)),
	}

	conflicts := DetectConflicts(sets)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTensionZone, conflicts[0].ConflictType)
}

func TestDetectConflictsWideWindowIsClean(t *testing.T) {
	sets := []model.CriteriaSet{
		setFor(types.ProgramSFDP, types.MetricActivatedStake, model.Min(100.0)),
		setFor(types.ProgramJPool, types.MetricActivatedStake, model.Max(100_000.0)),
	}

	assert.Empty(t, DetectConflicts(sets))
}

func TestDetectConflictsDisjointRanges(t *testing.T) {
	sets := []model.CriteriaSet{
		setFor(types.ProgramSFDP, types.MetricSkipRate, model.Range(0.0, 10.0)),
		setFor(types.ProgramJPool, types.MetricSkipRate, model.Range(20.0, 30.0)),
	}

	conflicts := DetectConflicts(sets)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictDirectContradiction, conflicts[0].ConflictType)
}

func TestDetectConflictsTightRangeOverlap(t *testing.T) {
	sets := []model.CriteriaSet{
		setFor(types.ProgramSFDP, types.MetricSkipRate, model.Range(0.0, 10.0)),
		setFor(types.ProgramJPool, types.MetricSkipRate, model.Range(9.5, 30.0)),
	}

	conflicts := DetectConflicts(sets)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTensionZone, conflicts[0].ConflictType)
}

func TestDetectConflictsCommissionIndirectImpact(t *testing.T) {
	sets := []model.CriteriaSet{
		setFor(types.ProgramMarinade, types.MetricCommission, model.Max(8.0)),
		setFor(types.ProgramJito, types.MetricCommission, model.Max(10.0)),
	}

	conflicts := DetectConflicts(sets)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictIndirectImpact, conflicts[0].ConflictType)
}

func TestDetectConflictsIgnoresSameProgram(t *testing.T) {
	set := model.NewCriteriaSet(types.ProgramSFDP, "https://example.com/criteria", []model.Criterion{
		{Name: "floor", Metric: types.MetricActivatedStake, Constraint: model.Min(200_000)},
		{Name: "ceiling", Metric: types.MetricActivatedStake, Constraint: model.Max(100_000)},
	})

	assert.Empty(t, DetectConflicts([]model.CriteriaSet{set}))
}

func TestDetectConflictsIgnoresDifferentMetrics(t *testing.T) {
	sets := []model.CriteriaSet{
		setFor(types.ProgramSFDP, types.MetricActivatedStake, model.Min(200_000)),
		setFor(types.ProgramJPool, types.MetricSkipRate, model.Max(3.0)),
	}

	assert.Empty(t, DetectConflicts(sets))
}
