package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/delegation-oracle/internal/config"
	"github.com/yourorg/delegation-oracle/internal/history"
	"github.com/yourorg/delegation-oracle/internal/metrics"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/programs"
	"github.com/yourorg/delegation-oracle/internal/types"
)

func newTestService(t *testing.T, withStore bool) *Service {
	t.Helper()
	var store *history.Store
	if withStore {
		var err error
		store, err = history.OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
	}
	cfg := config.Default()
	cfg.Validator.VotePubkey = "ConfigVote1111"
	return NewService(cfg, programs.NewRegistry(), store)
}

func TestResolveContextFallsBackToConfig(t *testing.T) {
	service := newTestService(t, false)

	sc, err := service.ResolveContext("", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ConfigVote1111", sc.VotePubkey)
	assert.Equal(t, config.Default().RPC.URL, sc.RPCURL)
	assert.Equal(t, types.AllPrograms(), sc.Programs)
}

func TestResolveContextExplicitParameters(t *testing.T) {
	service := newTestService(t, false)

	sc, err := service.ResolveContext("RequestVote1111", "https://rpc.example.com", []string{"marinade", "jito"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "RequestVote1111", sc.VotePubkey)
	assert.Equal(t, "https://rpc.example.com", sc.RPCURL)
	assert.Equal(t, []types.ProgramID{types.ProgramMarinade, types.ProgramJito}, sc.Programs)
}

func TestResolveContextDeduplicatesPrograms(t *testing.T) {
	service := newTestService(t, false)

	sc, err := service.ResolveContext("", "", []string{"marinade", "Marinade", "jito"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.ProgramID{types.ProgramMarinade, types.ProgramJito}, sc.Programs)
}

func TestResolveContextRejectsUnknownProgram(t *testing.T) {
	service := newTestService(t, false)

	_, err := service.ResolveContext("", "", []string{"lido"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown program id")
}

func TestResolveContextAllProgramsWhenNothingConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Programs.Enabled = nil
	service := NewService(cfg, programs.NewRegistry(), nil)

	sc, err := service.ResolveContext("", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.AllPrograms(), sc.Programs)
}

func TestStatusEvaluatesSelectedPrograms(t *testing.T) {
	service := newTestService(t, false)
	sc, err := service.ResolveContext("validator-1", "", []string{"marinade", "jito"}, nil)
	require.NoError(t, err)

	report, err := service.Status(context.Background(), sc, false)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ScanID)
	assert.Equal(t, "validator-1", report.Validator)
	assert.False(t, report.ScannedAt.IsZero())
	require.Len(t, report.Results, 2)
	assert.Equal(t, types.ProgramMarinade, report.Results[0].Program)
	assert.Equal(t, types.ProgramJito, report.Results[1].Program)
}

func TestStatusPersistsHistory(t *testing.T) {
	service := newTestService(t, true)
	sc, err := service.ResolveContext("validator-1", "", []string{"marinade"}, nil)
	require.NoError(t, err)

	_, err = service.Status(context.Background(), sc, true)
	require.NoError(t, err)

	records, err := service.store.Records("validator-1", types.ProgramMarinade, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].Epoch)

	hint, err := service.store.NextEpochHint()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), hint)
}

func TestStatusWithoutStoreSkipsPersistence(t *testing.T) {
	service := newTestService(t, false)
	sc, err := service.ResolveContext("validator-1", "", []string{"marinade"}, nil)
	require.NoError(t, err)

	_, err = service.Status(context.Background(), sc, true)
	require.NoError(t, err)
}

func TestOverridesBypassMetricsCache(t *testing.T) {
	service := newTestService(t, false)
	commission := 1.0

	pinned := Context{
		VotePubkey: "validator-1",
		Overrides:  &metrics.Overrides{Commission: &commission},
	}
	m, err := service.collectMetrics(context.Background(), pinned)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Commission)

	// A later unpinned request must not see the pinned value.
	m, err = service.collectMetrics(context.Background(), Context{VotePubkey: "validator-1"})
	require.NoError(t, err)
	assert.Equal(t, model.SampleMetrics("validator-1").Commission, m.Commission)
}

func TestWhatIfRequiresTargets(t *testing.T) {
	service := newTestService(t, false)
	sc := Context{VotePubkey: "validator-1", Programs: []types.ProgramID{types.ProgramMarinade}}

	_, err := service.WhatIf(context.Background(), sc, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one metric change")
}

func TestDriftRequiresStore(t *testing.T) {
	service := newTestService(t, false)

	_, err := service.Drift(context.Background(), Context{VotePubkey: "validator-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history store")
}

func TestDriftFirstRunSeedsWithoutReports(t *testing.T) {
	service := newTestService(t, true)
	sc := Context{VotePubkey: "validator-1", Programs: []types.ProgramID{types.ProgramMarinade}}

	reports, err := service.Drift(context.Background(), sc)
	require.NoError(t, err)
	assert.Empty(t, reports, "no stored snapshot means nothing to diff")

	stored, err := service.store.LatestCriteria(types.ProgramMarinade)
	require.NoError(t, err)
	require.NotNil(t, stored, "first run stores the fetched snapshot")

	// Second run diffs against the seed; criteria are unchanged.
	reports, err = service.Drift(context.Background(), sc)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestDriftReportsStoredCriteriaChange(t *testing.T) {
	service := newTestService(t, true)
	sc := Context{VotePubkey: "validator-1", Programs: []types.ProgramID{types.ProgramMarinade}}

	// Seed history with an older, stricter snapshot than the adapter
	// publishes today.
	stale := model.NewCriteriaSet(types.ProgramMarinade, "https://example.com/stale", []model.Criterion{
		{Name: "Commission", Metric: types.MetricCommission, Constraint: model.Max(1.0)},
	})
	require.NoError(t, service.store.PutCriteria(&stale))

	reports, err := service.Drift(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, types.ProgramMarinade, reports[0].Program)
	assert.NotEmpty(t, reports[0].Changes)
}

func TestHistoryRequiresStore(t *testing.T) {
	service := newTestService(t, false)

	_, _, err := service.History(context.Background(), Context{VotePubkey: "validator-1"}, "", 10)
	require.Error(t, err)
}

func TestHistoryAfterPersistedScan(t *testing.T) {
	service := newTestService(t, true)
	sc, err := service.ResolveContext("validator-1", "", []string{"marinade", "jito"}, nil)
	require.NoError(t, err)

	_, err = service.Status(context.Background(), sc, true)
	require.NoError(t, err)

	summary, records, err := service.History(context.Background(), sc, "", 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Contains(t, summary, "Eligibility ratio:")
}

func TestVulnerableUsesConfiguredMarginDefault(t *testing.T) {
	service := newTestService(t, false)
	sc := Context{VotePubkey: "validator-1", Programs: []types.ProgramID{types.ProgramMarinade}}

	vulnerable, err := service.Vulnerable(context.Background(), sc, "", 0)
	require.NoError(t, err)
	for _, v := range vulnerable {
		assert.Equal(t, types.ProgramMarinade, v.Program)
		assert.NotEmpty(t, v.MetricsAtRisk)
	}
}

func TestVulnerableProgramNarrowsScope(t *testing.T) {
	service := newTestService(t, false)
	sc := Context{VotePubkey: "validator-1", Programs: types.AllPrograms()}

	vulnerable, err := service.Vulnerable(context.Background(), sc, types.ProgramJito, 5.0)
	require.NoError(t, err)
	for _, v := range vulnerable {
		assert.Equal(t, types.ProgramJito, v.Program)
	}
}

func TestOptimizeAppliesRevenueModelFromConfig(t *testing.T) {
	service := newTestService(t, false)
	// The sample profile misses Marinade's skip-rate cap, so one ranked
	// opportunity comes back.
	sc := Context{VotePubkey: "validator-1", Programs: []types.ProgramID{types.ProgramMarinade}}

	recommendations, err := service.Optimize(context.Background(), sc, 5)
	require.NoError(t, err)
	require.NotEmpty(t, recommendations)

	top := recommendations[0]
	expected := top.ExpectedGain * service.cfg.Optimizer.RevenuePerSOLPerEpoch * 13.7
	assert.InDelta(t, expected, top.ProjectedMonthlyRevenueSOL, 1e-9)
	assert.InDelta(t, service.cfg.Optimizer.MonthlyInfraCostUSD/expected, top.BreakevenSOLPriceUSD, 1e-9)
	assert.Contains(t, top.Rationale, "SOL/month")
}

func TestQueueRejectsUnknownPool(t *testing.T) {
	service := newTestService(t, false)

	_, err := service.Queue(context.Background(), Context{VotePubkey: "validator-1"}, types.ProgramID("lido"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pool")
}

func TestCohortsRequiresStore(t *testing.T) {
	service := newTestService(t, false)

	_, err := service.Cohorts(context.Background(), Context{VotePubkey: "validator-1"}, 0)
	require.Error(t, err)
}

func TestCohortsCountsTransitions(t *testing.T) {
	service := newTestService(t, true)

	appendRecord := func(program types.ProgramID, epoch uint64, eligible bool) {
		record := model.EligibilityRecord{
			VotePubkey: "validator-1",
			Program:    program,
			Epoch:      epoch,
			Eligible:   eligible,
			CapturedAt: time.Now().UTC(),
		}
		require.NoError(t, service.store.AppendRecord(&record))
	}

	// Marinade: lost at 701, regained at 702.
	appendRecord(types.ProgramMarinade, 700, true)
	appendRecord(types.ProgramMarinade, 701, false)
	appendRecord(types.ProgramMarinade, 702, true)
	// Jito: never eligible.
	appendRecord(types.ProgramJito, 700, false)
	appendRecord(types.ProgramJito, 701, false)

	report, err := service.Cohorts(context.Background(), Context{VotePubkey: "validator-1"}, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, report.LookbackRecords)
	require.Len(t, report.Cohorts, 2)

	// Sorted by eligible ratio descending: Marinade (2/3) before Jito (0/2).
	marinade := report.Cohorts[0]
	assert.Equal(t, types.ProgramMarinade, marinade.Program)
	assert.Equal(t, 3, marinade.Samples)
	assert.InDelta(t, 2.0/3.0, marinade.EligibleRatio, 1e-9)
	assert.Equal(t, 1, marinade.GainEvents)
	assert.Equal(t, 1, marinade.LossEvents)

	jito := report.Cohorts[1]
	assert.Equal(t, types.ProgramJito, jito.Program)
	assert.Zero(t, jito.EligibleRatio)
	assert.Zero(t, jito.GainEvents)
}

func TestThreatsScoring(t *testing.T) {
	service := newTestService(t, false)
	// The sample profile fails Marinade's skip-rate ceiling, giving one
	// failed criterion.
	sc := Context{VotePubkey: "validator-1", Programs: []types.ProgramID{types.ProgramMarinade}}

	assessment, err := service.Threats(context.Background(), sc)
	require.NoError(t, err)
	assert.NotEmpty(t, assessment.AssessmentID)
	require.Len(t, assessment.Threats, 1)

	threat := assessment.Threats[0]
	assert.False(t, threat.Eligible)
	assert.Equal(t, 1, threat.FailedCriteria)
	assert.InDelta(t, 0.78, threat.RiskScore, 1e-9)
	assert.Equal(t, "high", threat.ThreatLevel)
	assert.Contains(t, threat.Notes, "Skip rate")
	assert.Positive(t, threat.StakeAtRisk)
	assert.InDelta(t, threat.RiskScore, assessment.OverallRiskScore, 1e-9)
}

func TestThreatsEligibleProgramScoresLow(t *testing.T) {
	service := newTestService(t, false)
	skipRate := 0.5
	sc := Context{
		VotePubkey: "validator-1",
		Programs:   []types.ProgramID{types.ProgramMarinade},
		Overrides:  &metrics.Overrides{SkipRate: &skipRate},
	}

	assessment, err := service.Threats(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, assessment.Threats, 1)
	assert.True(t, assessment.Threats[0].Eligible)
	assert.Equal(t, 0.12, assessment.Threats[0].RiskScore)
	assert.Equal(t, "low", assessment.Threats[0].ThreatLevel)
	assert.Zero(t, assessment.Threats[0].StakeAtRisk)
}

func TestWatchRunsRequestedIterations(t *testing.T) {
	service := newTestService(t, false)
	sc := Context{VotePubkey: "validator-1", Programs: []types.ProgramID{types.ProgramMarinade}}

	iterations, err := service.Watch(context.Background(), sc, WatchOptions{
		Interval:   5 * time.Millisecond,
		Iterations: 2,
	})
	require.NoError(t, err)
	require.Len(t, iterations, 2)
	assert.Equal(t, 1, iterations[0].Iteration)
	assert.Equal(t, 2, iterations[1].Iteration)
	require.Len(t, iterations[0].Results, 1)
	assert.Empty(t, iterations[1].Alerts, "identical consecutive results raise no transition alerts")
}

func TestWatchStopsOnCancelledContext(t *testing.T) {
	service := newTestService(t, false)
	sc := Context{VotePubkey: "validator-1", Programs: []types.ProgramID{types.ProgramMarinade}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	iterations, err := service.Watch(ctx, sc, WatchOptions{
		Interval:   time.Hour,
		Iterations: 3,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, iterations, 1, "the first cycle completes before the wait observes cancellation")
}
