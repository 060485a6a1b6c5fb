package programs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/evaluate"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

const jpoolSourceURL = "https://api.jpool.one/validators"

type jpoolProgram struct {
	client *apiClient
}

func (p *jpoolProgram) ID() types.ProgramID { return types.ProgramJPool }

func (p *jpoolProgram) Name() string { return "JPool" }

func (p *jpoolProgram) FetchCriteria(_ context.Context) (*model.CriteriaSet, error) {
	set := model.NewCriteriaSet(p.ID(), jpoolSourceURL, []model.Criterion{
		{
			Name:        "Commission",
			Metric:      types.MetricCommission,
			Constraint:  model.Max(10.0),
			Weight:      model.Weight(1.2),
			Description: "Fee competitiveness",
		},
		{
			Name:        "Skip rate",
			Metric:      types.MetricSkipRate,
			Constraint:  model.Max(3.5),
			Weight:      model.Weight(1.8),
			Description: "Reliability signal",
		},
		{
			Name:        "Uptime",
			Metric:      types.MetricUptimePercent,
			Constraint:  model.Min(98.0),
			Weight:      model.Weight(1.8),
			Description: "Operational availability",
		},
		{
			Name:        "Vote credits",
			Metric:      types.MetricVoteCredits,
			Constraint:  model.Min(97.0),
			Weight:      model.Weight(1.6),
			Description: "Consensus participation",
		},
		{
			Name:        "Min stake",
			Metric:      types.MetricActivatedStake,
			Constraint:  model.Min(25_000.0),
			Weight:      model.Weight(0.8),
			Description: "Small viability floor",
		},
	})
	return &set, nil
}

func (p *jpoolProgram) FetchEligibleSet(ctx context.Context) ([]EligibleValidator, error) {
	payload, err := p.client.fetchJSON(ctx, jpoolSourceURL)
	if err != nil {
		logrus.WithError(err).WithField("program", p.ID()).Warn("Eligible-set fetch failed, using baseline snapshot")
		return jpoolBaselineSet(), nil
	}
	parsed := parseEligibleValidators(payload,
		[]string{"vote_account", "vote_pubkey"},
		[]string{"score", "total_score"},
		[]string{"pool_stake", "active_stake"},
		maxEligibleSetItems,
	)
	if len(parsed) == 0 {
		return jpoolBaselineSet(), nil
	}
	return parsed, nil
}

func (p *jpoolProgram) Evaluate(metrics *model.ValidatorMetrics, criteria *model.CriteriaSet) model.EligibilityResult {
	return evaluate.Validator(p.ID(), metrics, criteria, p.EstimateDelegation(metrics, criteria))
}

func (p *jpoolProgram) EstimateDelegation(metrics *model.ValidatorMetrics, _ *model.CriteriaSet) *float64 {
	performance := (metrics.UptimePercent + metrics.VoteCredits) * 55.0
	return solAmount(8_000.0 + performance)
}

func jpoolBaselineSet() []EligibleValidator {
	score1, score2 := 0.80, 0.77
	return []EligibleValidator{
		{VotePubkey: "JpoolSet01", Score: &score1, DelegatedSOL: solAmount(14_200.0)},
		{VotePubkey: "JpoolSet02", Score: &score2, DelegatedSOL: solAmount(12_900.0)},
	}
}
