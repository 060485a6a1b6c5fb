package programs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/evaluate"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

const blazeStakeSourceURL = "https://stake.solblaze.org/api/v1/cls_validators"

// blazeStakeProgram covers SolBlaze's Custom Liquid Staking delegation
type blazeStakeProgram struct {
	client *apiClient
}

func (p *blazeStakeProgram) ID() types.ProgramID { return types.ProgramBlazeStake }

func (p *blazeStakeProgram) Name() string { return "BlazeStake" }

func (p *blazeStakeProgram) FetchCriteria(_ context.Context) (*model.CriteriaSet, error) {
	set := model.NewCriteriaSet(p.ID(), blazeStakeSourceURL, []model.Criterion{
		{
			Name:        "Commission",
			Metric:      types.MetricCommission,
			Constraint:  model.Max(7.0),
			Weight:      model.Weight(1.2),
			Description: "Fees must remain low for pool delegators",
		},
		{
			Name:        "Skip rate strict",
			Metric:      types.MetricSkipRate,
			Constraint:  model.Max(2.5),
			Weight:      model.Weight(2.2),
			Description: "BlazeStake strongly prefers low skip-rate validators",
		},
		{
			Name:        "Uptime",
			Metric:      types.MetricUptimePercent,
			Constraint:  model.Min(98.5),
			Weight:      model.Weight(1.9),
			Description: "Reliability SLO for delegation set",
		},
		{
			Name:        "Vote credits",
			Metric:      types.MetricVoteCredits,
			Constraint:  model.Min(97.5),
			Weight:      model.Weight(1.7),
			Description: "Consensus efficiency",
		},
		{
			Name:        "Datacenter concentration",
			Metric:      types.MetricDatacenterConcentration,
			Constraint:  model.Max(50.0),
			Weight:      model.Weight(1.0),
			Description: "Concentration risk ceiling",
		},
		{
			Name:        "Infrastructure diversity",
			Metric:      types.MetricInfrastructureDiversity,
			Constraint:  model.Min(0.7),
			Weight:      model.Weight(1.0),
			Description: "Hardware/network redundancy expectation",
		},
	})
	return &set, nil
}

func (p *blazeStakeProgram) FetchEligibleSet(ctx context.Context) ([]EligibleValidator, error) {
	payload, err := p.client.fetchJSON(ctx, blazeStakeSourceURL)
	if err != nil {
		logrus.WithError(err).WithField("program", p.ID()).Warn("Eligible-set fetch failed, using baseline snapshot")
		return blazeStakeBaselineSet(), nil
	}
	parsed := parseEligibleValidators(payload,
		[]string{"vote_account", "voteAccount", "vote_pubkey"},
		[]string{"score"},
		[]string{"delegated", "active_stake", "stake"},
		maxEligibleSetItems,
	)
	if len(parsed) == 0 {
		return blazeStakeBaselineSet(), nil
	}
	return parsed, nil
}

func (p *blazeStakeProgram) Evaluate(metrics *model.ValidatorMetrics, criteria *model.CriteriaSet) model.EligibilityResult {
	return evaluate.Validator(p.ID(), metrics, criteria, p.EstimateDelegation(metrics, criteria))
}

// EstimateDelegation penalizes skip rate hard, up to a 2000 SOL haircut
func (p *blazeStakeProgram) EstimateDelegation(metrics *model.ValidatorMetrics, _ *model.CriteriaSet) *float64 {
	performance := (metrics.VoteCredits + metrics.UptimePercent) / 2.0
	skipPenalty := metrics.SkipRate * 400.0
	if skipPenalty > 2_000.0 {
		skipPenalty = 2_000.0
	}
	estimate := 22_000.0 + performance*120.0 - skipPenalty
	if estimate < 0 {
		estimate = 0
	}
	return solAmount(estimate)
}

func blazeStakeBaselineSet() []EligibleValidator {
	score1, score2 := 0.79, 0.75
	return []EligibleValidator{
		{VotePubkey: "BlazeSet01", Score: &score1, DelegatedSOL: solAmount(16_200.0)},
		{VotePubkey: "BlazeSet02", Score: &score2, DelegatedSOL: solAmount(14_900.0)},
	}
}
