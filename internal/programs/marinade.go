package programs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/evaluate"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

const marinadeSourceURL = "https://validators-api.marinade.finance/validators"

// marinadeProgram covers Marinade's stake-auction delegation strategy
type marinadeProgram struct {
	client *apiClient
}

func (p *marinadeProgram) ID() types.ProgramID { return types.ProgramMarinade }

func (p *marinadeProgram) Name() string { return "Marinade" }

func (p *marinadeProgram) FetchCriteria(_ context.Context) (*model.CriteriaSet, error) {
	set := model.NewCriteriaSet(p.ID(), marinadeSourceURL, []model.Criterion{
		{
			Name:        "Commission",
			Metric:      types.MetricCommission,
			Constraint:  model.Max(8.0),
			Weight:      model.Weight(1.4),
			Description: "Competitive validator fees improve score",
		},
		{
			Name:        "Skip rate",
			Metric:      types.MetricSkipRate,
			Constraint:  model.Max(3.0),
			Weight:      model.Weight(2.0),
			Description: "Block production quality signal",
		},
		{
			Name:        "Vote credits",
			Metric:      types.MetricVoteCredits,
			Constraint:  model.Min(97.5),
			Weight:      model.Weight(2.2),
			Description: "Consensus participation score",
		},
		{
			Name:        "Uptime",
			Metric:      types.MetricUptimePercent,
			Constraint:  model.Min(98.5),
			Weight:      model.Weight(1.8),
			Description: "Runtime reliability baseline",
		},
		{
			Name:        "Datacenter concentration",
			Metric:      types.MetricDatacenterConcentration,
			Constraint:  model.Max(60.0),
			Weight:      model.Weight(1.0),
			Description: "Diversity pressure against centralization",
		},
		{
			Name:        "Infrastructure diversity",
			Metric:      types.MetricInfrastructureDiversity,
			Constraint:  model.Min(0.6),
			Weight:      model.Weight(1.0),
			Description: "Redundancy and independent failover",
		},
	})
	return &set, nil
}

func (p *marinadeProgram) FetchEligibleSet(ctx context.Context) ([]EligibleValidator, error) {
	payload, err := p.client.fetchJSON(ctx, marinadeSourceURL)
	if err != nil {
		logrus.WithError(err).WithField("program", p.ID()).Warn("Eligible-set fetch failed, using baseline snapshot")
		return marinadeBaselineSet(), nil
	}
	parsed := parseEligibleValidators(payload,
		[]string{"vote_account", "vote_pubkey"},
		[]string{"score"},
		[]string{"marinade_stake", "active_stake"},
		maxEligibleSetItems,
	)
	if len(parsed) == 0 {
		return marinadeBaselineSet(), nil
	}
	return parsed, nil
}

func (p *marinadeProgram) Evaluate(metrics *model.ValidatorMetrics, criteria *model.CriteriaSet) model.EligibilityResult {
	return evaluate.Validator(p.ID(), metrics, criteria, p.EstimateDelegation(metrics, criteria))
}

// EstimateDelegation rewards consensus performance and undercuts on
// commission relative to the 10% reference fee.
func (p *marinadeProgram) EstimateDelegation(metrics *model.ValidatorMetrics, _ *model.CriteriaSet) *float64 {
	performance := (metrics.VoteCredits + metrics.UptimePercent) / 2.0
	commissionBonus := 0.0
	if metrics.Commission < 10.0 {
		commissionBonus = (10.0 - metrics.Commission) * 900.0
	}
	return solAmount(18_000.0 + performance*190.0 + commissionBonus)
}

func marinadeBaselineSet() []EligibleValidator {
	score1, score2 := 0.88, 0.84
	return []EligibleValidator{
		{VotePubkey: "MarinadeSet01", Score: &score1, DelegatedSOL: solAmount(41_000.0)},
		{VotePubkey: "MarinadeSet02", Score: &score2, DelegatedSOL: solAmount(35_500.0)},
	}
}
