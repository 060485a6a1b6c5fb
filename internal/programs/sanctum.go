package programs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/evaluate"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

const sanctumSourceURL = "https://sanctum-s-api.fly.dev/v1/validator/list"

type sanctumProgram struct {
	client *apiClient
}

func (p *sanctumProgram) ID() types.ProgramID { return types.ProgramSanctum }

func (p *sanctumProgram) Name() string { return "Sanctum" }

func (p *sanctumProgram) FetchCriteria(_ context.Context) (*model.CriteriaSet, error) {
	set := model.NewCriteriaSet(p.ID(), sanctumSourceURL, []model.Criterion{
		{
			Name:        "Minimum activated stake",
			Metric:      types.MetricActivatedStake,
			Constraint:  model.Min(200_000.0),
			Weight:      model.Weight(1.5),
			Description: "LST integrations prefer deeper liquidity",
		},
		{
			Name:        "MEV commission",
			Metric:      types.MetricMevCommission,
			Constraint:  model.Max(5.0),
			Weight:      model.Weight(1.7),
			Description: "Fee competitiveness for orderflow",
		},
		{
			Name:        "Commission",
			Metric:      types.MetricCommission,
			Constraint:  model.Max(7.0),
			Weight:      model.Weight(1.1),
			Description: "User-facing fee baseline",
		},
		{
			Name:        "Infrastructure diversity",
			Metric:      types.MetricInfrastructureDiversity,
			Constraint:  model.Min(0.7),
			Weight:      model.Weight(1.2),
			Description: "Diversity requirement for resilient routing",
		},
	})
	return &set, nil
}

func (p *sanctumProgram) FetchEligibleSet(ctx context.Context) ([]EligibleValidator, error) {
	payload, err := p.client.fetchJSON(ctx, sanctumSourceURL)
	if err != nil {
		logrus.WithError(err).WithField("program", p.ID()).Warn("Eligible-set fetch failed, using baseline snapshot")
		return sanctumBaselineSet(), nil
	}
	parsed := parseEligibleValidators(payload,
		[]string{"vote_account", "vote_pubkey", "identity"},
		nil,
		[]string{"delegated_sol", "active_stake"},
		maxEligibleSetItems,
	)
	if len(parsed) == 0 {
		return sanctumBaselineSet(), nil
	}
	return parsed, nil
}

func (p *sanctumProgram) Evaluate(metrics *model.ValidatorMetrics, criteria *model.CriteriaSet) model.EligibilityResult {
	return evaluate.Validator(p.ID(), metrics, criteria, p.EstimateDelegation(metrics, criteria))
}

func (p *sanctumProgram) EstimateDelegation(metrics *model.ValidatorMetrics, _ *model.CriteriaSet) *float64 {
	stakeFactor := (metrics.ActivatedStake / 1_000.0) * 35.0
	mevFactor := 0.0
	if metrics.MevCommission < 6.0 {
		mevFactor = (6.0 - metrics.MevCommission) * 800.0
	}
	return solAmount(10_000.0 + stakeFactor + mevFactor)
}

func sanctumBaselineSet() []EligibleValidator {
	return []EligibleValidator{
		{VotePubkey: "SanctumSet01", DelegatedSOL: solAmount(19_000.0)},
		{VotePubkey: "SanctumSet02", DelegatedSOL: solAmount(17_400.0)},
	}
}
