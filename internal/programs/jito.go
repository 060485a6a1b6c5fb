package programs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/evaluate"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

const jitoSourceURL = "https://kobe.mainnet.jito.network/api/v1/validators"

// jitoProgram covers the Jito StakeNet delegation set. Jito keys its
// scoring off MEV fee settings, so the criteria list is short.
type jitoProgram struct {
	client *apiClient
}

func (p *jitoProgram) ID() types.ProgramID { return types.ProgramJito }

func (p *jitoProgram) Name() string { return "Jito" }

func (p *jitoProgram) FetchCriteria(_ context.Context) (*model.CriteriaSet, error) {
	set := model.NewCriteriaSet(p.ID(), jitoSourceURL, []model.Criterion{
		{
			Name:        "MEV commission cap",
			Metric:      types.MetricMevCommission,
			Constraint:  model.Max(8.0),
			Weight:      model.Weight(2.0),
			Description: "Jito set favors low MEV fee settings",
		},
		{
			Name:        "Skip rate",
			Metric:      types.MetricSkipRate,
			Constraint:  model.Max(3.0),
			Weight:      model.Weight(1.8),
			Description: "Execution quality baseline",
		},
		{
			Name:        "Vote credits",
			Metric:      types.MetricVoteCredits,
			Constraint:  model.Min(97.8),
			Weight:      model.Weight(1.8),
			Description: "Consensus participation threshold",
		},
	})
	return &set, nil
}

func (p *jitoProgram) FetchEligibleSet(ctx context.Context) ([]EligibleValidator, error) {
	payload, err := p.client.fetchJSON(ctx, jitoSourceURL)
	if err != nil {
		logrus.WithError(err).WithField("program", p.ID()).Warn("Eligible-set fetch failed, using baseline snapshot")
		return jitoBaselineSet(), nil
	}
	parsed := parseEligibleValidators(payload,
		[]string{"vote_account", "vote_pubkey"},
		nil,
		[]string{"active_stake", "stake_amount"},
		maxEligibleSetItems,
	)
	if len(parsed) == 0 {
		return jitoBaselineSet(), nil
	}
	return parsed, nil
}

func (p *jitoProgram) Evaluate(metrics *model.ValidatorMetrics, criteria *model.CriteriaSet) model.EligibilityResult {
	return evaluate.Validator(p.ID(), metrics, criteria, p.EstimateDelegation(metrics, criteria))
}

func (p *jitoProgram) EstimateDelegation(metrics *model.ValidatorMetrics, _ *model.CriteriaSet) *float64 {
	mevBonus := 0.0
	if metrics.MevCommission < 8.0 {
		mevBonus = (8.0 - metrics.MevCommission) * 600.0
	}
	return solAmount(6_500.0 + mevBonus + metrics.VoteCredits*35.0)
}

func jitoBaselineSet() []EligibleValidator {
	return []EligibleValidator{
		{VotePubkey: "JitoSet01", DelegatedSOL: solAmount(8_500.0)},
		{VotePubkey: "JitoSet02", DelegatedSOL: solAmount(7_800.0)},
	}
}
