package optimize

import (
	"fmt"
	"strings"

	"github.com/yourorg/delegation-oracle/internal/arbitrage"
)

// epochsPerMonth approximates Solana's cadence of ~2.2-day epochs
const epochsPerMonth = 13.7

// RevenueModel translates delegation gains into operator revenue terms
type RevenueModel struct {
	// RevenuePerSOLPerEpoch is the commission yield earned per delegated
	// SOL per epoch
	RevenuePerSOLPerEpoch float64 `json:"revenue_per_sol_per_epoch"`

	// MonthlyInfraCostUSD is the operator's fixed monthly infrastructure
	// spend, used for breakeven estimates
	MonthlyInfraCostUSD float64 `json:"monthly_infra_cost_usd"`
}

// MonthlyRevenueSOL projects the monthly reward income from an
// additional delegation amount.
func (m RevenueModel) MonthlyRevenueSOL(delegationSOL float64) float64 {
	return delegationSOL * m.RevenuePerSOLPerEpoch * epochsPerMonth
}

// BreakevenSOLPriceUSD is the SOL price at which the projected monthly
// revenue alone covers the infrastructure cost. Zero when the gain
// produces no revenue.
func (m RevenueModel) BreakevenSOLPriceUSD(delegationSOL float64) float64 {
	monthly := m.MonthlyRevenueSOL(delegationSOL)
	if monthly <= 0 {
		return 0
	}
	return m.MonthlyInfraCostUSD / monthly
}

// Recommendation is one prioritized action item for the operator
type Recommendation struct {
	Priority                   int     `json:"priority"`
	Title                      string  `json:"title"`
	Rationale                  string  `json:"rationale"`
	ExpectedGain               float64 `json:"expected_gain_sol"`
	ProjectedMonthlyRevenueSOL float64 `json:"projected_monthly_revenue_sol"`
	BreakevenSOLPriceUSD       float64 `json:"breakeven_sol_price_usd"`
	Effort                     string  `json:"effort"`
}

// BuildRecommendations merges ranked opportunities and conflicts into
// a prioritized action list. Opportunities fill the list first in ROI
// order; remaining slots go to direct contradictions only (tension and
// indirect conflicts are informational). Priorities run sequentially
// from 1 in insertion order. The revenue model annotates each
// opportunity with its projected monthly reward income; a zero model
// leaves the projections at zero.
func BuildRecommendations(
	opportunities []arbitrage.Opportunity,
	conflicts []Conflict,
	maxItems int,
	revenue RevenueModel,
) []Recommendation {
	var recommendations []Recommendation
	rank := 1

	for _, opportunity := range opportunities {
		if len(recommendations) >= maxItems {
			break
		}

		actions := make([]string, 0, len(opportunity.Gaps))
		for _, gap := range opportunity.Gaps {
			actions = append(actions, fmt.Sprintf("%s (delta %.3f)", gap.MetricKey, gap.Delta))
		}

		rationale := fmt.Sprintf("Estimated +%.0f SOL if eligible. Required changes: %s.",
			opportunity.EstimatedGain, strings.Join(actions, ", "))
		monthly := revenue.MonthlyRevenueSOL(opportunity.EstimatedGain)
		if monthly > 0 {
			rationale += fmt.Sprintf(" Projected +%.2f SOL/month in rewards.", monthly)
		}

		recommendations = append(recommendations, Recommendation{
			Priority:                   rank,
			Title:                      fmt.Sprintf("Target %s", opportunity.Program.DisplayName()),
			Rationale:                  rationale,
			ExpectedGain:               opportunity.EstimatedGain,
			ProjectedMonthlyRevenueSOL: monthly,
			BreakevenSOLPriceUSD:       revenue.BreakevenSOLPriceUSD(opportunity.EstimatedGain),
			Effort:                     opportunity.TotalEffort.String(),
		})
		rank++
	}

	for _, conflict := range conflicts {
		if len(recommendations) >= maxItems {
			break
		}
		if conflict.ConflictType != ConflictDirectContradiction {
			continue
		}

		recommendations = append(recommendations, Recommendation{
			Priority: rank,
			Title: fmt.Sprintf("Resolve %s conflict (%s vs %s)",
				conflict.Metric, conflict.ProgramA.DisplayName(), conflict.ProgramB.DisplayName()),
			Rationale:    conflict.Recommendation,
			ExpectedGain: 0,
			Effort:       "high",
		})
		rank++
	}

	return recommendations
}
