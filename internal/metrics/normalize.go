package metrics

import "github.com/yourorg/delegation-oracle/internal/model"

// NormalizePercent clamps a percentage reading to [0, 100]
func NormalizePercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// NormalizeRatio clamps a ratio reading to [0, 1]
func NormalizeRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Normalize clamps every bounded metric in place. Activated stake has
// no upper bound but can never be negative.
func Normalize(m *model.ValidatorMetrics) {
	m.Commission = NormalizePercent(m.Commission)
	m.SkipRate = NormalizePercent(m.SkipRate)
	m.VoteCredits = NormalizePercent(m.VoteCredits)
	m.UptimePercent = NormalizePercent(m.UptimePercent)
	m.DatacenterConcentration = NormalizePercent(m.DatacenterConcentration)
	m.MevCommission = NormalizePercent(m.MevCommission)
	m.StakeConcentration = NormalizeRatio(m.StakeConcentration)
	m.InfrastructureDiversity = NormalizeRatio(m.InfrastructureDiversity)
	if m.ActivatedStake < 0 {
		m.ActivatedStake = 0
	}
}
