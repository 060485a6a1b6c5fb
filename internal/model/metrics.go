package model

import (
	"github.com/yourorg/delegation-oracle/internal/types"
)

// ValidatorMetrics is one validator's measured state: one value per
// well-known metric plus a map for custom numeric extensions.
// Treated as read-only by the engine; the what-if simulator mutates an
// explicit clone through ApplyNumericChange.
type ValidatorMetrics struct {
	VotePubkey               string             `json:"vote_pubkey"`
	Commission               float64            `json:"commission"`
	ActivatedStake           float64            `json:"activated_stake"`
	SkipRate                 float64            `json:"skip_rate"`
	VoteCredits              float64            `json:"vote_credits"`
	UptimePercent            float64            `json:"uptime_percent"`
	SolanaVersion            string             `json:"solana_version"`
	DatacenterConcentration  float64            `json:"datacenter_concentration"`
	SuperminorityStatus      bool               `json:"superminority_status"`
	MevCommission            float64            `json:"mev_commission"`
	StakeConcentration       float64            `json:"stake_concentration"`
	InfrastructureDiversity  float64            `json:"infrastructure_diversity"`
	CustomNumeric            map[string]float64 `json:"custom_numeric,omitempty"`
}

// SampleMetrics returns a representative metrics snapshot used by demos
// and the offline collector fallback.
func SampleMetrics(votePubkey string) ValidatorMetrics {
	return ValidatorMetrics{
		VotePubkey:              votePubkey,
		Commission:              5.0,
		ActivatedStake:          156_000.0,
		SkipRate:                3.2,
		VoteCredits:             98.5,
		UptimePercent:           99.1,
		SolanaVersion:           "1.18.26",
		DatacenterConcentration: 56.0,
		SuperminorityStatus:     false,
		MevCommission:           8.0,
		StakeConcentration:      0.18,
		InfrastructureDiversity: 0.65,
	}
}

// Value resolves the reading for a metric key. Custom keys resolve
// through CustomNumeric and default to 0 when unset.
func (m *ValidatorMetrics) Value(key types.MetricKey) MetricValue {
	switch key {
	case types.MetricCommission:
		return Numeric(m.Commission)
	case types.MetricActivatedStake:
		return Numeric(m.ActivatedStake)
	case types.MetricSkipRate:
		return Numeric(m.SkipRate)
	case types.MetricVoteCredits:
		return Numeric(m.VoteCredits)
	case types.MetricUptimePercent:
		return Numeric(m.UptimePercent)
	case types.MetricSolanaVersion:
		return Text(m.SolanaVersion)
	case types.MetricDatacenterConcentration:
		return Numeric(m.DatacenterConcentration)
	case types.MetricSuperminorityStatus:
		return Bool(m.SuperminorityStatus)
	case types.MetricMevCommission:
		return Numeric(m.MevCommission)
	case types.MetricStakeConcentration:
		return Numeric(m.StakeConcentration)
	case types.MetricInfrastructureDiversity:
		return Numeric(m.InfrastructureDiversity)
	default:
		return Numeric(m.CustomNumeric[string(key)])
	}
}

// NumericValue resolves a key to its float reading, reporting false for
// text and bool metrics.
func (m *ValidatorMetrics) NumericValue(key types.MetricKey) (float64, bool) {
	v := m.Value(key)
	if v.Kind != ValueNumeric {
		return 0, false
	}
	return v.Num, true
}

// ApplyNumericChange sets a numeric metric to a new value. Text and
// bool metrics refuse the change and report false.
func (m *ValidatorMetrics) ApplyNumericChange(key types.MetricKey, to float64) bool {
	switch key {
	case types.MetricCommission:
		m.Commission = to
	case types.MetricActivatedStake:
		m.ActivatedStake = to
	case types.MetricSkipRate:
		m.SkipRate = to
	case types.MetricVoteCredits:
		m.VoteCredits = to
	case types.MetricUptimePercent:
		m.UptimePercent = to
	case types.MetricDatacenterConcentration:
		m.DatacenterConcentration = to
	case types.MetricMevCommission:
		m.MevCommission = to
	case types.MetricStakeConcentration:
		m.StakeConcentration = to
	case types.MetricInfrastructureDiversity:
		m.InfrastructureDiversity = to
	case types.MetricSolanaVersion, types.MetricSuperminorityStatus:
		return false
	default:
		if m.CustomNumeric == nil {
			m.CustomNumeric = make(map[string]float64)
		}
		m.CustomNumeric[string(key)] = to
	}
	return true
}

// Clone returns a deep copy safe to mutate independently
func (m *ValidatorMetrics) Clone() ValidatorMetrics {
	out := *m
	if m.CustomNumeric != nil {
		out.CustomNumeric = make(map[string]float64, len(m.CustomNumeric))
		for k, v := range m.CustomNumeric {
			out.CustomNumeric[k] = v
		}
	}
	return out
}

// PeerSnapshot is one cohort member fed to the vulnerability analyzer:
// current metrics, the previous observation when available, and the
// delegation currently at stake.
type PeerSnapshot struct {
	Metrics            ValidatorMetrics  `json:"metrics"`
	PreviousMetrics    *ValidatorMetrics `json:"previous_metrics,omitempty"`
	CurrentDelegation  float64           `json:"current_delegation_sol"`
}
