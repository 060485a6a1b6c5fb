// Package metrics collects and conditions validator metrics for
// evaluation: the collector with operator overrides, normalization
// clamps, the peer cohort sampler, and a caller-owned cache.
package metrics

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/model"
)

// defaultVotePubkey is used when no validator is specified
const defaultVotePubkey = "DemoVote11111111111111111111111111111111111"

// Overrides lets operators pin individual metrics, overriding whatever
// the collector produced. Nil fields leave the collected value alone.
type Overrides struct {
	Commission              *float64 `json:"commission,omitempty" yaml:"commission,omitempty"`
	ActivatedStake          *float64 `json:"activated_stake,omitempty" yaml:"activated_stake,omitempty"`
	SkipRate                *float64 `json:"skip_rate,omitempty" yaml:"skip_rate,omitempty"`
	VoteCredits             *float64 `json:"vote_credits,omitempty" yaml:"vote_credits,omitempty"`
	UptimePercent           *float64 `json:"uptime_percent,omitempty" yaml:"uptime_percent,omitempty"`
	SolanaVersion           *string  `json:"solana_version,omitempty" yaml:"solana_version,omitempty"`
	DatacenterConcentration *float64 `json:"datacenter_concentration,omitempty" yaml:"datacenter_concentration,omitempty"`
	SuperminorityStatus     *bool    `json:"superminority_status,omitempty" yaml:"superminority_status,omitempty"`
	MevCommission           *float64 `json:"mev_commission,omitempty" yaml:"mev_commission,omitempty"`
	StakeConcentration      *float64 `json:"stake_concentration,omitempty" yaml:"stake_concentration,omitempty"`
	InfrastructureDiversity *float64 `json:"infrastructure_diversity,omitempty" yaml:"infrastructure_diversity,omitempty"`
}

// Collect produces the metrics snapshot for one validator. Live RPC
// collection is not wired yet; the collector starts from the sample
// profile, applies operator overrides, then normalizes. The rpcURL is
// accepted now so callers do not change when live collection lands.
func Collect(_ context.Context, votePubkey, rpcURL string, overrides *Overrides) (model.ValidatorMetrics, error) {
	if votePubkey == "" {
		votePubkey = defaultVotePubkey
	}
	logrus.WithFields(logrus.Fields{
		"vote_pubkey": votePubkey,
		"rpc_url":     rpcURL,
	}).Debug("Collecting validator metrics")

	metrics := model.SampleMetrics(votePubkey)
	if overrides != nil {
		ApplyOverrides(&metrics, overrides)
	}
	Normalize(&metrics)
	return metrics, nil
}

// ApplyOverrides copies every set override onto the metrics in place
func ApplyOverrides(metrics *model.ValidatorMetrics, overrides *Overrides) {
	if v := overrides.Commission; v != nil {
		metrics.Commission = *v
	}
	if v := overrides.ActivatedStake; v != nil {
		metrics.ActivatedStake = *v
	}
	if v := overrides.SkipRate; v != nil {
		metrics.SkipRate = *v
	}
	if v := overrides.VoteCredits; v != nil {
		metrics.VoteCredits = *v
	}
	if v := overrides.UptimePercent; v != nil {
		metrics.UptimePercent = *v
	}
	if v := overrides.SolanaVersion; v != nil {
		metrics.SolanaVersion = *v
	}
	if v := overrides.DatacenterConcentration; v != nil {
		metrics.DatacenterConcentration = *v
	}
	if v := overrides.SuperminorityStatus; v != nil {
		metrics.SuperminorityStatus = *v
	}
	if v := overrides.MevCommission; v != nil {
		metrics.MevCommission = *v
	}
	if v := overrides.StakeConcentration; v != nil {
		metrics.StakeConcentration = *v
	}
	if v := overrides.InfrastructureDiversity; v != nil {
		metrics.InfrastructureDiversity = *v
	}
}

// SamplePeers derives a synthetic competitor cohort around a base
// validator profile. Each peer degrades progressively so the cohort
// spans the interesting boundary region, and carries a previous
// observation trending slightly worse for skip rate and uptime.
func SamplePeers(base *model.ValidatorMetrics) []model.PeerSnapshot {
	peers := make([]model.PeerSnapshot, 0, 8)
	for idx := 0; idx < 8; idx++ {
		m := base.Clone()
		m.VotePubkey = fmt.Sprintf("CompetitorVote%02d", idx)
		m.SkipRate += float64(idx) * 0.25
		m.Commission += float64(idx%3) * 0.5
		m.MevCommission += float64(idx%4) * 0.6
		m.UptimePercent -= float64(idx) * 0.15
		m.ActivatedStake += float64(idx) * 8_000.0

		previous := m.Clone()
		previous.SkipRate -= 0.15
		previous.UptimePercent += 0.1

		peers = append(peers, model.PeerSnapshot{
			Metrics:           m,
			PreviousMetrics:   &previous,
			CurrentDelegation: 7_500.0 + float64(idx)*2_500.0,
		})
	}
	return peers
}
