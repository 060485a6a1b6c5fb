// Package validation filters implausible peer snapshots before they
// reach the vulnerability analyzer. Bad cohort data produces phantom
// at-risk findings, so snapshots that cannot describe a real validator
// are dropped up front.
package validation

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/model"
)

// Options holds configuration for the snapshot filtering process
type Options struct {
	// MaxCommission is the highest believable fee percentage
	MaxCommission float64

	// MaxSkipRate is the highest believable skip-rate percentage
	MaxSkipRate float64

	// RequireVotePubkey drops snapshots with an empty identity
	RequireVotePubkey bool

	// EnableOutlierDetection enables IQR-based skip-rate outlier removal
	EnableOutlierDetection bool

	// OutlierIQRMultiplier defines sensitivity for outlier detection (1.5 is standard)
	OutlierIQRMultiplier float64
}

// DefaultOptions returns sensible defaults for cohort filtering
func DefaultOptions() Options {
	return Options{
		MaxCommission:          100.0,
		MaxSkipRate:            100.0,
		RequireVotePubkey:      true,
		EnableOutlierDetection: true,
		OutlierIQRMultiplier:   1.5,
	}
}

// FilterImplausible removes peer snapshots that fail basic plausibility
// checks. This is the main entrypoint for the validation package.
func FilterImplausible(peers []model.PeerSnapshot) []model.PeerSnapshot {
	return FilterImplausibleWithOptions(peers, DefaultOptions())
}

// FilterImplausibleWithOptions removes snapshots with custom options
func FilterImplausibleWithOptions(peers []model.PeerSnapshot, opts Options) []model.PeerSnapshot {
	valid := filterBasicCriteria(peers, opts)

	// Outlier detection needs a big enough cohort for quartiles to mean anything
	if opts.EnableOutlierDetection && len(valid) > 3 {
		return filterSkipRateOutliers(valid, opts.OutlierIQRMultiplier)
	}
	return valid
}

func filterBasicCriteria(peers []model.PeerSnapshot, opts Options) []model.PeerSnapshot {
	valid := make([]model.PeerSnapshot, 0, len(peers))
	for i := range peers {
		peer := &peers[i]
		m := &peer.Metrics
		if reason := implausibleReason(m, opts); reason != "" {
			logrus.WithFields(logrus.Fields{
				"vote_pubkey": m.VotePubkey,
				"reason":      reason,
			}).Debug("Dropping implausible peer snapshot")
			continue
		}
		valid = append(valid, *peer)
	}
	return valid
}

func implausibleReason(m *model.ValidatorMetrics, opts Options) string {
	switch {
	case opts.RequireVotePubkey && m.VotePubkey == "":
		return "empty vote pubkey"
	case m.Commission < 0 || m.Commission > opts.MaxCommission:
		return "commission out of range"
	case m.SkipRate < 0 || m.SkipRate > opts.MaxSkipRate:
		return "skip rate out of range"
	case m.UptimePercent < 0 || m.UptimePercent > 100:
		return "uptime out of range"
	case m.VoteCredits < 0 || m.VoteCredits > 100:
		return "vote credits out of range"
	case m.ActivatedStake < 0:
		return "negative activated stake"
	case math.IsNaN(m.SkipRate) || math.IsNaN(m.ActivatedStake):
		return "NaN reading"
	default:
		return ""
	}
}

// filterSkipRateOutliers removes snapshots whose skip rate falls
// outside the IQR fence. A node reporting a skip rate wildly unlike
// the cohort is usually a measurement artifact, not a real peer.
func filterSkipRateOutliers(peers []model.PeerSnapshot, iqrMultiplier float64) []model.PeerSnapshot {
	rates := make([]float64, len(peers))
	for i := range peers {
		rates[i] = peers[i].Metrics.SkipRate
	}
	sort.Float64s(rates)

	q1 := quartile(rates, 0.25)
	q3 := quartile(rates, 0.75)
	iqr := q3 - q1
	lower := q1 - iqrMultiplier*iqr
	upper := q3 + iqrMultiplier*iqr

	valid := make([]model.PeerSnapshot, 0, len(peers))
	for i := range peers {
		rate := peers[i].Metrics.SkipRate
		if rate < lower || rate > upper {
			logrus.WithFields(logrus.Fields{
				"vote_pubkey": peers[i].Metrics.VotePubkey,
				"skip_rate":   rate,
			}).Debug("Dropping skip-rate outlier from cohort")
			continue
		}
		valid = append(valid, peers[i])
	}
	return valid
}

// quartile interpolates the q-quantile of sorted values
func quartile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	base := int(pos)
	if base+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(base)
	return sorted[base] + frac*(sorted[base+1]-sorted[base])
}
