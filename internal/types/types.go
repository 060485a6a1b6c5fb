// Package types contains shared type definitions used across multiple packages
package types

import (
	"fmt"
	"strings"
)

// ProgramID identifies a delegation program supported by the oracle
type ProgramID string

// Supported delegation programs, in canonical order
const (
	ProgramSFDP       ProgramID = "sfdp"
	ProgramMarinade   ProgramID = "marinade"
	ProgramJPool      ProgramID = "jpool"
	ProgramBlazeStake ProgramID = "blazestake"
	ProgramJito       ProgramID = "jito"
	ProgramSanctum    ProgramID = "sanctum"
)

// AllPrograms returns every supported program in canonical order.
// The slice is freshly allocated so callers may reorder it.
func AllPrograms() []ProgramID {
	return []ProgramID{
		ProgramSFDP,
		ProgramMarinade,
		ProgramJPool,
		ProgramBlazeStake,
		ProgramJito,
		ProgramSanctum,
	}
}

// DisplayName returns the human-readable name of the program
func (p ProgramID) DisplayName() string {
	switch p {
	case ProgramSFDP:
		return "SFDP"
	case ProgramMarinade:
		return "Marinade"
	case ProgramJPool:
		return "JPool"
	case ProgramBlazeStake:
		return "BlazeStake"
	case ProgramJito:
		return "Jito"
	case ProgramSanctum:
		return "Sanctum"
	default:
		return string(p)
	}
}

// ParseProgramID converts a raw string into a ProgramID.
// Only the boundary layer (CLI flags, query params) should call this;
// the engine operates on validated values exclusively.
func ParseProgramID(s string) (ProgramID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sfdp", "solana-foundation":
		return ProgramSFDP, nil
	case "marinade":
		return ProgramMarinade, nil
	case "jpool", "j_pool":
		return ProgramJPool, nil
	case "blazestake", "blaze":
		return ProgramBlazeStake, nil
	case "jito":
		return ProgramJito, nil
	case "sanctum":
		return ProgramSanctum, nil
	default:
		return "", fmt.Errorf("unknown program id: %q", s)
	}
}

// MetricKey identifies a measurable validator attribute
type MetricKey string

// Well-known metric keys. Any other non-empty key is treated as a custom
// numeric metric resolved through ValidatorMetrics.CustomNumeric.
const (
	MetricCommission               MetricKey = "commission"
	MetricActivatedStake           MetricKey = "activated_stake"
	MetricSkipRate                 MetricKey = "skip_rate"
	MetricVoteCredits              MetricKey = "vote_credits"
	MetricUptimePercent            MetricKey = "uptime_percent"
	MetricSolanaVersion            MetricKey = "solana_version"
	MetricDatacenterConcentration  MetricKey = "datacenter_concentration"
	MetricSuperminorityStatus      MetricKey = "superminority_status"
	MetricMevCommission            MetricKey = "mev_commission"
	MetricStakeConcentration       MetricKey = "stake_concentration"
	MetricInfrastructureDiversity  MetricKey = "infrastructure_diversity"
)

var knownMetricKeys = map[MetricKey]struct{}{
	MetricCommission:              {},
	MetricActivatedStake:          {},
	MetricSkipRate:                {},
	MetricVoteCredits:             {},
	MetricUptimePercent:           {},
	MetricSolanaVersion:           {},
	MetricDatacenterConcentration: {},
	MetricSuperminorityStatus:     {},
	MetricMevCommission:           {},
	MetricStakeConcentration:      {},
	MetricInfrastructureDiversity: {},
}

// IsCustom reports whether the key falls outside the well-known set
func (k MetricKey) IsCustom() bool {
	_, known := knownMetricKeys[k]
	return !known
}

// ParseMetricKey normalizes a raw string into a MetricKey. Unknown but
// non-empty names become custom keys; empty names are rejected.
func ParseMetricKey(s string) (MetricKey, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch normalized {
	case "commission":
		return MetricCommission, nil
	case "activated_stake", "stake", "active_stake":
		return MetricActivatedStake, nil
	case "skip_rate":
		return MetricSkipRate, nil
	case "vote_credits", "credits":
		return MetricVoteCredits, nil
	case "uptime_percent", "uptime":
		return MetricUptimePercent, nil
	case "solana_version", "version":
		return MetricSolanaVersion, nil
	case "datacenter_concentration", "dc_concentration":
		return MetricDatacenterConcentration, nil
	case "superminority_status", "superminority":
		return MetricSuperminorityStatus, nil
	case "mev_commission":
		return MetricMevCommission, nil
	case "stake_concentration":
		return MetricStakeConcentration, nil
	case "infrastructure_diversity", "infra_diversity":
		return MetricInfrastructureDiversity, nil
	case "":
		return "", fmt.Errorf("unknown metric key: %q", s)
	default:
		return MetricKey(normalized), nil
	}
}
