package model

import (
	"math"
	"time"

	"github.com/yourorg/delegation-oracle/internal/types"
)

// EffortLevel is an ordered estimate of how hard closing a gap is.
// Ordering uses the declared sequence; Cost is only ever used as a
// divisor in ROI calculations.
type EffortLevel int

const (
	EffortTrivial EffortLevel = iota
	EffortModerate
	EffortHard
	EffortImpossible
)

// Cost returns the fixed numeric cost used for ROI division
func (e EffortLevel) Cost() float64 {
	switch e {
	case EffortTrivial:
		return 1.0
	case EffortModerate:
		return 2.0
	case EffortHard:
		return 4.0
	default:
		return 1_000.0
	}
}

// String returns the lowercase label used in output and recommendations
func (e EffortLevel) String() string {
	switch e {
	case EffortTrivial:
		return "trivial"
	case EffortModerate:
		return "moderate"
	case EffortHard:
		return "hard"
	default:
		return "impossible"
	}
}

// MarshalJSON renders the effort level as its label
func (e EffortLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + e.String() + `"`), nil
}

// GapDetail quantifies a failed numeric criterion: how far the current
// value sits from the nearest satisfying bound, and how hard closing
// that distance is estimated to be.
type GapDetail struct {
	MetricKey      types.MetricKey `json:"metric_key"`
	CurrentValue   float64         `json:"current_value"`
	RequiredValue  float64         `json:"required_value"`
	Delta          float64         `json:"delta"`
	EffortEstimate EffortLevel     `json:"effort_estimate"`
}

// CriterionResult is the outcome of matching one criterion against a
// validator's reading. Gap is present only for numeric failures.
type CriterionResult struct {
	CriterionName string          `json:"criterion_name"`
	MetricKey     types.MetricKey `json:"metric_key"`
	YourValue     MetricValue     `json:"your_value"`
	Required      Constraint      `json:"required"`
	Passed        bool            `json:"passed"`
	Gap           *GapDetail      `json:"gap,omitempty"`
}

// EligibilityResult is the full evaluation of one validator against one
// program. Eligible is the unweighted AND over all criterion results;
// Score is the independent weighted pass ratio and never gates
// eligibility. EstimatedDelegation is populated only when eligible.
type EligibilityResult struct {
	Program             types.ProgramID   `json:"program"`
	Eligible            bool              `json:"eligible"`
	Score               *float64          `json:"score,omitempty"`
	CriterionResults    []CriterionResult `json:"criterion_results"`
	EstimatedDelegation *float64          `json:"estimated_delegation_sol,omitempty"`
}

// PassedCount returns how many criteria passed
func (r *EligibilityResult) PassedCount() int {
	n := 0
	for _, c := range r.CriterionResults {
		if c.Passed {
			n++
		}
	}
	return n
}

// FailedCount returns how many criteria failed
func (r *EligibilityResult) FailedCount() int {
	return len(r.CriterionResults) - r.PassedCount()
}

// MarginalCount returns how many gaps sit within epsilonRatio relative
// distance of their required value. Gaps with a zero required value are
// never counted (relative distance is undefined there).
func (r *EligibilityResult) MarginalCount(epsilonRatio float64) int {
	n := 0
	for _, c := range r.CriterionResults {
		if c.Gap == nil || c.Gap.RequiredValue == 0 {
			continue
		}
		if math.Abs(c.Gap.Delta)/math.Abs(c.Gap.RequiredValue) <= epsilonRatio {
			n++
		}
	}
	return n
}

// EligibilityRecord is one append-only history row capturing an
// evaluation outcome at a point in time.
type EligibilityRecord struct {
	VotePubkey    string          `json:"vote_pubkey"`
	Program       types.ProgramID `json:"program"`
	Epoch         uint64          `json:"epoch"`
	Eligible      bool            `json:"eligible"`
	Score         *float64        `json:"score,omitempty"`
	DelegationSOL *float64        `json:"delegation_sol,omitempty"`
	CapturedAt    time.Time       `json:"captured_at"`
}

// RecordFromResult builds a history record from an evaluation outcome
func RecordFromResult(votePubkey string, epoch uint64, result *EligibilityResult) EligibilityRecord {
	return EligibilityRecord{
		VotePubkey:    votePubkey,
		Program:       result.Program,
		Epoch:         epoch,
		Eligible:      result.Eligible,
		Score:         result.Score,
		DelegationSOL: result.EstimatedDelegation,
		CapturedAt:    time.Now().UTC(),
	}
}
