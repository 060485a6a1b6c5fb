// Package optimize turns evaluation output into cross-program conflict
// reports, prioritized recommendations, and what-if simulations.
package optimize

import (
	"fmt"
	"math"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// ConflictType classifies how two programs' requirements collide
type ConflictType string

const (
	// ConflictDirectContradiction: no value can satisfy both programs.
	ConflictDirectContradiction ConflictType = "direct_contradiction"
	// ConflictTensionZone: a satisfying window exists but is narrow.
	ConflictTensionZone ConflictType = "tension_zone"
	// ConflictIndirectImpact: jointly satisfiable, but optimizing for
	// one program has side effects worth surfacing.
	ConflictIndirectImpact ConflictType = "indirect_impact"
)

// Conflict is one pair of colliding requirements on a shared metric
type Conflict struct {
	Metric         types.MetricKey  `json:"metric"`
	ProgramA       types.ProgramID  `json:"program_a"`
	ProgramAWants  model.Constraint `json:"program_a_wants"`
	ProgramB       types.ProgramID  `json:"program_b"`
	ProgramBWants  model.Constraint `json:"program_b_wants"`
	ConflictType   ConflictType     `json:"conflict_type"`
	Recommendation string           `json:"recommendation"`
}

type constraintRef struct {
	program    types.ProgramID
	metric     types.MetricKey
	constraint model.Constraint
}

// DetectConflicts compares every pair of constraints that share a
// metric across different programs. Per-program criteria counts are
// small, so the quadratic pass is fine. An empty result means no
// overlapping requirements, not an error.
func DetectConflicts(criteriaSets []model.CriteriaSet) []Conflict {
	var refs []constraintRef
	for _, set := range criteriaSets {
		for _, criterion := range set.Criteria {
			refs = append(refs, constraintRef{
				program:    set.Program,
				metric:     criterion.Metric,
				constraint: criterion.Constraint,
			})
		}
	}

	var conflicts []Conflict
	for i := 0; i < len(refs); i++ {
		for j := i + 1; j < len(refs); j++ {
			a, b := &refs[i], &refs[j]
			if a.metric != b.metric || a.program == b.program {
				continue
			}
			if conflict := compareConstraints(a, b); conflict != nil {
				conflicts = append(conflicts, *conflict)
			}
		}
	}
	return conflicts
}

func compareConstraints(a, b *constraintRef) *Conflict {
	build := func(conflictType ConflictType, recommendation string) *Conflict {
		return &Conflict{
			Metric:         a.metric,
			ProgramA:       a.program,
			ProgramAWants:  a.constraint,
			ProgramB:       b.program,
			ProgramBWants:  b.constraint,
			ConflictType:   conflictType,
			Recommendation: recommendation,
		}
	}

	if min, max, ok := minMaxPair(a.constraint, b.constraint); ok {
		if min > max {
			return build(ConflictDirectContradiction, fmt.Sprintf(
				"%s requires >= %g, but %s requires <= %g. Prioritize program ROI and pick one target.",
				a.program.DisplayName(), min, b.program.DisplayName(), max))
		}
		if (max - min) <= math.Max(math.Abs(min), 1.0)*0.1 {
			return build(ConflictTensionZone, fmt.Sprintf(
				"Constraint window is narrow (%g..%g). Introduce monitoring guardrails before changing %s.",
				min, max, a.metric))
		}
	}

	if a.constraint.Kind == model.ConstraintRange && b.constraint.Kind == model.ConstraintRange {
		overlapMin := math.Max(a.constraint.Min, b.constraint.Min)
		overlapMax := math.Min(a.constraint.Max, b.constraint.Max)
		if overlapMin > overlapMax {
			return build(ConflictDirectContradiction,
				"No overlapping range between programs for this metric.")
		}
		smaller := math.Min(
			math.Abs(a.constraint.Max-a.constraint.Min),
			math.Abs(b.constraint.Max-b.constraint.Min),
		)
		if (overlapMax - overlapMin) <= smaller*0.2 {
			return build(ConflictTensionZone, fmt.Sprintf(
				"Shared feasible range is tight: [%g, %g]", overlapMin, overlapMax))
		}
	}

	// Fee metrics always interact across programs: lowering a fee for
	// one program's sake reduces revenue everywhere.
	switch a.metric {
	case types.MetricCommission, types.MetricMevCommission:
		return build(ConflictIndirectImpact, fmt.Sprintf(
			"Lower %s may improve eligibility but can reduce validator revenue; model infra budget impact.",
			a.metric))
	}
	return nil
}

// minMaxPair extracts (min, max) when the two constraints form a
// Min/Max pairing in either order.
func minMaxPair(a, b model.Constraint) (float64, float64, bool) {
	if a.Kind == model.ConstraintMin && b.Kind == model.ConstraintMax {
		return a.Min, b.Max, true
	}
	if a.Kind == model.ConstraintMax && b.Kind == model.ConstraintMin {
		return b.Min, a.Max, true
	}
	return 0, 0, false
}
