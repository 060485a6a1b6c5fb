// Package drift compares criteria sets fetched at different times and
// classifies how the change affects a specific validator.
package drift

import (
	"fmt"
	"sort"
	"time"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// ChangeType classifies one structural criteria change
type ChangeType string

const (
	ChangeAdded              ChangeType = "added"
	ChangeRemoved            ChangeType = "removed"
	ChangeThresholdChanged   ChangeType = "threshold_changed"
	ChangeWeightChanged      ChangeType = "weight_changed"
	ChangeDescriptionChanged ChangeType = "description_changed"
)

// Impact is the 2-snapshot eligibility-transition classification
type Impact string

const (
	ImpactNowEligible   Impact = "now_eligible"
	ImpactStillEligible Impact = "still_eligible"
	ImpactAtRisk        Impact = "at_risk"
	ImpactNowIneligible Impact = "now_ineligible"
	ImpactNotApplicable Impact = "not_applicable"
)

// AtRiskMarginRatio is the relative gap distance below which a still-
// eligible validator is classified AtRisk. Heuristic, tunable.
const AtRiskMarginRatio = 0.03

// CriterionChange records one difference between two criteria sets
type CriterionChange struct {
	CriterionName string     `json:"criterion_name"`
	ChangeType    ChangeType `json:"change_type"`
	OldValue      *string    `json:"old_value,omitempty"`
	NewValue      *string    `json:"new_value,omitempty"`
}

// Report is a full drift report for one program: the structural
// changes plus the impact on the validator being tracked.
type Report struct {
	Program     types.ProgramID   `json:"program"`
	DetectedAt  time.Time         `json:"detected_at"`
	Changes     []CriterionChange `json:"changes"`
	ImpactOnYou Impact            `json:"impact_on_you"`
}

// DiffCriteria lists the structural differences between two criteria
// sets, keyed by criterion name. For criteria present in both sets the
// threshold, weight, and description checks are independent: a single
// criterion can produce several changes.
func DiffCriteria(oldSet, newSet *model.CriteriaSet) []CriterionChange {
	oldByName := make(map[string]model.Criterion, len(oldSet.Criteria))
	newByName := make(map[string]model.Criterion, len(newSet.Criteria))
	for _, c := range oldSet.Criteria {
		oldByName[c.Name] = c
	}
	for _, c := range newSet.Criteria {
		newByName[c.Name] = c
	}

	nameSet := make(map[string]struct{}, len(oldByName)+len(newByName))
	for name := range oldByName {
		nameSet[name] = struct{}{}
	}
	for name := range newByName {
		nameSet[name] = struct{}{}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	var changes []CriterionChange
	for _, name := range names {
		oldC, inOld := oldByName[name]
		newC, inNew := newByName[name]

		switch {
		case !inOld && inNew:
			changes = append(changes, CriterionChange{
				CriterionName: name,
				ChangeType:    ChangeAdded,
				NewValue:      strPtr(newC.Constraint.String()),
			})
		case inOld && !inNew:
			changes = append(changes, CriterionChange{
				CriterionName: name,
				ChangeType:    ChangeRemoved,
				OldValue:      strPtr(oldC.Constraint.String()),
			})
		default:
			if !oldC.Constraint.Equal(newC.Constraint) {
				changes = append(changes, CriterionChange{
					CriterionName: name,
					ChangeType:    ChangeThresholdChanged,
					OldValue:      strPtr(oldC.Constraint.String()),
					NewValue:      strPtr(newC.Constraint.String()),
				})
			}
			if !weightsEqual(oldC.Weight, newC.Weight) {
				changes = append(changes, CriterionChange{
					CriterionName: name,
					ChangeType:    ChangeWeightChanged,
					OldValue:      formatWeight(oldC.Weight),
					NewValue:      formatWeight(newC.Weight),
				})
			}
			if oldC.Description != newC.Description {
				changes = append(changes, CriterionChange{
					CriterionName: name,
					ChangeType:    ChangeDescriptionChanged,
					OldValue:      strPtr(oldC.Description),
					NewValue:      strPtr(newC.Description),
				})
			}
		}
	}

	return changes
}

// ClassifyImpact maps the before/after eligibility pair to a drift
// impact. A validator that stays eligible is AtRisk when the after
// evaluation has any failed criterion or any gap within
// AtRiskMarginRatio of its boundary. Missing snapshots classify as
// NotApplicable.
func ClassifyImpact(before, after *model.EligibilityResult) Impact {
	if before == nil || after == nil {
		return ImpactNotApplicable
	}

	switch {
	case !before.Eligible && after.Eligible:
		return ImpactNowEligible
	case before.Eligible && !after.Eligible:
		return ImpactNowIneligible
	case !before.Eligible && !after.Eligible:
		return ImpactNotApplicable
	default:
		if after.FailedCount() > 0 || after.MarginalCount(AtRiskMarginRatio) > 0 {
			return ImpactAtRisk
		}
		return ImpactStillEligible
	}
}

// BuildReport combines the structural diff and the impact
// classification. Returns nil when the content hashes match: identical
// criteria are no drift, not an error.
func BuildReport(oldSet, newSet *model.CriteriaSet, before, after *model.EligibilityResult) *Report {
	if oldSet.ContentHash == newSet.ContentHash {
		return nil
	}

	return &Report{
		Program:     newSet.Program,
		DetectedAt:  time.Now().UTC(),
		Changes:     DiffCriteria(oldSet, newSet),
		ImpactOnYou: ClassifyImpact(before, after),
	}
}

func weightsEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatWeight(w *float64) *string {
	if w == nil {
		return nil
	}
	return strPtr(fmt.Sprintf("%.4f", *w))
}

func strPtr(s string) *string { return &s }
