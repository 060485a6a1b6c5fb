// Package alert turns scan outcomes into operator notifications:
// criteria drift, fragile peers, and eligibility transitions.
package alert

import (
	"fmt"

	"github.com/yourorg/delegation-oracle/internal/drift"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/vulnerability"
)

// EventKind classifies an alert event
type EventKind string

const (
	KindCriteriaDrift         EventKind = "criteria_drift"
	KindVulnerabilityDetected EventKind = "vulnerability_detected"
	KindEligibilityLost       EventKind = "eligibility_lost"
	KindEligibilityGained     EventKind = "eligibility_gained"
)

// Event is one notification ready for a sink
type Event struct {
	Kind  EventKind `json:"kind"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
}

// Rules selects which event kinds the engine emits. The zero value
// emits nothing; DefaultRules enables everything.
type Rules struct {
	CriteriaDrift         bool `yaml:"criteria_drift" json:"criteria_drift"`
	VulnerabilityDetected bool `yaml:"vulnerability_detected" json:"vulnerability_detected"`
	EligibilityLost       bool `yaml:"eligibility_lost" json:"eligibility_lost"`
	EligibilityGained     bool `yaml:"eligibility_gained" json:"eligibility_gained"`
}

// DefaultRules enables every event kind
func DefaultRules() Rules {
	return Rules{
		CriteriaDrift:         true,
		VulnerabilityDetected: true,
		EligibilityLost:       true,
		EligibilityGained:     true,
	}
}

// EvaluateAlerts builds the event list for one scan cycle. previous may
// be nil on the first run, in which case no transition events fire.
func EvaluateAlerts(
	rules Rules,
	previous, current []model.EligibilityResult,
	drifts []drift.Report,
	vulnerabilities []vulnerability.VulnerableValidator,
) []Event {
	var events []Event

	if rules.CriteriaDrift {
		for i := range drifts {
			d := &drifts[i]
			events = append(events, Event{
				Kind:  KindCriteriaDrift,
				Title: fmt.Sprintf("Criteria drift detected in %s", d.Program.DisplayName()),
				Body:  fmt.Sprintf("%d changes detected; impact: %s", len(d.Changes), d.ImpactOnYou),
			})
		}
	}

	if rules.VulnerabilityDetected {
		for i := range vulnerabilities {
			v := &vulnerabilities[i]
			events = append(events, Event{
				Kind:  KindVulnerabilityDetected,
				Title: fmt.Sprintf("Validator %s is vulnerable", v.VotePubkey),
				Body: fmt.Sprintf("%d at-risk metrics in %s with %.0f SOL delegated",
					len(v.MetricsAtRisk), v.Program.DisplayName(), v.CurrentDelegation),
			})
		}
	}

	for i := range previous {
		before := &previous[i]
		for j := range current {
			after := &current[j]
			if after.Program != before.Program {
				continue
			}
			if before.Eligible && !after.Eligible && rules.EligibilityLost {
				events = append(events, Event{
					Kind:  KindEligibilityLost,
					Title: fmt.Sprintf("Eligibility lost in %s", after.Program.DisplayName()),
					Body:  "One or more criteria no longer pass.",
				})
			}
			if !before.Eligible && after.Eligible && rules.EligibilityGained {
				events = append(events, Event{
					Kind:  KindEligibilityGained,
					Title: fmt.Sprintf("Eligibility gained in %s", after.Program.DisplayName()),
					Body:  "Validator now qualifies for delegation.",
				})
			}
			break
		}
	}

	return events
}
