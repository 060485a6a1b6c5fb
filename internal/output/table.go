// Package output renders scan results for terminals and exports.
// Tables go through tabwriter so columns line up without a heavyweight
// formatting dependency.
package output

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yourorg/delegation-oracle/internal/arbitrage"
	"github.com/yourorg/delegation-oracle/internal/drift"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/optimize"
	"github.com/yourorg/delegation-oracle/internal/types"
	"github.com/yourorg/delegation-oracle/internal/vulnerability"
)

// StatusTable renders one row per program evaluation
func StatusTable(results []model.EligibilityResult) string {
	return renderTable([]string{"PROGRAM", "ELIGIBLE", "SCORE", "DELEGATION (SOL)", "CRITERIA MET"}, func(w *tabwriter.Writer) {
		for i := range results {
			r := &results[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\n",
				r.Program.DisplayName(),
				yesNo(r.Eligible),
				floatOrDash(r.Score, "%.3f"),
				floatOrDash(r.EstimatedDelegation, "%.0f"),
				r.PassedCount(), len(r.CriterionResults),
			)
		}
	})
}

// GapsTable renders every numeric gap across all evaluations
func GapsTable(results []model.EligibilityResult) string {
	return renderTable([]string{"PROGRAM", "CRITERION", "CURRENT", "REQUIRED", "GAP", "EFFORT"}, func(w *tabwriter.Writer) {
		for i := range results {
			r := &results[i]
			for _, c := range r.CriterionResults {
				if c.Gap == nil {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%.3f\t%s\n",
					r.Program.DisplayName(),
					c.CriterionName,
					c.Gap.CurrentValue,
					c.Gap.RequiredValue,
					c.Gap.Delta,
					strings.ToUpper(c.Gap.EffortEstimate.String()),
				)
			}
		}
	})
}

// ArbitrageTable renders ranked opportunities with the action needed
func ArbitrageTable(opportunities []arbitrage.Opportunity) string {
	return renderTable([]string{"RANK", "PROGRAM", "EST. DELEGATION GAIN", "EFFORT", "ROI", "ACTION NEEDED"}, func(w *tabwriter.Writer) {
		for i := range opportunities {
			opp := &opportunities[i]
			actions := make([]string, 0, len(opp.Gaps))
			for _, g := range opp.Gaps {
				actions = append(actions, fmt.Sprintf("%s %g", g.MetricKey, g.RequiredValue))
			}
			fmt.Fprintf(w, "%d\t%s\t+%.0f SOL\t%s\t%.2f\t%s\n",
				i+1,
				opp.Program.DisplayName(),
				opp.EstimatedGain,
				strings.ToUpper(opp.TotalEffort.String()),
				opp.ROIScore,
				strings.Join(actions, ", "),
			)
		}
	})
}

// WhatIfTable renders before/after per program plus a summary footer
func WhatIfTable(result *optimize.WhatIfResult) string {
	table := renderTable([]string{"PROGRAM", "BEFORE", "AFTER", "CHANGE"}, func(w *tabwriter.Writer) {
		for i := range result.Before {
			before := &result.Before[i]
			after := findResult(result.After, before.Program)
			if after == nil {
				continue
			}
			delta := floatOrZero(after.EstimatedDelegation) - floatOrZero(before.EstimatedDelegation)
			fmt.Fprintf(w, "%s\t%s\t%s\t%+.0f SOL\n",
				before.Program.DisplayName(),
				eligibilityLabel(before),
				eligibilityLabel(after),
				delta,
			)
		}
	})

	var b strings.Builder
	b.WriteString(table)
	fmt.Fprintf(&b, "\nNet delegation impact: %+.2f SOL\n", result.NetDelegationChange)
	fmt.Fprintf(&b, "Programs gained: %s\n", programList(result.ProgramsGained))
	fmt.Fprintf(&b, "Programs lost: %s\n", programList(result.ProgramsLost))
	return b.String()
}

// VulnerabilityTable renders at-risk peers per program
func VulnerabilityTable(items []vulnerability.VulnerableValidator) string {
	return renderTable([]string{"VALIDATOR", "PROGRAM", "AT-RISK METRICS", "EPOCHS TO LIKELY LOSS", "DELEGATION SOL"}, func(w *tabwriter.Writer) {
		for i := range items {
			item := &items[i]
			metrics := make([]string, 0, len(item.MetricsAtRisk))
			for _, m := range item.MetricsAtRisk {
				metrics = append(metrics, fmt.Sprintf("%s (%.2f%% margin)", m.Metric, m.Margin))
			}
			epochs := "-"
			if item.EpochsUntilLikelyLoss != nil {
				epochs = fmt.Sprintf("%d", *item.EpochsUntilLikelyLoss)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\n",
				item.VotePubkey,
				item.Program.DisplayName(),
				strings.Join(metrics, ", "),
				epochs,
				item.CurrentDelegation,
			)
		}
	})
}

// DriftTable renders criteria drift reports
func DriftTable(reports []drift.Report) string {
	return renderTable([]string{"PROGRAM", "DETECTED AT", "IMPACT", "CHANGES"}, func(w *tabwriter.Writer) {
		for i := range reports {
			report := &reports[i]
			changes := make([]string, 0, len(report.Changes))
			for _, c := range report.Changes {
				changes = append(changes, fmt.Sprintf("%s:%s", c.CriterionName, c.ChangeType))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				report.Program.DisplayName(),
				report.DetectedAt.Format(time.RFC3339),
				report.ImpactOnYou,
				strings.Join(changes, ", "),
			)
		}
	})
}

// HistoryTable renders stored eligibility records
func HistoryTable(records []model.EligibilityRecord) string {
	return renderTable([]string{"CAPTURED AT", "EPOCH", "PROGRAM", "ELIGIBLE", "SCORE", "DELEGATION SOL"}, func(w *tabwriter.Writer) {
		for i := range records {
			rec := &records[i]
			fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%s\t%s\n",
				rec.CapturedAt.Format(time.RFC3339),
				rec.Epoch,
				rec.Program.DisplayName(),
				rec.Eligible,
				floatOrDash(rec.Score, "%.3f"),
				floatOrDash(rec.DelegationSOL, "%.0f"),
			)
		}
	})
}

// RecommendationsTable renders the prioritized action list
func RecommendationsTable(items []optimize.Recommendation) string {
	return renderTable([]string{"PRIORITY", "TITLE", "EFFORT", "EXPECTED GAIN", "RATIONALE"}, func(w *tabwriter.Writer) {
		for i := range items {
			item := &items[i]
			fmt.Fprintf(w, "%d\t%s\t%s\t%.0f\t%s\n",
				item.Priority,
				item.Title,
				item.Effort,
				item.ExpectedGain,
				item.Rationale,
			)
		}
	})
}

func renderTable(header []string, body func(w *tabwriter.Writer)) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	body(w)
	w.Flush()
	return b.String()
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func floatOrDash(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func eligibilityLabel(r *model.EligibilityResult) string {
	if !r.Eligible {
		return "NO -"
	}
	return fmt.Sprintf("YES %.0f", floatOrZero(r.EstimatedDelegation))
}

func findResult(results []model.EligibilityResult, program types.ProgramID) *model.EligibilityResult {
	for i := range results {
		if results[i].Program == program {
			return &results[i]
		}
	}
	return nil
}

func programList(programs []types.ProgramID) string {
	if len(programs) == 0 {
		return "none"
	}
	names := make([]string, 0, len(programs))
	for _, p := range programs {
		names = append(names, p.DisplayName())
	}
	return strings.Join(names, ", ")
}
