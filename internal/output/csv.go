package output

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/yourorg/delegation-oracle/internal/arbitrage"
	"github.com/yourorg/delegation-oracle/internal/model"
)

// StatusCSV exports per-program evaluations for spreadsheet use
func StatusCSV(results []model.EligibilityResult) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write([]string{"program", "eligible", "score", "delegation_sol", "criteria_passed", "criteria_total"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for i := range results {
		r := &results[i]
		record := []string{
			string(r.Program),
			fmt.Sprintf("%t", r.Eligible),
			csvFloat(r.Score, "%.4f"),
			csvFloat(r.EstimatedDelegation, "%.2f"),
			fmt.Sprintf("%d", r.PassedCount()),
			fmt.Sprintf("%d", len(r.CriterionResults)),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return b.String(), nil
}

// ArbitrageCSV exports ranked opportunities
func ArbitrageCSV(opportunities []arbitrage.Opportunity) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write([]string{"program", "estimated_gain_sol", "effort", "roi", "gap_count"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for i := range opportunities {
		opp := &opportunities[i]
		record := []string{
			string(opp.Program),
			fmt.Sprintf("%.2f", opp.EstimatedGain),
			opp.TotalEffort.String(),
			fmt.Sprintf("%.4f", opp.ROIScore),
			fmt.Sprintf("%d", len(opp.Gaps)),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return b.String(), nil
}

func csvFloat(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}
