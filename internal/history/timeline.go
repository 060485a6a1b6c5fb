package history

import (
	"fmt"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// SummarizeTimeline condenses a record slice into the one-line ratio
// shown by the history command. A zero program matches every program.
func SummarizeTimeline(records []model.EligibilityRecord, program types.ProgramID) string {
	if len(records) == 0 {
		return "No history records found."
	}

	eligible, total := 0, 0
	for _, rec := range records {
		if program != "" && rec.Program != program {
			continue
		}
		total++
		if rec.Eligible {
			eligible++
		}
	}
	if total == 0 {
		return "No matching records for selected program."
	}
	return fmt.Sprintf("Eligibility ratio: %d/%d (%.1f%%)",
		eligible, total, float64(eligible)/float64(total)*100.0)
}
